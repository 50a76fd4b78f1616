// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package commands

import (
	"errors"
	"strings"
	"time"

	"github.com/jaycherian/gcp-go-daily-report/internal/core/cor"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/keys"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
)

// InitInstance creates the ReportInstance of a job from its request.
type InitInstance struct {
	cor.BaseCommand
	clock func() time.Time
}

// NewInitInstance uses clock to stamp instances; nil means time.Now.
func NewInitInstance(clock func() time.Time) *InitInstance {
	if clock == nil {
		clock = time.Now
	}
	out := &InitInstance{BaseCommand: *cor.NewBaseCommand(StageInit), clock: clock}
	out.InputParamName = ParamRequest
	return out
}

func (c *InitInstance) Execute(context cor.Context) {
	req := getRequest(context)
	if err := ValidateRequest(req); err != nil {
		c.Fail(context, err)
		return
	}

	instance := model.NewReportInstance(req.TenantID, req.Customer, req.Project, c.clock())
	base := keys.BaseFor(instance)
	context.Add(ParamInstance, &instance)
	context.Add(ParamBase, base)
	c.Succeed(context)
}

// ValidateRequest checks the identity fields and that exactly one video
// reference is set.
func ValidateRequest(req *GenerateRequest) error {
	if req == nil {
		return errors.New("no generate request")
	}
	var missing []string
	for _, f := range [][2]string{{"tenantId", req.TenantID}, {"customer", req.Customer}, {"project", req.Project}} {
		if strings.TrimSpace(f[1]) == "" {
			missing = append(missing, f[0])
		}
	}
	if len(missing) > 0 {
		return errors.New("request is missing " + strings.Join(missing, ", "))
	}
	hasKey, hasPath := req.Video.Key != "", req.Video.LocalPath != ""
	if hasKey == hasPath {
		return errors.New("exactly one of video key and local path must be set")
	}
	return nil
}
