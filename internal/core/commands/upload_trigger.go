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
	"log/slog"
	"strings"

	"github.com/jaycherian/gcp-go-daily-report/internal/cloud"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/cor"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/keys"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/media"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
)

// UploadTrigger turns a storage notification for an uploaded walkthrough
// into a GenerateRequest. The bucket also receives every artifact the
// pipeline writes, so notifications for anything other than a video under
// an uploads folder are acknowledged and dropped without output.
//
// Inputs:
//   - CtxIn: the raw notification JSON.
//
// Outputs:
//   - CtxOut and ParamRequest: the *GenerateRequest, when the object is an
//     upload.
type UploadTrigger struct {
	cor.BaseCommand
	prefix string
}

// NewUploadTrigger strips prefix, the key prefix of the blob store, from
// object names before parsing them.
func NewUploadTrigger(prefix string) *UploadTrigger {
	return &UploadTrigger{
		BaseCommand: *cor.NewBaseCommand("upload-trigger"),
		prefix:      strings.Trim(prefix, keys.Separator),
	}
}

func (c *UploadTrigger) Execute(context cor.Context) {
	in, _ := context.Get(c.GetInputParam()).(string)
	obj, err := cloud.ParseGCSNotification([]byte(in))
	if err != nil {
		c.Fail(context, err)
		return
	}
	context.Add(cloud.GetGCSObjectName(), obj)

	name := obj.Name
	if c.prefix != "" {
		trimmed := strings.TrimPrefix(name, c.prefix+keys.Separator)
		if trimmed == name {
			slog.DebugContext(context.GetContext(), "ignoring object outside the store prefix", "object", name)
			return
		}
		name = trimmed
	}

	tenantID, customer, project, fileName, err := keys.ParseUpload(name)
	if err != nil {
		var pe *model.ParseError
		if errors.As(err, &pe) {
			slog.DebugContext(context.GetContext(), "ignoring non-upload object", "object", name)
			return
		}
		c.Fail(context, err)
		return
	}
	if !media.IsVideo(fileName, obj.MIMEType) {
		slog.InfoContext(context.GetContext(), "ignoring upload that is not a video", "object", name, "contentType", obj.MIMEType)
		return
	}

	req := &GenerateRequest{
		TenantID: tenantID,
		Customer: customer,
		Project:  project,
		Video:    VideoRef{Key: name},
	}
	context.Add(ParamRequest, req)
	context.Add(c.GetOutputParam(), req)
	c.Succeed(context)
}
