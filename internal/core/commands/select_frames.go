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
	"fmt"

	"github.com/jaycherian/gcp-go-daily-report/internal/core/blob"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/cor"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/frames"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/keys"
)

// SelectFrames derives the frame jobs from the report's image candidates
// and stores frame_timestamps.json next to the report.
type SelectFrames struct {
	cor.BaseCommand
	blobs blob.Gateway
}

func NewSelectFrames(blobs blob.Gateway) *SelectFrames {
	out := &SelectFrames{BaseCommand: *cor.NewBaseCommand(StageSelectFrames), blobs: blobs}
	out.InputParamName = ParamDocument
	return out
}

func (c *SelectFrames) Execute(context cor.Context) {
	jobs, rejected, err := frames.Select(getDocument(context))
	for _, r := range rejected {
		c.Warn(context, r)
	}
	if err != nil {
		c.Fail(context, err)
		return
	}

	index, err := frames.TimestampIndex(jobs)
	if err == nil {
		key := keys.AssetKey(getBase(context), keys.FrameIndexFile)
		_, err = blob.PutBytes(context.GetContext(), c.blobs, key, index, blob.PutOptions{ContentType: blob.ContentTypeJSON})
	}
	if err != nil {
		c.Warn(context, fmt.Errorf("frame index: %w", err))
	}

	context.Add(ParamFrameJobs, jobs)
	c.Succeed(context)
}
