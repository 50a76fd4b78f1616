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
	"encoding/json"

	"github.com/jaycherian/gcp-go-daily-report/internal/core/blob"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/cor"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/keys"
)

// PersistTranscript uploads transcription.json in the background. Synthesis
// does not wait for it; Publish does.
type PersistTranscript struct {
	cor.BaseCommand
	blobs blob.Gateway
}

func NewPersistTranscript(blobs blob.Gateway) *PersistTranscript {
	out := &PersistTranscript{BaseCommand: *cor.NewBaseCommand(StagePersistTranscript), blobs: blobs}
	out.InputParamName = ParamTranscript
	return out
}

func (c *PersistTranscript) Execute(context cor.Context) {
	data, err := json.MarshalIndent(getTranscript(context), "", "  ")
	if err != nil {
		c.Fail(context, err)
		return
	}
	ctx := context.GetContext()
	key := keys.AssetKey(getBase(context), keys.TranscriptFile)
	GetTasks(context).Go(TaskTranscript, func() error {
		_, err := blob.PutBytes(ctx, c.blobs, key, data, blob.PutOptions{ContentType: blob.ContentTypeJSON})
		return err
	})
	c.Succeed(context)
}
