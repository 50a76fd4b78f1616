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
	"fmt"

	"github.com/jaycherian/gcp-go-daily-report/internal/core/blob"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/cor"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/keys"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
	"golang.org/x/sync/errgroup"
)

// Publish writes the report. The JSON document is the authoritative
// artifact: its write is the single write to the report key and a failure
// is fatal. The viewer renders while the JSON is written; it is stored, and
// printed to PDF, only once the JSON is in place. Viewer and PDF failures
// are warnings.
type Publish struct {
	cor.BaseCommand
	blobs     blob.Gateway
	publisher *ViewerPublisher
}

func NewPublish(blobs blob.Gateway, publisher *ViewerPublisher) *Publish {
	out := &Publish{BaseCommand: *cor.NewBaseCommand(StagePublish), blobs: blobs, publisher: publisher}
	out.InputParamName = ParamDocument
	return out
}

var errMetadataMissing = errors.New("report metadata was never merged")

func (c *Publish) Execute(context cor.Context) {
	ctx := context.GetContext()
	if getDocument(context).Metadata == nil {
		c.Fail(context, errMetadataMissing)
		return
	}

	if _, err := GetTasks(context).Wait(TaskTranscript); err != nil {
		c.FailStage(context, StagePersistTranscript, err)
		return
	}

	doc := getDocument(context)
	base := getBase(context)
	reportKey := keys.ReportKey(base)
	data, err := doc.Indented()
	if err != nil {
		c.Fail(context, &model.PublishError{Key: reportKey, Err: err})
		return
	}

	var html []byte
	var renderErr error
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if _, err := blob.PutBytes(gctx, c.blobs, reportKey, data, blob.PutOptions{ContentType: blob.ContentTypeJSON}); err != nil {
			return &model.PublishError{Key: reportKey, Err: err}
		}
		return nil
	})
	g.Go(func() error {
		html, renderErr = c.publisher.RenderViewer(doc)
		return nil
	})
	if err := g.Wait(); err != nil {
		c.Fail(context, err)
		return
	}
	context.Add(ParamReportKey, reportKey)
	context.Add(c.GetOutputParam(), reportKey)

	switch {
	case renderErr != nil:
		c.Warn(context, fmt.Errorf("render viewer: %w", renderErr))
	default:
		if _, err := c.publisher.PutViewer(ctx, base, html); err != nil {
			c.Warn(context, err)
			break
		}
		if err := c.publisher.PutPDF(ctx, base); err != nil {
			c.Warn(context, err)
		}
	}
	c.Succeed(context)
}
