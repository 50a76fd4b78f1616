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
	goctx "context"
	"fmt"
	"sync"

	"github.com/jaycherian/gcp-go-daily-report/internal/core/blob"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/cor"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/keys"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/media"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultFrameWorkers bounds concurrent frame jobs when no size is given.
const DefaultFrameWorkers = 4

// ExtractFrames runs the frame jobs on a bounded worker pool. Every job owns
// its decode process and its upload. A failed job becomes a FrameJobError
// warning and is dropped; the surviving images are sorted by file name
// before they replace the candidates in the document.
type ExtractFrames struct {
	cor.BaseCommand
	transcoder      media.Transcoder
	blobs           blob.Gateway
	numberOfWorkers int
}

func NewExtractFrames(transcoder media.Transcoder, blobs blob.Gateway, numberOfWorkers int) *ExtractFrames {
	if numberOfWorkers <= 0 {
		numberOfWorkers = DefaultFrameWorkers
	}
	out := &ExtractFrames{
		BaseCommand:     *cor.NewBaseCommand(StageExtractFrames),
		transcoder:      transcoder,
		blobs:           blobs,
		numberOfWorkers: numberOfWorkers,
	}
	out.InputParamName = ParamFrameJobs
	return out
}

// frameJob is one unit of work handed to a worker.
type frameJob struct {
	ctx    goctx.Context
	span   trace.Span
	source media.Source
	key    string
	job    model.FrameJob
}

// frameResult is what a worker sends back.
type frameResult struct {
	record model.ImageRecord
	err    error
}

func (c *ExtractFrames) Execute(context cor.Context) {
	ctx := context.GetContext()
	jobs := context.Get(ParamFrameJobs).([]model.FrameJob)
	source, _ := getSource(context)
	base := getBase(context)

	var wg sync.WaitGroup
	queue := make(chan *frameJob, len(jobs))
	results := make(chan *frameResult, len(jobs))

	workers := min(c.numberOfWorkers, len(jobs))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go c.frameWorker(queue, results, &wg)
	}

	for i, j := range jobs {
		jobCtx, span := c.Tracer.Start(ctx, fmt.Sprintf("%s_frame_%d", c.GetName(), i))
		span.SetAttributes(
			attribute.String("file", j.FileName),
			attribute.Float64("timestamp", j.TimestampSeconds),
		)
		queue <- &frameJob{ctx: jobCtx, span: span, source: source, key: keys.FrameKey(base, j.FileName), job: j}
	}
	close(queue)
	wg.Wait()
	close(results)

	records := make([]model.ImageRecord, 0, len(jobs))
	for r := range results {
		if r.err != nil {
			c.Warn(context, r.err)
			continue
		}
		records = append(records, r.record)
	}

	if err := ctx.Err(); err != nil {
		c.Fail(context, err)
		return
	}
	doc := getDocument(context)
	if err := doc.SetImages(records); err != nil {
		c.Fail(context, err)
		return
	}
	c.Succeed(context)
}

func (c *ExtractFrames) frameWorker(queue <-chan *frameJob, results chan<- *frameResult, wg *sync.WaitGroup) {
	defer wg.Done()
	for j := range queue {
		record, err := c.runJob(j)
		if err != nil {
			j.span.RecordError(err)
			j.span.SetStatus(codes.Error, "frame failed")
			j.span.End()
			results <- &frameResult{err: &model.FrameJobError{FileName: j.job.FileName, Timestamp: j.job.TimestampSeconds, Err: err}}
			continue
		}
		j.span.SetStatus(codes.Ok, "frame uploaded")
		j.span.End()
		results <- &frameResult{record: record}
	}
}

func (c *ExtractFrames) runJob(j *frameJob) (model.ImageRecord, error) {
	if err := j.ctx.Err(); err != nil {
		return model.ImageRecord{}, err
	}
	out, err := c.transcoder.ExtractFrame(j.ctx, j.source, j.job.TimestampSeconds)
	if err != nil {
		return model.ImageRecord{}, err
	}
	data, err := media.ReadAll(out)
	if err != nil {
		return model.ImageRecord{}, err
	}
	url, err := blob.PutBytes(j.ctx, c.blobs, j.key, data, blob.PutOptions{ContentType: blob.ContentTypeJPEG})
	if err != nil {
		return model.ImageRecord{}, err
	}
	return model.ImageRecord{FileName: j.job.FileName, Caption: j.job.Caption, URL: url}, nil
}
