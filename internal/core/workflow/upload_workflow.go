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

// Package workflow defines the high-level business logic orchestrations,
// combining various commands into coherent pipelines. This file implements
// the workflow run by the worker for each storage notification.
package workflow

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jaycherian/gcp-go-daily-report/internal/core/commands"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/cor"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
)

// Generator runs one report job. *ReportPipeline implements it.
type Generator interface {
	Run(ctx context.Context, req GenerateRequest) (*Result, error)
}

// UploadWorkflow generates a report for every walkthrough video uploaded to
// a tenant's uploads folder. It is triggered by an object-finalize
// notification delivered over Pub/Sub.
type UploadWorkflow struct {
	cor.BaseCommand
	generator Generator
	prefix    string
	chain     cor.Chain
}

// Execute runs the workflow on the notification stored under cor.CtxIn.
//
// Inputs:
//   - context: The chain of responsibility context for this execution, which
//     carries the raw notification message.
func (m *UploadWorkflow) Execute(context cor.Context) {
	m.chain.Execute(context)
}

func (m *UploadWorkflow) initializeChain() {
	out := cor.NewBaseChain(m.GetName())

	// Step 1: Parse the notification; anything but a video upload ends here.
	out.AddCommand(commands.NewUploadTrigger(m.prefix))

	// Step 2: Run the report pipeline for the upload.
	out.AddCommand(newGenerateReport(m.generator))

	m.chain = out
}

// NewUploadWorkflow builds the workflow around generator. prefix is the
// key prefix of the blob store, stripped from notified object names.
func NewUploadWorkflow(generator Generator, prefix string) *UploadWorkflow {
	out := &UploadWorkflow{
		BaseCommand: *cor.NewBaseCommand("upload-workflow"),
		generator:   generator,
		prefix:      prefix,
	}
	out.initializeChain()
	return out
}

// generateReport runs a job for the request an earlier command produced.
// Only failures worth a redelivery are recorded as errors, which leaves the
// message unacknowledged; a job that failed on its input would fail the
// same way again and is only logged.
type generateReport struct {
	cor.BaseCommand
	generator Generator
}

func newGenerateReport(generator Generator) *generateReport {
	out := &generateReport{BaseCommand: *cor.NewBaseCommand("generate-report"), generator: generator}
	out.InputParamName = commands.ParamRequest
	return out
}

func (c *generateReport) Execute(context cor.Context) {
	req, _ := context.Get(commands.ParamRequest).(*GenerateRequest)
	result, err := c.generator.Run(context.GetContext(), *req)
	if err != nil {
		if Retryable(err) {
			c.Fail(context, err)
			return
		}
		slog.ErrorContext(context.GetContext(), "report generation failed permanently",
			"tenant", req.TenantID, "video", req.Video.Key, "error", err)
		return
	}
	context.Add(commands.ParamReportKey, result.ReportKey)
	context.Add(c.GetOutputParam(), result.ReportKey)
	c.Succeed(context)
}

// Retryable reports whether a failed job may succeed when run again: the
// blob or profile store was unreachable, or the job ran out of time.
func Retryable(err error) bool {
	var unavailable *model.StoreUnavailableError
	return errors.As(err, &unavailable) || errors.Is(err, context.DeadlineExceeded)
}
