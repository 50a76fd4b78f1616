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

package workflow_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/jaycherian/gcp-go-daily-report/internal/core/commands"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/cor"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/workflow"
	test "github.com/jaycherian/gcp-go-daily-report/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingGenerator struct {
	mu       sync.Mutex
	requests []workflow.GenerateRequest
	err      error
}

func (g *recordingGenerator) Run(ctx context.Context, req workflow.GenerateRequest) (*workflow.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return &workflow.Result{ReportKey: "tenant/" + req.TenantID + "/report.json"}, nil
}

func runUpload(t *testing.T, wf *workflow.UploadWorkflow, message string) cor.Context {
	t.Helper()
	chCtx := cor.NewBaseContext()
	t.Cleanup(chCtx.Close)
	chCtx.SetContext(context.Background())
	chCtx.Add(cor.CtxIn, message)
	wf.Execute(chCtx)
	return chCtx
}

func TestUploadNotificationStartsJob(t *testing.T) {
	gen := &recordingGenerator{}
	chCtx := runUpload(t, workflow.NewUploadWorkflow(gen, ""), test.GetTestUploadMessageText())

	require.False(t, chCtx.HasErrors(), "%v", chCtx.GetErrors())
	require.Len(t, gen.requests, 1)
	assert.Equal(t, workflow.GenerateRequest{
		TenantID: "tenant-1",
		Customer: "acme",
		Project:  "tower-a",
		Video:    workflow.VideoRef{Key: "tenant/tenant-1/acme/tower-a/uploads/walkthrough.mp4"},
	}, gen.requests[0])
	assert.Equal(t, "tenant/tenant-1/report.json", commands.GetReportKey(chCtx))
}

func TestUploadNotificationHonoursStorePrefix(t *testing.T) {
	gen := &recordingGenerator{}
	message := strings.Replace(test.GetTestUploadMessageText(),
		`"name": "tenant/`, `"name": "daily/tenant/`, 1)

	runUpload(t, workflow.NewUploadWorkflow(gen, "daily/"), message)
	require.Len(t, gen.requests, 1)
	assert.Equal(t, "tenant/tenant-1/acme/tower-a/uploads/walkthrough.mp4", gen.requests[0].Video.Key)

	gen = &recordingGenerator{}
	runUpload(t, workflow.NewUploadWorkflow(gen, "other"), message)
	assert.Empty(t, gen.requests)
}

func TestPipelineOutputsDoNotTriggerJobs(t *testing.T) {
	for name, objectName := range map[string]string{
		"report json": "tenant/tenant-1/acme/tower-a/report_2024-10-11T03-04-08-672Z/daily_report.json",
		"frame":       "tenant/tenant-1/acme/tower-a/report_2024-10-11T03-04-08-672Z/extracted_frames/frame_1.000.jpg",
		"logo":        "tenant/tenant-1/config/logo.png",
	} {
		t.Run(name, func(t *testing.T) {
			gen := &recordingGenerator{}
			message := strings.Replace(test.GetTestUploadMessageText(),
				`"name": "tenant/tenant-1/acme/tower-a/uploads/walkthrough.mp4"`, `"name": "`+objectName+`"`, 1)
			chCtx := runUpload(t, workflow.NewUploadWorkflow(gen, ""), message)
			assert.False(t, chCtx.HasErrors())
			assert.Empty(t, gen.requests)
		})
	}
}

func TestNonVideoUploadIsIgnored(t *testing.T) {
	gen := &recordingGenerator{}
	message := strings.NewReplacer(
		"walkthrough.mp4", "notes.txt",
		`"contentType": "video/mp4"`, `"contentType": "text/plain"`,
	).Replace(test.GetTestUploadMessageText())

	chCtx := runUpload(t, workflow.NewUploadWorkflow(gen, ""), message)
	assert.False(t, chCtx.HasErrors())
	assert.Empty(t, gen.requests)
}

func TestMalformedNotificationIsAnError(t *testing.T) {
	gen := &recordingGenerator{}
	chCtx := runUpload(t, workflow.NewUploadWorkflow(gen, ""), "{not json")
	assert.True(t, chCtx.HasErrors())
	assert.Empty(t, gen.requests)
}

func TestOnlyTransientFailuresAreRetried(t *testing.T) {
	transient := &model.StageError{Stage: commands.StagePublish, Err: &model.PublishError{
		Key: "k", Err: &model.StoreUnavailableError{Op: "put", Key: "k", Err: test.ErrInjected},
	}}
	gen := &recordingGenerator{err: transient}
	chCtx := runUpload(t, workflow.NewUploadWorkflow(gen, ""), test.GetTestUploadMessageText())
	assert.True(t, chCtx.HasErrors())
	assert.True(t, workflow.Retryable(transient))

	permanent := &model.StageError{Stage: commands.StageSelectFrames, Err: &model.NoCandidateFramesError{}}
	gen = &recordingGenerator{err: permanent}
	chCtx = runUpload(t, workflow.NewUploadWorkflow(gen, ""), test.GetTestUploadMessageText())
	assert.False(t, chCtx.HasErrors())
	assert.Len(t, gen.requests, 1)
	assert.False(t, workflow.Retryable(permanent))
}
