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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface for the daily report
// pipeline. Every stage of report generation is one command; the workflow
// package strings them together.
//
// Logic Flow:
// The commands share state through the cor.Context using the Param* keys
// declared here. Each command reads what earlier stages produced, does one
// piece of work and records either its output, a fatal error (which stops
// the chain) or a warning (which does not).
//
//  1. InitInstance creates the ReportInstance and its key prefix.
//  2. ConfigFetch loads and validates the tenant configuration while the
//     video source is resolved.
//  3. SourceVideo copies a locally uploaded video next to the report.
//  4. Transcode starts streaming audio extraction; Transcribe consumes it.
//  5. PersistTranscript uploads the transcript in the background.
//  6. Synthesize asks the generative model for the report.
//  7. SelectFrames and ExtractFrames turn image candidates into uploaded
//     still frames.
//  8. MergeMetadata stitches profile metadata and asset URLs in.
//  9. Publish writes the report JSON, the viewer and the PDF.
//  10. IndexReport records the report in the report index.
//
// Uploads that run in the background are registered with Tasks so the
// workflow can join them at the point their result matters, and abort them
// when the job fails.
package commands

import (
	"github.com/jaycherian/gcp-go-daily-report/internal/core/cor"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/media"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/synthesis"
)

// Stage names. They double as command names and as the Stage of the
// *model.StageError returned to callers.
const (
	StageInit              = "init"
	StageConfigFetch       = "config-fetch"
	StageResolveSource     = "resolve-source"
	StageSourceVideo       = "source-video"
	StageTranscode         = "transcode"
	StageTranscribe        = "transcribe"
	StagePersistTranscript = "persist-transcript"
	StageSynthesize        = "synthesize"
	StageSelectFrames      = "select-frames"
	StageExtractFrames     = "extract-frames"
	StageMergeMetadata     = "merge-metadata"
	StagePublish           = "publish"
	StageIndex             = "index"
)

// Context parameter names.
const (
	ParamRequest    = "__request__"
	ParamInstance   = "__instance__"
	ParamBase       = "__base__"
	ParamTenant     = "__tenant__"
	ParamMode       = "__mode__"
	ParamSource     = "__source__"
	ParamVideoURL   = "__video_url__"
	ParamVideoRef   = "__video_ref__"
	ParamAudio      = "__audio__"
	ParamTranscript = "__transcript__"
	ParamDocument   = "__document__"
	ParamFrameJobs  = "__frame_jobs__"
	ParamReportKey  = "__report_key__"
	ParamTasks      = "__tasks__"
)

// Background task names.
const (
	TaskAudio       = "audio-upload"
	TaskTranscript  = "transcript-upload"
	TaskSourceVideo = "source-video-upload"
)

// VideoRef names the walkthrough video. Exactly one field is set: Key is an
// object in the blob store, LocalPath a file on this machine.
type VideoRef struct {
	Key       string `json:"key,omitempty"`
	LocalPath string `json:"localPath,omitempty"`
}

// GenerateRequest asks for one new report.
type GenerateRequest struct {
	TenantID string   `json:"tenantId"`
	Customer string   `json:"customer"`
	Project  string   `json:"project"`
	Video    VideoRef `json:"video"`
}

func getRequest(c cor.Context) *GenerateRequest {
	v, _ := c.Get(ParamRequest).(*GenerateRequest)
	return v
}

func getInstance(c cor.Context) *model.ReportInstance {
	v, _ := c.Get(ParamInstance).(*model.ReportInstance)
	return v
}

func getBase(c cor.Context) string {
	v, _ := c.Get(ParamBase).(string)
	return v
}

func getTenant(c cor.Context) *model.TenantConfig {
	v, _ := c.Get(ParamTenant).(*model.TenantConfig)
	return v
}

func getMode(c cor.Context) string {
	v, _ := c.Get(ParamMode).(string)
	if v == "" {
		return synthesis.ModeTranscript
	}
	return v
}

func getSource(c cor.Context) (media.Source, bool) {
	v, ok := c.Get(ParamSource).(media.Source)
	return v, ok
}

func getString(c cor.Context, key string) string {
	v, _ := c.Get(key).(string)
	return v
}

func getTranscript(c cor.Context) *model.Transcript {
	v, _ := c.Get(ParamTranscript).(*model.Transcript)
	return v
}

func getDocument(c cor.Context) *model.ReportDocument {
	v, _ := c.Get(ParamDocument).(*model.ReportDocument)
	return v
}

// GetTasks returns the background task registry of a job, or nil.
func GetTasks(c cor.Context) *Tasks {
	v, _ := c.Get(ParamTasks).(*Tasks)
	return v
}

// GetReportKey returns the published report key, or "".
func GetReportKey(c cor.Context) string {
	return getString(c, ParamReportKey)
}

// GetInstance returns the ReportInstance of a job, or nil before Init.
func GetInstance(c cor.Context) *model.ReportInstance {
	return getInstance(c)
}
