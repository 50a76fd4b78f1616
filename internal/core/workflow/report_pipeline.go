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
// combining commands into coherent pipelines. This file implements the daily
// report pipeline: one video walkthrough in, one published report out.
//
// Logic Flow:
//  1. Generate creates a job context that is cancelled when the job ends,
//     a cor.Context holding the request and a Tasks registry for background
//     uploads.
//  2. The chain runs the stage commands in order. The first fatal error
//     stops it; warnings are collected and the chain goes on.
//  3. On every path the job context is cancelled (terminating ffmpeg and any
//     in-flight upload), the cor.Context is closed (running cleanups and
//     removing temp files) and the background tasks are joined, so nothing
//     the job started outlives Generate.
//  4. A failure is returned as *model.StageError naming the stage; success
//     returns the key of the published report JSON.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jaycherian/gcp-go-daily-report/internal/cloud"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/blob"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/commands"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/cor"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/media"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/profile"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/render"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/synthesis"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/transcription"
	"github.com/jaycherian/gcp-go-daily-report/internal/telemetry"
	"go.opentelemetry.io/otel"
)

// PipelineName is the name of the report chain and of its span.
const PipelineName = "daily-report-pipeline"

type (
	GenerateRequest = commands.GenerateRequest
	VideoRef        = commands.VideoRef
)

// Dependencies are the capabilities the pipeline is built from. Indexer may
// be nil; everything else is required.
type Dependencies struct {
	Blobs          blob.Gateway
	Profiles       profile.Store
	Transcoder     media.Transcoder
	Transcriber    transcription.Transcriber
	Synthesizers   []synthesis.Synthesizer
	Publisher      *commands.ViewerPublisher
	Indexer        commands.Indexer
	Clock          func() time.Time
	PresignTTL     time.Duration
	FrameWorkers   int
	DefaultLogoURL string
}

// Result describes one finished job.
type Result struct {
	ReportKey string
	Instance  *model.ReportInstance
	Warnings  []cor.Warning
}

// ReportPipeline generates daily reports. It is safe for concurrent use;
// every Generate call gets its own context and task registry.
type ReportPipeline struct {
	cor.BaseCommand
	deps  Dependencies
	chain *cor.BaseChain
}

// NewReportPipeline builds the stage chain over deps.
func NewReportPipeline(deps Dependencies) *ReportPipeline {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.PresignTTL <= 0 {
		deps.PresignTTL = time.Hour
	}
	if deps.Publisher == nil {
		deps.Publisher = &commands.ViewerPublisher{Blobs: deps.Blobs, PresignTTL: deps.PresignTTL}
	}
	pipeline := &ReportPipeline{
		BaseCommand: *cor.NewBaseCommand(PipelineName),
		deps:        deps,
	}
	pipeline.initializeChain()
	return pipeline
}

// Publisher returns the viewer publisher used by the publish stage, so edits
// made after generation render the same way.
func (p *ReportPipeline) Publisher() *commands.ViewerPublisher { return p.deps.Publisher }

func (p *ReportPipeline) initializeChain() {
	d := p.deps
	out := cor.NewBaseChain(p.GetName())
	out.AddCommand(commands.NewInitInstance(d.Clock))
	out.AddCommand(commands.NewConfigFetch(d.Profiles, d.Blobs, d.PresignTTL))
	out.AddCommand(commands.NewSourceVideo(d.Blobs, d.PresignTTL))
	out.AddCommand(commands.NewTranscode(d.Transcoder, d.Blobs))
	out.AddCommand(commands.NewTranscribe(d.Transcriber))
	out.AddCommand(commands.NewPersistTranscript(d.Blobs))
	out.AddCommand(commands.NewSynthesize(d.Synthesizers...))
	out.AddCommand(commands.NewSelectFrames(d.Blobs))
	out.AddCommand(commands.NewExtractFrames(d.Transcoder, d.Blobs, d.FrameWorkers))
	out.AddCommand(commands.NewMergeMetadata(d.Blobs, d.DefaultLogoURL, d.Clock))
	out.AddCommand(commands.NewPublish(d.Blobs, d.Publisher))
	out.AddCommand(commands.NewIndexReport(d.Indexer))
	p.chain = out
}

// Stages returns the command names in execution order.
func (p *ReportPipeline) Stages() []string {
	return p.chain.Commands()
}

// Execute runs the chain against a context prepared by the caller. Most
// callers want Generate, which also owns the job's lifetime.
func (p *ReportPipeline) Execute(context cor.Context) {
	p.chain.Execute(context)
}

// Generate runs one job and returns the key of the published report JSON.
func (p *ReportPipeline) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	result, err := p.Run(ctx, req)
	if err != nil {
		return "", err
	}
	return result.ReportKey, nil
}

// Run is Generate with the full result. The result is returned on failure
// too, holding whatever the job got to (the instance, the warnings).
func (p *ReportPipeline) Run(ctx context.Context, req GenerateRequest) (*Result, error) {
	ctx, span := p.Tracer.Start(ctx, "generate-report")
	defer span.End()
	ctx = telemetry.WithLogAttrs(ctx,
		slog.String("tenant", req.TenantID),
		slog.String("customer", req.Customer),
		slog.String("project", req.Project))

	jobCtx, cancel := context.WithCancel(ctx)
	tasks := commands.NewTasks()
	chCtx := cor.NewBaseContext()
	chCtx.SetContext(jobCtx)
	chCtx.Add(commands.ParamTasks, tasks)
	chCtx.Add(commands.ParamRequest, &req)

	p.Execute(chCtx)

	stage, err := chCtx.FirstFailure()
	result := &Result{
		ReportKey: commands.GetReportKey(chCtx),
		Instance:  commands.GetInstance(chCtx),
		Warnings:  chCtx.GetWarnings(),
	}

	cancel()
	chCtx.Close()
	for name, terr := range tasks.WaitAll() {
		if err == nil {
			slog.DebugContext(ctx, "background task ended with error", "task", name, "error", terr)
		}
	}

	if err == nil && result.ReportKey == "" {
		stage, err = commands.StagePublish, errors.New("pipeline finished without publishing a report")
	}
	if err != nil {
		p.GetErrorCounter().Add(ctx, 1)
		slog.ErrorContext(ctx, "report generation failed", "stage", stage, "error", err)
		return result, &model.StageError{Stage: stage, Err: err}
	}
	p.GetSuccessCounter().Add(ctx, 1)
	slog.InfoContext(ctx, "report published", "key", result.ReportKey, "images", imageCount(chCtx), "warnings", len(result.Warnings))
	return result, nil
}

func imageCount(c cor.Context) int {
	doc, ok := c.Get(commands.ParamDocument).(*model.ReportDocument)
	if !ok {
		return 0
	}
	return len(doc.Images)
}

// NewReportPipelineFromConfig wires the production implementations named by
// config. profiles and blobs are built by the caller since the server also
// uses them directly; indexer may be nil.
//
// Inputs:
//   - config: The application configuration.
//   - serviceClients: The initialised cloud clients; the configured agent
//     models are looked up here.
//   - profiles: The tenant configuration store.
//   - blobs: The report blob store.
//   - indexer: The report index, or nil to skip indexing.
func NewReportPipelineFromConfig(
	config *cloud.Config,
	serviceClients *cloud.ServiceClients,
	profiles profile.Store,
	blobs blob.Gateway,
	indexer commands.Indexer) (*ReportPipeline, error) {

	meter := otel.Meter(PipelineName)

	writer, err := serviceClients.AgentModel(config.Synthesis.AgentModel)
	if err != nil {
		return nil, fmt.Errorf("synthesis: %w", err)
	}
	synthesisCounters, err := cloud.NewGenAICounters(meter, "synthesis")
	if err != nil {
		return nil, err
	}

	var transcriber transcription.Transcriber
	switch config.Transcription.Provider {
	case cloud.TranscriptionProviderGemini:
		listener, err := serviceClients.AgentModel(config.Transcription.AgentModel)
		if err != nil {
			return nil, fmt.Errorf("transcription: %w", err)
		}
		counters, err := cloud.NewGenAICounters(meter, "transcription")
		if err != nil {
			return nil, err
		}
		transcriber = transcription.NewGeminiTranscriber(listener, counters)
	case cloud.TranscriptionProviderWhisper, "":
		transcriber = transcription.NewWhisperClient(
			config.Transcription.Endpoint,
			os.Getenv(config.Transcription.APIKeyEnv),
			time.Duration(config.Transcription.TimeoutSeconds)*time.Second)
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", config.Transcription.Provider)
	}

	viewer, err := render.NewViewer()
	if err != nil {
		return nil, err
	}
	pdf := render.NewPDF(config.Media.ChromePath, time.Duration(config.Media.PDFTimeoutSeconds)*time.Second)
	ffmpeg := media.NewFFmpeg(config.Media.FFmpegPath)
	if config.Media.WaitDelaySeconds > 0 {
		delay := time.Duration(config.Media.WaitDelaySeconds) * time.Second
		ffmpeg.WaitDelay = delay
		pdf.WaitDelay = delay
	}

	presignTTL := config.Storage.PresignTTL()
	return NewReportPipeline(Dependencies{
		Blobs:       blobs,
		Profiles:    profiles,
		Transcoder:  ffmpeg,
		Transcriber: transcriber,
		Synthesizers: []synthesis.Synthesizer{
			synthesis.NewTranscriptSynthesizer(writer, synthesisCounters),
			synthesis.NewVideoSynthesizer(writer, synthesisCounters),
		},
		Publisher: &commands.ViewerPublisher{
			Blobs:      blobs,
			Viewer:     viewer,
			PDF:        pdf,
			PresignTTL: presignTTL,
		},
		Indexer:        indexer,
		PresignTTL:     presignTTL,
		FrameWorkers:   config.Media.FrameWorkers,
		DefaultLogoURL: config.Application.LogoURL,
	}), nil
}
