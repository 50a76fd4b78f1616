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

// Package synthesis is the Report Synthesizer. It asks a generative model to
// write the daily report as a JSON object shaped by the tenant's schema, in
// the first person of whoever recorded the walkthrough.
//
// Two modes share the prompt builder and the response parser:
//   - TranscriptSynthesizer sends the timed transcript as text.
//   - VideoSynthesizer sends a reference to the video itself and lets the
//     model watch it.
//
// Logic Flow:
//  1. The request is checked: a system prompt and an object schema are
//     required, plus a transcript or a video reference depending on the mode.
//  2. The user prompt is built from the fixed instruction, the transcript (if
//     any) and the schema. The tenant's system prompt becomes the system
//     instruction and JSON output is requested.
//  3. The reply is parsed: code fences are removed, the first JSON object is
//     taken if the model wrapped it in prose, and the top-level fields the
//     schema requires are checked.
//
// Every failure is a model.SynthesisError.
package synthesis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jaycherian/gcp-go-daily-report/internal/cloud"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
	"google.golang.org/genai"
)

// Mode names, recorded in the report index.
const (
	ModeTranscript = "transcript"
	ModeVideo      = "video"
)

const transcriptPrompt = "Here is the timed transcript of a video walkthrough:\n\n---\n%s\n---\n\n" +
	"Please generate a daily report in JSON based *only* on the content of this transcript and adhering strictly to the following JSON schema. " +
	"Never mention the transcript or video walkthrough directly. " +
	"Your report is to be as though it was written by the person doing the walkthrough.:"

const videoPrompt = "Here is a video walkthrough.\n\n" +
	"Please generate a daily report in JSON based *only* on the content of this video and adhering strictly to the following JSON schema. " +
	"Never mention the video walkthrough directly. " +
	"Your report is to be as though it was written by the person doing the walkthrough. " +
	"Image timestamps are seconds from the start of the video.:"

// VideoRef points the model at a video it can fetch.
type VideoRef struct {
	URI      string
	MIMEType string
}

// Request is one synthesis call.
type Request struct {
	Transcript   *model.Transcript
	Video        *VideoRef
	SystemPrompt string
	Schema       json.RawMessage
	ModelName    string
}

// Synthesizer writes a report document.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (*model.ReportDocument, error)
	Mode() string
}

type generator struct {
	model    *cloud.QuotaAwareGenerativeAIModel
	counters *cloud.GenAICounters
}

func (g generator) generate(ctx context.Context, req Request, parts []*genai.Part) (*model.ReportDocument, error) {
	config := g.model.Config()
	config.ResponseMIMEType = "application/json"
	config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemPrompt}}}

	contents := []*genai.Content{{Role: "user", Parts: parts}}
	out, err := cloud.GenerateMultiModalResponse(ctx, g.counters, g.model, req.ModelName, config, contents)
	if err != nil {
		if errors.Is(err, cloud.ErrEmptyResponse) {
			return nil, &model.SynthesisError{Reason: "empty response", Err: err}
		}
		return nil, &model.SynthesisError{Reason: "generation failed", Err: err}
	}
	return ParseResponse(out, req.Schema)
}

func checkCommon(req Request) error {
	if strings.TrimSpace(req.SystemPrompt) == "" {
		return &model.SynthesisError{Reason: "system prompt is empty"}
	}
	var schema map[string]json.RawMessage
	if err := json.Unmarshal(req.Schema, &schema); err != nil || schema == nil {
		return &model.SynthesisError{Reason: "report schema is not a JSON object", Err: err}
	}
	return nil
}

// TranscriptSynthesizer writes reports from timed transcripts.
type TranscriptSynthesizer struct {
	generator
}

// NewTranscriptSynthesizer wraps a quota-aware model. counters may be nil.
func NewTranscriptSynthesizer(m *cloud.QuotaAwareGenerativeAIModel, counters *cloud.GenAICounters) *TranscriptSynthesizer {
	return &TranscriptSynthesizer{generator{model: m, counters: counters}}
}

func (s *TranscriptSynthesizer) Mode() string { return ModeTranscript }

func (s *TranscriptSynthesizer) Synthesize(ctx context.Context, req Request) (*model.ReportDocument, error) {
	if err := checkCommon(req); err != nil {
		return nil, err
	}
	if req.Transcript == nil || len(req.Transcript.Words) == 0 {
		return nil, &model.SynthesisError{Reason: "transcript is empty"}
	}
	return s.generate(ctx, req, []*genai.Part{
		genai.NewPartFromText(TranscriptPrompt(req.Transcript)),
		genai.NewPartFromText(string(req.Schema)),
	})
}

// VideoSynthesizer writes reports by watching the video.
type VideoSynthesizer struct {
	generator
}

// NewVideoSynthesizer wraps a quota-aware model. counters may be nil.
func NewVideoSynthesizer(m *cloud.QuotaAwareGenerativeAIModel, counters *cloud.GenAICounters) *VideoSynthesizer {
	return &VideoSynthesizer{generator{model: m, counters: counters}}
}

func (s *VideoSynthesizer) Mode() string { return ModeVideo }

func (s *VideoSynthesizer) Synthesize(ctx context.Context, req Request) (*model.ReportDocument, error) {
	if err := checkCommon(req); err != nil {
		return nil, err
	}
	if req.Video == nil || req.Video.URI == "" {
		return nil, &model.SynthesisError{Reason: "video reference is empty"}
	}
	return s.generate(ctx, req, []*genai.Part{
		cloud.NewFileData(req.Video.URI, req.Video.MIMEType),
		genai.NewPartFromText(videoPrompt),
		genai.NewPartFromText(string(req.Schema)),
	})
}

// TranscriptPrompt renders the user instruction around a transcript.
func TranscriptPrompt(t *model.Transcript) string {
	return fmt.Sprintf(transcriptPrompt, t.Render())
}

// ParseResponse turns model output into a document and checks it against
// the top-level fields the schema requires.
func ParseResponse(out string, schema json.RawMessage) (*model.ReportDocument, error) {
	body := extractObject(cloud.StripJSONFence(out))
	if body == "" {
		return nil, &model.SynthesisError{Reason: "response holds no JSON object"}
	}
	doc, err := model.ParseCandidateDocument([]byte(body))
	if err != nil {
		return nil, &model.SynthesisError{Reason: "response is not a valid report", Err: err}
	}
	var missing []string
	for _, field := range RequiredFields(schema) {
		if !doc.HasField(field) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, &model.SynthesisError{Reason: "response is missing required fields: " + strings.Join(missing, ", ")}
	}
	return doc, nil
}

// extractObject returns the text from the first '{' to the last '}'.
func extractObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

// RequiredFields lists the top-level fields a report must carry. A JSON
// Schema names them in "required". A schema given as an example document
// (no "type", "properties" or "required") requires every key it shows.
func RequiredFields(schema json.RawMessage) []string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(schema, &obj); err != nil || obj == nil {
		return nil
	}
	if raw, ok := obj["required"]; ok {
		var required []string
		if json.Unmarshal(raw, &required) == nil {
			return required
		}
		return nil
	}
	_, hasType := obj["type"]
	_, hasProperties := obj["properties"]
	if hasType || hasProperties {
		return nil
	}
	fields := make([]string, 0, len(obj))
	for k := range obj {
		if k == "$schema" || k == model.FieldMetadata || k == model.FieldAssets {
			continue
		}
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

var (
	_ Synthesizer = (*TranscriptSynthesizer)(nil)
	_ Synthesizer = (*VideoSynthesizer)(nil)
)
