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

package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jaycherian/gcp-go-daily-report/internal/cloud"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
	"google.golang.org/genai"
)

// MaxInlineAudioBytes is the largest audio payload sent inline to Gemini.
const MaxInlineAudioBytes = 20 << 20

const geminiTranscribePrompt = `Transcribe the speech in this audio recording verbatim.
Return JSON with the full text and every spoken word with its start and end offset in seconds from the beginning of the recording.
Do not summarise, translate or correct the speaker.`

// wordTimingSchema constrains the model output to the Transcript shape.
var wordTimingSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"text": {Type: genai.TypeString},
		"words": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"word":  {Type: genai.TypeString},
					"start": {Type: genai.TypeNumber},
					"end":   {Type: genai.TypeNumber},
				},
				Required: []string{"word", "start", "end"},
			},
		},
	},
	Required: []string{"words"},
}

// GeminiTranscriber sends the audio inline to a Gemini model.
type GeminiTranscriber struct {
	Model    *cloud.QuotaAwareGenerativeAIModel
	Counters *cloud.GenAICounters
}

// NewGeminiTranscriber wraps a quota-aware model. counters may be nil.
func NewGeminiTranscriber(m *cloud.QuotaAwareGenerativeAIModel, counters *cloud.GenAICounters) *GeminiTranscriber {
	return &GeminiTranscriber{Model: m, Counters: counters}
}

func (g *GeminiTranscriber) Transcribe(ctx context.Context, audio io.Reader, opts Options) (*model.Transcript, error) {
	opts = opts.withDefaults()

	data, err := io.ReadAll(io.LimitReader(audio, MaxInlineAudioBytes+1))
	if err != nil {
		return nil, &model.TranscriptionError{Err: fmt.Errorf("read audio: %w", err)}
	}
	if len(data) == 0 {
		return nil, &model.TranscriptionError{Err: errors.New("audio stream is empty")}
	}
	if len(data) > MaxInlineAudioBytes {
		return nil, &model.TranscriptionError{Err: fmt.Errorf("audio exceeds %d bytes", MaxInlineAudioBytes)}
	}

	config := g.Model.Config()
	config.ResponseMIMEType = "application/json"
	config.ResponseSchema = wordTimingSchema
	config.SystemInstruction = nil

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			genai.NewPartFromBytes(data, opts.MIMEType),
			genai.NewPartFromText(geminiTranscribePrompt),
		},
	}}

	out, err := cloud.GenerateMultiModalResponse(ctx, g.Counters, g.Model, opts.Model, config, contents)
	if err != nil {
		return nil, &model.TranscriptionError{Err: err}
	}

	var t model.Transcript
	if err := json.Unmarshal([]byte(out), &t); err != nil {
		return nil, &model.TranscriptionError{Err: fmt.Errorf("decode model output: %w", err)}
	}
	return finish(&t)
}

var _ Transcriber = (*GeminiTranscriber)(nil)
