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

// Package transcription is the Transcription Client. It turns an audio
// stream into a word-timed Transcript using an external speech-to-text
// service. Two providers are available: an OpenAI compatible Whisper endpoint
// and Gemini audio understanding through the quota-aware genai model.
//
// Every provider normalises its output before returning it: words are sorted
// by start offset (stable) and an empty word list is EmptyTranscriptError.
package transcription

import (
	"context"
	"io"

	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
)

// Options are the per-call settings taken from the tenant configuration.
type Options struct {
	Model    string // Provider model name, e.g. "whisper-1".
	FileName string // Name reported for the upload, e.g. "audio.mp3".
	MIMEType string // Defaults to audio/mpeg.
}

func (o Options) withDefaults() Options {
	if o.FileName == "" {
		o.FileName = "audio.mp3"
	}
	if o.MIMEType == "" {
		o.MIMEType = "audio/mpeg"
	}
	return o
}

// Transcriber converts audio to a transcript. The reader is consumed once.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, opts Options) (*model.Transcript, error)
}

// finish applies the shared post-processing to a provider result.
func finish(t *model.Transcript) (*model.Transcript, error) {
	if t == nil {
		return nil, &model.EmptyTranscriptError{}
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
