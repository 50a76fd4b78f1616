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
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
)

const (
	DefaultWhisperEndpoint = "https://api.openai.com/v1"
	DefaultWhisperModel    = "whisper-1"

	maxErrorBody = 2048
)

// WhisperClient calls an OpenAI compatible /audio/transcriptions endpoint
// with word level timestamps. The audio is streamed into the multipart body
// as it is read, so a transcoder pipe can feed it directly.
type WhisperClient struct {
	Endpoint   string
	APIKey     string
	HTTPClient *http.Client
}

// NewWhisperClient builds a client. An empty endpoint uses the OpenAI API.
func NewWhisperClient(endpoint, apiKey string, timeout time.Duration) *WhisperClient {
	if endpoint == "" {
		endpoint = DefaultWhisperEndpoint
	}
	return &WhisperClient{
		Endpoint:   strings.TrimRight(endpoint, "/"),
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type whisperResponse struct {
	Text  string `json:"text"`
	Words []struct {
		Word  string  `json:"word"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"words"`
}

type whisperError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (w *WhisperClient) Transcribe(ctx context.Context, audio io.Reader, opts Options) (*model.Transcript, error) {
	opts = opts.withDefaults()
	if opts.Model == "" {
		opts.Model = DefaultWhisperModel
	}

	body, contentType := streamMultipart(audio, opts)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.Endpoint+"/audio/transcriptions", body)
	if err != nil {
		_ = body.Close()
		return nil, &model.TranscriptionError{Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if w.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.APIKey)
	}

	client := w.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &model.TranscriptionError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var apiErr whisperError
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return nil, &model.TranscriptionError{Err: fmt.Errorf("status %d: %s", resp.StatusCode, msg)}
	}

	var decoded whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &model.TranscriptionError{Err: fmt.Errorf("decode response: %w", err)}
	}

	t := &model.Transcript{Text: decoded.Text, Words: make([]model.Word, 0, len(decoded.Words))}
	for _, word := range decoded.Words {
		t.Words = append(t.Words, model.Word{Word: word.Word, Start: word.Start, End: word.End})
	}
	return finish(t)
}

// streamMultipart returns a body that writes the form fields and then copies
// audio into the file part on demand. A read error on audio aborts the body.
func streamMultipart(audio io.Reader, opts Options) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeForm(mw, audio, opts)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()
	return pr, mw.FormDataContentType()
}

func writeForm(mw *multipart.Writer, audio io.Reader, opts Options) error {
	fields := [][2]string{
		{"model", opts.Model},
		{"response_format", "verbose_json"},
		{"timestamp_granularities[]", "word"},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, opts.FileName))
	header.Set("Content-Type", opts.MIMEType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	n, err := io.Copy(part, audio)
	if err != nil {
		return fmt.Errorf("read audio: %w", err)
	}
	if n == 0 {
		return errors.New("audio stream is empty")
	}
	return nil
}

var _ Transcriber = (*WhisperClient)(nil)
