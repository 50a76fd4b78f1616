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

package transcription_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-daily-report/internal/cloud"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/transcription"
	test "github.com/jaycherian/gcp-go-daily-report/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func whisperServer(t *testing.T, status int, body string, seen *http.Request, seenAudio *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		if seen != nil {
			*seen = *r
		}
		if seenAudio != nil {
			if f, _, err := r.FormFile("file"); assert.NoError(t, err) {
				data, _ := io.ReadAll(f)
				*seenAudio = string(data)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWhisperSendsWordGranularityAndSortsWords(t *testing.T) {
	var req http.Request
	var audio string
	srv := whisperServer(t, http.StatusOK, `{
		"text": "good morning team",
		"words": [
			{"word": "team", "start": 1.2, "end": 1.5},
			{"word": "good", "start": 0.0, "end": 0.4},
			{"word": "morning", "start": 0.4, "end": 1.1}
		]}`, &req, &audio)

	client := transcription.NewWhisperClient(srv.URL, "sk-test", 5*time.Second)
	tr, err := client.Transcribe(context.Background(), strings.NewReader("ID3audio"), transcription.Options{Model: "whisper-1"})
	require.NoError(t, err)

	assert.Equal(t, "verbose_json", req.FormValue("response_format"))
	assert.Equal(t, "word", req.MultipartForm.Value["timestamp_granularities[]"][0])
	assert.Equal(t, "whisper-1", req.FormValue("model"))
	assert.Equal(t, "Bearer sk-test", req.Header.Get("Authorization"))
	assert.Equal(t, "ID3audio", audio)

	require.Len(t, tr.Words, 3)
	assert.True(t, tr.IsMonotonic())
	assert.Equal(t, []string{"good", "morning", "team"}, []string{tr.Words[0].Word, tr.Words[1].Word, tr.Words[2].Word})
}

func TestWhisperEmptyWordsIsEmptyTranscript(t *testing.T) {
	srv := whisperServer(t, http.StatusOK, `{"text": "", "words": []}`, nil, nil)
	client := transcription.NewWhisperClient(srv.URL, "", time.Second)

	_, err := client.Transcribe(context.Background(), strings.NewReader("silence"), transcription.Options{})
	var empty *model.EmptyTranscriptError
	assert.ErrorAs(t, err, &empty)
}

func TestWhisperUpstreamErrorIsTranscriptionError(t *testing.T) {
	srv := whisperServer(t, http.StatusTooManyRequests, `{"error": {"message": "rate limited", "type": "requests"}}`, nil, nil)
	client := transcription.NewWhisperClient(srv.URL, "", time.Second)

	_, err := client.Transcribe(context.Background(), strings.NewReader("audio"), transcription.Options{})
	var te *model.TranscriptionError
	require.ErrorAs(t, err, &te)
	assert.Contains(t, te.Error(), "rate limited")
	assert.Contains(t, te.Error(), "429")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("transcoder died") }

func TestWhisperAudioReadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()
	client := transcription.NewWhisperClient(srv.URL, "", time.Second)

	_, err := client.Transcribe(context.Background(), failingReader{}, transcription.Options{})
	var te *model.TranscriptionError
	assert.ErrorAs(t, err, &te)
}

func TestWhisperCancelled(t *testing.T) {
	srv := whisperServer(t, http.StatusOK, `{"words":[{"word":"a","start":0,"end":1}]}`, nil, nil)
	client := transcription.NewWhisperClient(srv.URL, "", time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Transcribe(ctx, strings.NewReader("audio"), transcription.Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGeminiTranscriberParsesTimedWords(t *testing.T) {
	reply, _ := json.Marshal(model.Transcript{Words: []model.Word{
		{Word: "second", Start: 2, End: 2.5},
		{Word: "first", Start: 0.5, End: 1},
	}})
	gen := test.NewFakeGenerator("```json\n" + string(reply) + "\n```")
	m := cloud.NewQuotaAwareModel(nil, "gemini-2.0-flash", gen, 0)

	tr, err := transcription.NewGeminiTranscriber(m, nil).Transcribe(context.Background(), strings.NewReader("ID3"), transcription.Options{})
	require.NoError(t, err)
	assert.Equal(t, "first", tr.Words[0].Word)
	assert.Equal(t, "first second", tr.Text)

	call := gen.LastCall()
	assert.Equal(t, "application/json", call.Config.ResponseMIMEType)
	require.NotNil(t, call.Config.ResponseSchema)
	require.Len(t, call.Contents, 1)
	require.NotNil(t, call.Contents[0].Parts[0].InlineData)
	assert.Equal(t, "audio/mpeg", call.Contents[0].Parts[0].InlineData.MIMEType)
}

func TestGeminiTranscriberEmpty(t *testing.T) {
	gen := test.NewFakeGenerator(`{"text": "", "words": []}`)
	m := cloud.NewQuotaAwareModel(nil, "m", gen, 0)

	_, err := transcription.NewGeminiTranscriber(m, nil).Transcribe(context.Background(), strings.NewReader("ID3"), transcription.Options{})
	var empty *model.EmptyTranscriptError
	assert.ErrorAs(t, err, &empty)

	_, err = transcription.NewGeminiTranscriber(m, nil).Transcribe(context.Background(), strings.NewReader(""), transcription.Options{})
	var te *model.TranscriptionError
	assert.ErrorAs(t, err, &te)
}
