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

package synthesis_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jaycherian/gcp-go-daily-report/internal/cloud"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/frames"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/synthesis"
	test "github.com/jaycherian/gcp-go-daily-report/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reply = `{
  "narrative": "Poured the east footing.",
  "workCompleted": ["footing"],
  "issues": [],
  "materials": ["concrete"],
  "nextSteps": ["strip forms"],
  "images": [{"timestamp": 12.5, "caption": "Footing"}, {"timestamp": "3.25", "caption": "Rebar"}]
}`

func transcript() *model.Transcript {
	return &model.Transcript{Words: []model.Word{
		{Word: "Poured", Start: 0, End: 0.4},
		{Word: "footing", Start: 0.41, End: 0.9},
	}}
}

func request() synthesis.Request {
	return synthesis.Request{
		Transcript:   transcript(),
		SystemPrompt: model.ExampleSystemPrompt,
		Schema:       json.RawMessage(model.ExampleReportSchema),
		ModelName:    "gemini-2.0-flash",
	}
}

func TestTranscriptSynthesizerBuildsPromptAndParses(t *testing.T) {
	gen := test.NewFakeGenerator("```json\n" + reply + "\n```")
	s := synthesis.NewTranscriptSynthesizer(cloud.NewQuotaAwareModel(nil, "default", gen, 0), nil)

	doc, err := s.Synthesize(context.Background(), request())
	require.NoError(t, err)
	require.Len(t, doc.Candidates, 2)
	assert.Equal(t, model.Seconds(3.25), doc.Candidates[1].Timestamp)
	assert.True(t, doc.HasField("narrative"))

	call := gen.LastCall()
	assert.Equal(t, "gemini-2.0-flash", call.Model)
	assert.Equal(t, "application/json", call.Config.ResponseMIMEType)
	assert.Equal(t, model.ExampleSystemPrompt, call.Config.SystemInstruction.Parts[0].Text)
	parts := call.Contents[0].Parts
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0].Text, "[0.00] Poured [0.41] footing")
	assert.Contains(t, parts[0].Text, "Never mention the transcript or video walkthrough directly.")
	assert.JSONEq(t, model.ExampleReportSchema, parts[1].Text)
	assert.Equal(t, synthesis.ModeTranscript, s.Mode())
}

func TestVideoSynthesizerSendsFileReference(t *testing.T) {
	gen := test.NewFakeGenerator(reply)
	s := synthesis.NewVideoSynthesizer(cloud.NewQuotaAwareModel(nil, "default", gen, 0), nil)
	req := request()
	req.Transcript = nil
	req.Video = &synthesis.VideoRef{URI: "gs://bucket/tenant/t/c/p/uploads/walk.mp4", MIMEType: "video/mp4"}

	doc, err := s.Synthesize(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, doc.Candidates, 2)

	parts := gen.LastCall().Contents[0].Parts
	require.NotNil(t, parts[0].FileData)
	assert.Equal(t, "gs://bucket/tenant/t/c/p/uploads/walk.mp4", parts[0].FileData.FileURI)
	assert.Equal(t, "video/mp4", parts[0].FileData.MIMEType)
	assert.NotContains(t, parts[1].Text, "transcript")
}

func TestSynthesisFailures(t *testing.T) {
	cases := map[string]string{
		"empty":          "   ",
		"prose only":     "I could not write the report.",
		"not an object":  "[1, 2, 3]",
		"malformed":      `{"narrative": "x", `,
		"missing fields": `{"narrative": "only this"}`,
	}
	for name, out := range cases {
		t.Run(name, func(t *testing.T) {
			gen := test.NewFakeGenerator(out)
			s := synthesis.NewTranscriptSynthesizer(cloud.NewQuotaAwareModel(nil, "m", gen, 0), nil)
			_, err := s.Synthesize(context.Background(), request())
			var se *model.SynthesisError
			assert.ErrorAs(t, err, &se)
		})
	}
}

func TestSynthesisServiceErrorAfterRetries(t *testing.T) {
	cloud.RetryBackoff = 0
	fail := errors.New("503")
	gen := test.NewFakeGenerator(reply)
	gen.Errors = []error{fail, fail, fail, fail}
	s := synthesis.NewTranscriptSynthesizer(cloud.NewQuotaAwareModel(nil, "m", gen, 0), nil)

	_, err := s.Synthesize(context.Background(), request())
	var se *model.SynthesisError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, fail)
}

func TestSynthesisRejectsBadRequest(t *testing.T) {
	s := synthesis.NewTranscriptSynthesizer(cloud.NewQuotaAwareModel(nil, "m", test.NewFakeGenerator(reply), 0), nil)

	req := request()
	req.Schema = json.RawMessage(`"just a string"`)
	_, err := s.Synthesize(context.Background(), req)
	var se *model.SynthesisError
	assert.ErrorAs(t, err, &se)

	req = request()
	req.Transcript = &model.Transcript{}
	_, err = s.Synthesize(context.Background(), req)
	assert.ErrorAs(t, err, &se)
}

func TestParseResponseTakesEmbeddedObject(t *testing.T) {
	doc, err := synthesis.ParseResponse("Here is the report:\n"+reply+"\nThanks!", json.RawMessage(model.ExampleReportSchema))
	require.NoError(t, err)
	assert.Len(t, doc.Candidates, 2)
}

func TestParseResponseKeepsCandidatesWithFileNames(t *testing.T) {
	out := `{"narrative": "x", "workCompleted": [], "issues": [], "materials": [], "nextSteps": [],
  "images": [{"timestamp": 3.5, "caption": "wall", "fileName": "wall.jpg"},
             {"timestamp": 7, "caption": "roof", "fileName": "roof.jpg"}]}`
	doc, err := synthesis.ParseResponse(out, json.RawMessage(model.ExampleReportSchema))
	require.NoError(t, err)
	assert.False(t, doc.ImagesFinal())
	assert.Empty(t, doc.Images)
	require.Len(t, doc.Candidates, 2)
	assert.Equal(t, model.Seconds(3.5), doc.Candidates[0].Timestamp)

	jobs, _, err := frames.Select(doc)
	require.NoError(t, err)
	assert.Equal(t, "frame_3.500.jpg", jobs[0].FileName)
}

func TestRequiredFields(t *testing.T) {
	assert.Equal(t, []string{"narrative", "workCompleted", "issues", "materials", "nextSteps", "images"},
		synthesis.RequiredFields(json.RawMessage(model.ExampleReportSchema)))
	assert.Nil(t, synthesis.RequiredFields(json.RawMessage(`{"type":"object","properties":{"a":{}}}`)))
	assert.Equal(t, []string{"images", "summary"},
		synthesis.RequiredFields(json.RawMessage(`{"summary":"string","images":[{"timestamp":0,"caption":""}]}`)))
}
