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

package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rawSynthesized = `{
  "narrative": "Poured the east footing.",
  "issues": [{"description": "Rebar short", "severity": "medium"}],
  "images": [
    {"timestamp": 12.5, "caption": "Footing forms"},
    {"timestamp": "3.25", "caption": "Rebar delivery"}
  ]
}`

func TestParseReportDocumentReadsCandidates(t *testing.T) {
	doc, err := model.ParseReportDocument([]byte(rawSynthesized))
	require.NoError(t, err)

	assert.Len(t, doc.Candidates, 2)
	assert.Equal(t, model.Seconds(12.5), doc.Candidates[0].Timestamp)
	assert.Equal(t, model.Seconds(3.25), doc.Candidates[1].Timestamp)
	assert.False(t, doc.ImagesFinal())
	assert.True(t, doc.HasField("narrative"))
	assert.True(t, doc.HasField(model.FieldImages))
	assert.False(t, doc.HasField(model.FieldMetadata))
}

func TestParseReportDocumentRejectsNonObjects(t *testing.T) {
	for _, in := range []string{``, `[]`, `"text"`, `null`, `{"images": 3}`} {
		_, err := model.ParseReportDocument([]byte(in))
		assert.Error(t, err, in)
	}
}

func TestSetImagesSortsAndValidates(t *testing.T) {
	doc, err := model.ParseReportDocument([]byte(rawSynthesized))
	require.NoError(t, err)

	err = doc.SetImages([]model.ImageRecord{
		{FileName: "frame_12.500.jpg", Caption: "Footing forms", URL: "https://b/frame_12.500.jpg"},
		{FileName: "frame_3.250.jpg", Caption: "Rebar delivery", URL: "https://b/frame_3.250.jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, "frame_12.500.jpg", doc.Images[0].FileName)
	assert.Nil(t, doc.Candidates)

	assert.Error(t, doc.SetImages([]model.ImageRecord{{FileName: "a.jpg"}}))
	assert.Error(t, doc.SetImages([]model.ImageRecord{
		{FileName: "a.jpg", URL: "u1"},
		{FileName: "a.jpg", URL: "u2"},
	}))
}

func TestAttachMetadataOnlyAfterImagesAndOnlyOnce(t *testing.T) {
	doc, err := model.ParseReportDocument([]byte(rawSynthesized))
	require.NoError(t, err)

	meta := model.ReportMetadata{Customer: "acme", Project: "tower"}
	assets := model.AssetURLs{BaseURL: "https://b/base/"}

	assert.Error(t, doc.AttachMetadata(meta, assets), "metadata must wait for images")

	require.NoError(t, doc.SetImages(nil))
	require.NoError(t, doc.AttachMetadata(meta, assets))
	assert.Error(t, doc.AttachMetadata(meta, assets), "metadata is attached exactly once")
}

func TestPublishedDocumentRoundTrip(t *testing.T) {
	doc, err := model.ParseReportDocument([]byte(rawSynthesized))
	require.NoError(t, err)
	require.NoError(t, doc.SetImages([]model.ImageRecord{
		{FileName: "frame_3.250.jpg", Caption: "Rebar delivery", URL: "https://b/frame_3.250.jpg"},
	}))
	cfg := model.TenantConfig{PreparerName: "Dana", CompanyName: "Acme Build"}
	require.NoError(t, doc.AttachMetadata(cfg.Metadata("acme", "tower", time.Unix(0, 0)), model.AssetURLs{ViewerURL: "v"}))

	out, err := doc.Indented()
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(out, &generic))
	assert.Contains(t, generic, "narrative")
	assert.Contains(t, generic, model.FieldMetadata)
	assert.Contains(t, generic, model.FieldAssets)

	again, err := model.ParseReportDocument(out)
	require.NoError(t, err)
	assert.True(t, again.ImagesFinal())
	assert.Equal(t, doc.Images, again.Images)
	assert.Equal(t, "Dana", again.Metadata.PreparedBy.Name)
	assert.Equal(t, "v", again.Assets.ViewerURL)
}
