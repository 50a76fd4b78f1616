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
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
	"github.com/stretchr/testify/assert"
)

func TestTranscriptNormalizeIsMonotonic(t *testing.T) {
	tr := &model.Transcript{Words: []model.Word{
		{Word: "morning", Start: 0.4, End: 0.8},
		{Word: "good", Start: 0.0, End: 0.4},
		{Word: "team", Start: 0.8, End: 1.1},
		{Word: "all", Start: 0.8, End: 0.9},
	}}
	assert.False(t, tr.IsMonotonic())

	tr.Normalize()

	assert.True(t, tr.IsMonotonic())
	assert.Equal(t, "good morning team all", tr.Text)
	assert.Equal(t, "[0.00] good [0.40] morning [0.80] team [0.80] all", tr.Render())
}

func TestEmptyTranscriptIsAnError(t *testing.T) {
	var empty *model.EmptyTranscriptError
	assert.True(t, errors.As((&model.Transcript{}).Validate(), &empty))
	assert.NoError(t, (&model.Transcript{Words: []model.Word{{Word: "x"}}}).Validate())
}

func TestFrameFileNameUsesFixedPrecision(t *testing.T) {
	assert.Equal(t, "frame_12.346.jpg", model.FrameFileName(12.3456))
	assert.Equal(t, model.FrameFileName(7.0001), model.FrameFileName(7.0004))
	assert.NotEqual(t, model.FrameFileName(7.001), model.FrameFileName(7.002))
	assert.Equal(t, "frame_0.000.jpg", model.NewFrameJob(0, "start").FileName)
}

func TestNewReportInstance(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 20, 30, 123_000_000, time.FixedZone("X", 3600))
	inst := model.NewReportInstance("u-1", "Acme", "Tower", at)

	assert.Equal(t, "2024-05-01T09-20-30-123Z", inst.InstanceID)
	assert.Equal(t, time.UTC, inst.CreatedAt.Location())
	assert.NotEqual(t, inst.InstanceID, model.NewReportInstance("u-1", "Acme", "Tower", at.Add(time.Millisecond)).InstanceID)
}

func TestNewReportIndexRow(t *testing.T) {
	inst := model.NewReportInstance("u-1", "acme", "tower", time.Now())
	key := "tenant/u-1/acme/tower/report_x/daily_report.json"
	row := model.NewReportIndexRow(inst, key, 3, "transcript")

	assert.Equal(t, uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String(), row.ReportID)
	assert.Equal(t, 3, row.ImageCount)
	assert.WithinDuration(t, time.Now(), row.CreatedAt, time.Second)
}
