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

package frames_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/jaycherian/gcp-go-daily-report/internal/core/frames"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(candidates ...model.FrameCandidate) *model.ReportDocument {
	return &model.ReportDocument{Fields: map[string]json.RawMessage{}, Candidates: candidates}
}

func TestSelectMapsCandidatesInOrder(t *testing.T) {
	jobs, rejected, err := frames.Select(doc(
		model.FrameCandidate{Timestamp: 12.5, Caption: "Footing"},
		model.FrameCandidate{Timestamp: 3.25, Caption: "Rebar"},
	))
	require.NoError(t, err)
	assert.Empty(t, rejected)
	require.Len(t, jobs, 2)
	assert.Equal(t, "frame_12.500.jpg", jobs[0].FileName)
	assert.Equal(t, "Footing", jobs[0].Caption)
	assert.Equal(t, "frame_3.250.jpg", jobs[1].FileName)
}

func TestSelectFileNamesAreInjective(t *testing.T) {
	jobs, rejected, err := frames.Select(doc(
		model.FrameCandidate{Timestamp: 1.0001, Caption: "a"},
		model.FrameCandidate{Timestamp: 1.0002, Caption: "b"},
		model.FrameCandidate{Timestamp: 1.001, Caption: "c"},
	))
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].Caption)
	assert.Equal(t, "c", jobs[1].Caption)
	require.Len(t, rejected, 1)
	assert.Equal(t, 1, rejected[0].Index)

	names := map[string]bool{}
	for _, j := range jobs {
		assert.False(t, names[j.FileName])
		names[j.FileName] = true
	}
}

func TestSelectRejectsInvalidTimestamps(t *testing.T) {
	jobs, rejected, err := frames.Select(doc(
		model.FrameCandidate{Timestamp: -1, Caption: "before start"},
		model.FrameCandidate{Timestamp: model.Seconds(math.NaN()), Caption: "nan"},
		model.FrameCandidate{Timestamp: 0, Caption: "first frame"},
	))
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "frame_0.000.jpg", jobs[0].FileName)
	assert.Len(t, rejected, 2)
}

func TestSelectNegativeZeroIsZero(t *testing.T) {
	jobs, rejected, err := frames.Select(doc(
		model.FrameCandidate{Timestamp: model.Seconds(math.Copysign(0, -1)), Caption: "start"},
		model.FrameCandidate{Timestamp: 0, Caption: "start again"},
	))
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "frame_0.000.jpg", jobs[0].FileName)
	assert.False(t, math.Signbit(jobs[0].TimestampSeconds))
	require.Len(t, rejected, 1)
	assert.Equal(t, 1, rejected[0].Index)
}

func TestSelectNoCandidates(t *testing.T) {
	var empty *model.NoCandidateFramesError

	_, _, err := frames.Select(doc())
	assert.ErrorAs(t, err, &empty)

	_, _, err = frames.Select(nil)
	assert.ErrorAs(t, err, &empty)

	_, rejected, err := frames.Select(doc(model.FrameCandidate{Timestamp: -3}))
	assert.ErrorAs(t, err, &empty)
	assert.Len(t, rejected, 1)
}

func TestTimestampIndex(t *testing.T) {
	data, err := frames.TimestampIndex([]model.FrameJob{model.NewFrameJob(2, "x")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"timestamps":[{"timestamp":2,"caption":"x","fileName":"frame_2.000.jpg"}]}`, string(data))
}
