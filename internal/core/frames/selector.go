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

// Package frames is the Frame Selector. It turns the image candidates of a
// synthesized report into extraction jobs.
package frames

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
)

// Rejection explains why a candidate did not become a job.
type Rejection struct {
	Index     int
	Timestamp float64
	Reason    string
}

func (r Rejection) Error() string {
	return fmt.Sprintf("image candidate %d at %v rejected: %s", r.Index, r.Timestamp, r.Reason)
}

// Select maps every usable candidate to one FrameJob, in candidate order.
// Negative and non-finite timestamps are rejected. Candidates that land on
// the same file name collapse to the first one, which keeps image file names
// unique. A document with no candidates, or none usable, fails with
// NoCandidateFramesError.
func Select(doc *model.ReportDocument) ([]model.FrameJob, []Rejection, error) {
	if doc == nil || len(doc.Candidates) == 0 {
		return nil, nil, &model.NoCandidateFramesError{}
	}
	jobs := make([]model.FrameJob, 0, len(doc.Candidates))
	var rejected []Rejection
	seen := make(map[string]bool, len(doc.Candidates))
	for i, c := range doc.Candidates {
		ts := float64(c.Timestamp)
		switch {
		case math.IsNaN(ts) || math.IsInf(ts, 0):
			rejected = append(rejected, Rejection{Index: i, Timestamp: ts, Reason: "timestamp is not finite"})
			continue
		case ts < 0:
			rejected = append(rejected, Rejection{Index: i, Timestamp: ts, Reason: "timestamp is negative"})
			continue
		}
		job := model.NewFrameJob(ts, c.Caption)
		if seen[job.FileName] {
			rejected = append(rejected, Rejection{Index: i, Timestamp: ts, Reason: "duplicates " + job.FileName})
			continue
		}
		seen[job.FileName] = true
		jobs = append(jobs, job)
	}
	if len(jobs) == 0 {
		return nil, rejected, &model.NoCandidateFramesError{}
	}
	return jobs, rejected, nil
}

// TimestampIndex serialises the jobs as the frame_timestamps.json artifact.
func TimestampIndex(jobs []model.FrameJob) ([]byte, error) {
	if jobs == nil {
		jobs = []model.FrameJob{}
	}
	return json.MarshalIndent(struct {
		Timestamps []model.FrameJob `json:"timestamps"`
	}{jobs}, "", "  ")
}
