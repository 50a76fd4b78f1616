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

package model

import "fmt"

// FrameFileNameFormat fixes frame timestamps to millisecond precision so that
// re-runs with the same timestamps produce the same file names.
const FrameFileNameFormat = "frame_%.3f.jpg"

// FrameJob is one requested still-image extraction.
type FrameJob struct {
	TimestampSeconds float64 `json:"timestamp"`
	Caption          string  `json:"caption"`
	FileName         string  `json:"fileName"`
}

// FrameFileName derives the deterministic file name for a timestamp.
func FrameFileName(timestampSeconds float64) string {
	// Negative zero prints as "-0.000".
	if timestampSeconds == 0 {
		timestampSeconds = 0
	}
	return fmt.Sprintf(FrameFileNameFormat, timestampSeconds)
}

// NewFrameJob builds a job and its file name.
func NewFrameJob(timestampSeconds float64, caption string) FrameJob {
	if timestampSeconds == 0 {
		timestampSeconds = 0
	}
	return FrameJob{
		TimestampSeconds: timestampSeconds,
		Caption:          caption,
		FileName:         FrameFileName(timestampSeconds),
	}
}
