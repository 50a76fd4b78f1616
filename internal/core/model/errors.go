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

// Package model defines the core data structures of the report pipeline.
// This file holds the error taxonomy. Every failure the pipeline can surface
// is one of the types below; each wraps its upstream cause so callers can use
// errors.As to branch on the kind and errors.Unwrap to reach the cause.
//
// Fatal kinds abort the pipeline. FrameJobError is the only recoverable kind
// the orchestrator records as a warning instead of failing the job.
package model

import (
	"fmt"
	"strings"
)

// StageError is the single error handed back to the caller of the pipeline.
// Stage names the command that failed and Err carries the taxonomy error.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ConfigurationError reports a tenant configuration missing the fields the
// pipeline needs before it can start (model name, prompt, schema).
type ConfigurationError struct {
	TenantID string
	Missing  []string
	Err      error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("tenant %q configuration incomplete", e.TenantID)
	if len(e.Missing) > 0 {
		msg += ": missing " + strings.Join(e.Missing, ", ")
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// MediaReadError means the video source could not be opened or read.
type MediaReadError struct {
	Source string
	Err    error
}

func (e *MediaReadError) Error() string {
	return fmt.Sprintf("cannot read media source %s: %v", e.Source, e.Err)
}

func (e *MediaReadError) Unwrap() error { return e.Err }

// TranscodeError means the decode process failed. Stderr holds the tail of
// the process diagnostics.
type TranscodeError struct {
	Op       string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *TranscodeError) Error() string {
	msg := fmt.Sprintf("%s transcode failed (exit %d)", e.Op, e.ExitCode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// TranscriptionError wraps a failure of the speech-to-text service.
type TranscriptionError struct {
	Err error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription failed: %v", e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

// EmptyTranscriptError means the transcription produced no words.
type EmptyTranscriptError struct{}

func (e *EmptyTranscriptError) Error() string { return "transcription produced no words" }

// SynthesisError wraps a generative service failure or an unusable response.
type SynthesisError struct {
	Reason string
	Err    error
}

func (e *SynthesisError) Error() string {
	if e.Err == nil {
		return "report synthesis failed: " + e.Reason
	}
	return fmt.Sprintf("report synthesis failed: %s: %v", e.Reason, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// NoCandidateFramesError means the synthesized report proposed no images.
type NoCandidateFramesError struct{}

func (e *NoCandidateFramesError) Error() string {
	return "synthesized report carried no image candidates"
}

// FrameJobError is recoverable: one frame failed extraction or upload.
type FrameJobError struct {
	FileName  string
	Timestamp float64
	Err       error
}

func (e *FrameJobError) Error() string {
	return fmt.Sprintf("frame %s at %.3fs failed: %v", e.FileName, e.Timestamp, e.Err)
}

func (e *FrameJobError) Unwrap() error { return e.Err }

// IncompleteProfileError means identity fields needed for report metadata
// are missing from the tenant profile.
type IncompleteProfileError struct {
	TenantID string
	Missing  []string
}

func (e *IncompleteProfileError) Error() string {
	return fmt.Sprintf("tenant %q profile incomplete: missing %s", e.TenantID, strings.Join(e.Missing, ", "))
}

// PublishError wraps a failed write of a report artifact.
type PublishError struct {
	Key string
	Err error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s failed: %v", e.Key, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// StoreUnavailableError is surfaced by the blob gateway on network, auth or
// expired-URL failures.
type StoreUnavailableError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("blob store %s %s unavailable: %v", e.Op, e.Key, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// NotFoundError is surfaced by the blob gateway for missing keys.
type NotFoundError struct {
	Key string
	Err error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("blob %s not found", e.Key)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// ParseError is returned when a storage key does not have the report
// namespace shape.
type ParseError struct {
	Key    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse report key %q: %s", e.Key, e.Reason)
}
