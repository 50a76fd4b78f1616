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

// Package keys derives the storage keys of every artifact that belongs to a
// report, and parses them back. Other tools (the viewer and the editor)
// rebuild these paths on their own, so the layout is a fixed contract:
//
//	tenant/{tenantId}/{customer}/{project}/report_{instanceId}/{suffix}
//
// Tenant, customer and project segments are escaped to lowercase [a-z0-9._-];
// any other byte becomes '_'. Escaping is lossy, so parsing returns the
// escaped form only. Instance ids keep their case.
package keys

import (
	"path"
	"strings"

	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
)

// Key layout constants.
const (
	RootSegment  = "tenant"
	FolderPrefix = "report_"
	Separator    = "/"

	ReportFile        = "daily_report.json"
	TranscriptFile    = "transcription.json"
	FrameIndexFile    = "frame_timestamps.json"
	ViewerFile        = "report-viewer.html"
	PDFFile           = "daily_report.pdf"
	AudioFile         = "audio.mp3"
	FramesDir         = "extracted_frames"
	SourceVideoPrefix = "source_video"
	ConfigDir         = "config"
	UploadsDir        = "uploads"
)

// Base is the parsed form of a report base prefix.
type Base struct {
	TenantID   string
	Customer   string
	Project    string
	InstanceID string
}

// Escape normalises one path segment.
func Escape(segment string) string {
	segment = strings.ToLower(strings.TrimSpace(segment))
	if segment == "" {
		return "_"
	}
	b := []byte(segment)
	for i, c := range b {
		if !allowed(c) {
			b[i] = '_'
		}
	}
	out := string(b)
	if out == "." || out == ".." {
		return strings.Repeat("_", len(out))
	}
	return out
}

func allowed(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '.' || c == '_' || c == '-'
}

func escapeInstance(instanceID string) string {
	b := []byte(strings.TrimSpace(instanceID))
	for i, c := range b {
		if !allowed(c) && !(c >= 'A' && c <= 'Z') {
			b[i] = '_'
		}
	}
	return string(b)
}

// FolderName is the report folder for an instance id.
func FolderName(instanceID string) string {
	return FolderPrefix + escapeInstance(instanceID)
}

// BasePrefix returns the base of every key of one report, without a
// trailing separator.
func BasePrefix(tenantID, customer, project, instanceID string) string {
	return strings.Join([]string{
		RootSegment,
		Escape(tenantID),
		Escape(customer),
		Escape(project),
		FolderName(instanceID),
	}, Separator)
}

// BaseFor is BasePrefix for a ReportInstance.
func BaseFor(instance model.ReportInstance) string {
	return BasePrefix(instance.TenantID, instance.Customer, instance.Project, instance.InstanceID)
}

// AssetKey joins a base and a suffix such as "extracted_frames/frame_1.000.jpg".
func AssetKey(base, suffix string) string {
	return strings.TrimSuffix(base, Separator) + Separator + strings.TrimPrefix(suffix, Separator)
}

// FrameKey is the key of one extracted frame.
func FrameKey(base, fileName string) string {
	return AssetKey(base, path.Join(FramesDir, fileName))
}

// ReportKey is the key of the canonical report document.
func ReportKey(base string) string {
	return AssetKey(base, ReportFile)
}

// SourceVideoKey keeps the original extension of the uploaded video.
func SourceVideoKey(base, ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return AssetKey(base, SourceVideoPrefix+ext)
}

// TenantPrefix is the root of everything a tenant owns.
func TenantPrefix(tenantID string) string {
	return RootSegment + Separator + Escape(tenantID) + Separator
}

// TenantAssetKey addresses tenant level files, such as the logo.
func TenantAssetKey(tenantID, fileName string) string {
	return TenantPrefix(tenantID) + ConfigDir + Separator + fileName
}

// ProjectPrefix lists the reports of one project.
func ProjectPrefix(tenantID, customer, project string) string {
	return strings.Join([]string{RootSegment, Escape(tenantID), Escape(customer), Escape(project)}, Separator) + Separator
}

// ParseBase parses a base prefix, or any asset key below it.
func ParseBase(key string) (Base, error) {
	parts := strings.Split(strings.Trim(key, Separator), Separator)
	if len(parts) < 5 {
		return Base{}, &model.ParseError{Key: key, Reason: "too few segments"}
	}
	if parts[0] != RootSegment {
		return Base{}, &model.ParseError{Key: key, Reason: "missing " + RootSegment + " root"}
	}
	for i := 1; i < 4; i++ {
		if parts[i] == "" {
			return Base{}, &model.ParseError{Key: key, Reason: "empty segment"}
		}
		if Escape(parts[i]) != parts[i] {
			return Base{}, &model.ParseError{Key: key, Reason: "segment " + parts[i] + " is not escaped"}
		}
	}
	if !strings.HasPrefix(parts[4], FolderPrefix) || len(parts[4]) == len(FolderPrefix) {
		return Base{}, &model.ParseError{Key: key, Reason: "folder does not start with " + FolderPrefix}
	}
	if escapeInstance(parts[4]) != parts[4] {
		return Base{}, &model.ParseError{Key: key, Reason: "folder " + parts[4] + " is not escaped"}
	}
	return Base{
		TenantID:   parts[1],
		Customer:   parts[2],
		Project:    parts[3],
		InstanceID: strings.TrimPrefix(parts[4], FolderPrefix),
	}, nil
}

// Prefix rebuilds the base prefix of a parsed key.
func (b Base) Prefix() string {
	return BasePrefix(b.TenantID, b.Customer, b.Project, b.InstanceID)
}

// ParseUpload splits an upload key tenant/{t}/{customer}/{project}/uploads/{file}.
func ParseUpload(key string) (tenantID, customer, project, fileName string, err error) {
	parts := strings.Split(strings.Trim(key, Separator), Separator)
	if len(parts) != 6 || parts[0] != RootSegment || parts[4] != UploadsDir || parts[5] == "" {
		return "", "", "", "", &model.ParseError{Key: key, Reason: "not an upload key"}
	}
	return parts[1], parts[2], parts[3], parts[5], nil
}
