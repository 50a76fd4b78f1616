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

package media

import (
	"path"
	"strings"

	"github.com/h2non/filetype"
)

// DefaultVideoMIMEType is used when neither content nor name identify the video.
const DefaultVideoMIMEType = "video/mp4"

// VideoMIMEType identifies a video from its leading bytes, falling back to
// the extension of name. header may be nil.
func VideoMIMEType(name string, header []byte) string {
	if len(header) > 0 {
		if kind, err := filetype.Match(header); err == nil && kind != filetype.Unknown && filetype.IsVideo(header) {
			return kind.MIME.Value
		}
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(stripQuery(name))), ".")
	if ext != "" {
		if kind := filetype.GetType(ext); kind != filetype.Unknown && strings.HasPrefix(kind.MIME.Value, "video/") {
			return kind.MIME.Value
		}
	}
	return DefaultVideoMIMEType
}

// ImageMIMEType identifies an uploaded image, defaulting to JPEG.
func ImageMIMEType(name string, header []byte) string {
	if len(header) > 0 && filetype.IsImage(header) {
		if kind, err := filetype.Match(header); err == nil {
			return kind.MIME.Value
		}
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	if kind := filetype.GetType(ext); kind != filetype.Unknown && strings.HasPrefix(kind.MIME.Value, "image/") {
		return kind.MIME.Value
	}
	return "image/jpeg"
}

// VideoExtension returns the extension, with its dot, used to store a video
// of the given MIME type.
func VideoExtension(name, mimeType string) string {
	if ext := strings.ToLower(path.Ext(stripQuery(name))); ext != "" {
		return ext
	}
	switch mimeType {
	case "video/quicktime":
		return ".mov"
	case "video/webm":
		return ".webm"
	case "video/x-matroska":
		return ".mkv"
	case "video/x-msvideo":
		return ".avi"
	}
	return ".mp4"
}

func stripQuery(name string) string {
	if i := strings.IndexByte(name, '?'); i >= 0 {
		return name[:i]
	}
	return name
}

// IsVideo reports whether an object looks like a video from its declared
// content type or, failing that, its extension.
func IsVideo(name, mimeType string) bool {
	if strings.HasPrefix(mimeType, "video/") {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(stripQuery(name))), ".")
	kind := filetype.GetType(ext)
	return kind != filetype.Unknown && strings.HasPrefix(kind.MIME.Value, "video/")
}
