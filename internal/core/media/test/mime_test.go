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

package media_test

import (
	"testing"

	"github.com/jaycherian/gcp-go-daily-report/internal/core/media"
	"github.com/stretchr/testify/assert"
)

func TestVideoMIMETypeFromExtension(t *testing.T) {
	assert.Equal(t, "video/mp4", media.VideoMIMEType("walk.MP4", nil))
	assert.Equal(t, "video/quicktime", media.VideoMIMEType("https://x/walk.mov?sig=1", nil))
	assert.Equal(t, "video/webm", media.VideoMIMEType("walk.webm", nil))
	assert.Equal(t, media.DefaultVideoMIMEType, media.VideoMIMEType("walk", nil))
	assert.Equal(t, media.DefaultVideoMIMEType, media.VideoMIMEType("notes.txt", nil))
}

func TestVideoMIMETypeSniffsContent(t *testing.T) {
	avi := append([]byte("RIFF\x00\x00\x00\x00AVI LIST"), make([]byte, 16)...)
	assert.Equal(t, "video/x-msvideo", media.VideoMIMEType("upload.bin", avi))
}

func TestImageMIMEType(t *testing.T) {
	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D}
	assert.Equal(t, "image/png", media.ImageMIMEType("photo.jpg", png))
	assert.Equal(t, "image/jpeg", media.ImageMIMEType("photo.jpg", nil))
	assert.Equal(t, "image/jpeg", media.ImageMIMEType("photo", nil))
}

func TestVideoExtension(t *testing.T) {
	assert.Equal(t, ".mov", media.VideoExtension("a/b/clip.MOV", ""))
	assert.Equal(t, ".webm", media.VideoExtension("clip", "video/webm"))
	assert.Equal(t, ".mp4", media.VideoExtension("clip", ""))
}
