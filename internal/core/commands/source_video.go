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

package commands

import (
	goctx "context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jaycherian/gcp-go-daily-report/internal/core/blob"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/cor"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/keys"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/media"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/synthesis"
)

// SourceVideo copies a locally uploaded video to source_video{ext} under
// the report prefix. The copy runs in the background; the video-native
// synthesizer needs a fetchable URL, so in that mode the copy is awaited.
type SourceVideo struct {
	cor.BaseCommand
	blobs      blob.Gateway
	presignTTL time.Duration
}

func NewSourceVideo(blobs blob.Gateway, presignTTL time.Duration) *SourceVideo {
	out := &SourceVideo{BaseCommand: *cor.NewBaseCommand(StageSourceVideo), blobs: blobs, presignTTL: presignTTL}
	out.InputParamName = ParamTenant
	return out
}

func (c *SourceVideo) IsExecutable(context cor.Context) bool {
	req := getRequest(context)
	return c.BaseCommand.IsExecutable(context) && req != nil && req.Video.LocalPath != ""
}

func (c *SourceVideo) Execute(context cor.Context) {
	path := getRequest(context).Video.LocalPath
	key, contentType, err := c.describe(path, getBase(context))
	if err != nil {
		c.Fail(context, err)
		return
	}

	ctx := context.GetContext()
	tasks := GetTasks(context)
	tasks.Go(TaskSourceVideo, func() error {
		return c.upload(ctx, path, key, contentType)
	})

	if getMode(context) != synthesis.ModeVideo {
		context.Add(ParamVideoURL, c.blobs.URL(key))
		c.Succeed(context)
		return
	}

	if _, err := tasks.Wait(TaskSourceVideo); err != nil {
		c.Fail(context, fmt.Errorf("upload source video: %w", err))
		return
	}
	url, err := c.blobs.Presign(ctx, key, c.presignTTL)
	if err != nil {
		c.Fail(context, fmt.Errorf("presign source video: %w", err))
		return
	}
	context.Add(ParamVideoURL, c.blobs.URL(key))
	context.Add(ParamVideoRef, &synthesis.VideoRef{URI: url, MIMEType: contentType})
	c.Succeed(context)
}

// describe sniffs the video type from the first bytes of the file.
func (c *SourceVideo) describe(path, base string) (string, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", fmt.Errorf("open source video: %w", err)
	}
	defer f.Close()
	header := make([]byte, 262)
	n, _ := io.ReadFull(f, header)
	contentType := media.VideoMIMEType(path, header[:n])
	ext := media.VideoExtension(filepath.Base(path), contentType)
	return keys.SourceVideoKey(base, ext), contentType, nil
}

func (c *SourceVideo) upload(ctx goctx.Context, path, key, contentType string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = c.blobs.Put(ctx, key, f, blob.PutOptions{ContentType: contentType})
	return err
}
