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
	"errors"
	"io"
	"sync/atomic"

	"github.com/jaycherian/gcp-go-daily-report/internal/core/blob"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/cor"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/keys"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/media"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/synthesis"
)

var (
	errAudioAbandoned = errors.New("audio stream abandoned")
	errAudioTruncated = errors.New("transcriber returned before the end of the audio stream")
)

// audioStream hands the running audio extraction to Transcribe.
type audioStream struct {
	out    media.Output
	reader *eofReader
	copy   *io.PipeWriter
}

// eofReader remembers whether the wrapped reader was drained.
type eofReader struct {
	r   io.Reader
	eof atomic.Bool
}

func (e *eofReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err == io.EOF {
		e.eof.Store(true)
	}
	return n, err
}

// diagnosticWriter forwards to w until the first write error and discards
// afterwards, so the diagnostic copy never fails the main consumer.
type diagnosticWriter struct {
	w   io.Writer
	err error
}

func (d *diagnosticWriter) Write(p []byte) (int, error) {
	if d.err == nil {
		_, d.err = d.w.Write(p)
	}
	return len(p), nil
}

// Transcode starts streaming MP3 extraction from the source video. The
// stream is teed into a best-effort upload of audio.mp3.
type Transcode struct {
	cor.BaseCommand
	transcoder media.Transcoder
	blobs      blob.Gateway
}

func NewTranscode(transcoder media.Transcoder, blobs blob.Gateway) *Transcode {
	out := &Transcode{BaseCommand: *cor.NewBaseCommand(StageTranscode), transcoder: transcoder, blobs: blobs}
	out.InputParamName = ParamSource
	return out
}

func (c *Transcode) IsExecutable(context cor.Context) bool {
	return c.BaseCommand.IsExecutable(context) && getMode(context) == synthesis.ModeTranscript
}

func (c *Transcode) Execute(context cor.Context) {
	ctx := context.GetContext()
	src, _ := getSource(context)

	out, err := c.transcoder.ExtractAudio(ctx, src)
	if err != nil {
		c.Fail(context, err)
		return
	}
	context.AddCleanup(func() { _ = out.Close() })

	pr, pw := io.Pipe()
	context.AddCleanup(func() { _ = pw.CloseWithError(errAudioAbandoned) })
	key := keys.AssetKey(getBase(context), keys.AudioFile)
	GetTasks(context).Go(TaskAudio, func() error {
		_, err := c.blobs.Put(ctx, key, pr, blob.PutOptions{ContentType: blob.ContentTypeMP3})
		// Unblock the tee if the upload gave up early.
		_ = pr.CloseWithError(io.ErrClosedPipe)
		return err
	})

	context.Add(ParamAudio, &audioStream{
		out:    out,
		reader: &eofReader{r: io.TeeReader(out, &diagnosticWriter{w: pw})},
		copy:   pw,
	})
	c.Succeed(context)
}
