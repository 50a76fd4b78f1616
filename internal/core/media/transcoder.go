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

// Package media is the Media Transcoder. It runs an external ffmpeg process
// against a video source (a local file or a time-limited signed URL) and
// exposes its output as a byte stream the caller can consume while the
// process is still running.
//
// Logic Flow:
//  1. The source is checked. A local path that cannot be stat'ed fails early
//     with MediaReadError so no process is spawned for it.
//  2. ffmpeg is started bound to a per-stream context. Its stdout is the
//     stream; its stderr is captured (tail only) for diagnostics.
//  3. The caller reads the stream, then calls Wait to learn how the process
//     ended. A non-zero exit becomes MediaReadError when ffmpeg could not open
//     the input and TranscodeError otherwise.
//  4. Close terminates a process that is still running with SIGTERM,
//     escalating to SIGKILL after the wait delay, and always reaps it.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
)

// Operation names used in errors and logs.
const (
	OpAudio = "audio"
	OpFrame = "frame"

	DefaultFFmpegPath = "ffmpeg"
	DefaultWaitDelay  = 5 * time.Second

	stderrTailBytes = 4096
)

// readFailureMarkers are ffmpeg diagnostics meaning the input itself could
// not be opened or read.
var readFailureMarkers = []string{
	"No such file or directory",
	"Permission denied",
	"Server returned 4",
	"HTTP error 4",
	"Invalid data found when processing input",
	"Connection refused",
	"Failed to resolve hostname",
}

// Source is a video to decode. Exactly one of Path and URL is set.
type Source struct {
	Path string
	URL  string
}

// LocalSource and RemoteSource are small constructors for readability.
func LocalSource(path string) Source { return Source{Path: path} }
func RemoteSource(url string) Source { return Source{URL: url} }

// Input is the value handed to ffmpeg's -i flag.
func (s Source) Input() string {
	if s.Path != "" {
		return s.Path
	}
	return s.URL
}

// String never includes URL query strings, which hold signatures.
func (s Source) String() string {
	if s.Path != "" {
		return s.Path
	}
	if i := strings.IndexByte(s.URL, '?'); i >= 0 {
		return s.URL[:i]
	}
	return s.URL
}

func (s Source) check() error {
	switch {
	case s.Path == "" && s.URL == "":
		return &model.MediaReadError{Source: "<empty>", Err: errors.New("no video source")}
	case s.Path != "" && s.URL != "":
		return &model.MediaReadError{Source: s.String(), Err: errors.New("both path and URL set")}
	case s.Path != "":
		if _, err := os.Stat(s.Path); err != nil {
			return &model.MediaReadError{Source: s.Path, Err: err}
		}
	}
	return nil
}

// Output is a running decode: read it, then Wait for the exit status. Close
// releases it early and terminates the process.
type Output interface {
	io.ReadCloser
	Wait() error
}

// Transcoder extracts audio and frames from a video source.
type Transcoder interface {
	ExtractAudio(ctx context.Context, src Source) (Output, error)
	ExtractFrame(ctx context.Context, src Source, timestampSeconds float64) (Output, error)
}

// AudioArgs returns the ffmpeg arguments for streaming MP3 audio to stdout.
func AudioArgs(input string) []string {
	return []string{
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-i", input,
		"-vn", "-acodec", "libmp3lame", "-ar", "44100", "-ac", "2", "-ab", "192k",
		"-f", "mp3", "pipe:1",
	}
}

// FrameArgs returns the ffmpeg arguments for a single JPEG frame on stdout.
func FrameArgs(input string, timestampSeconds float64) []string {
	return []string{
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-ss", strconv.FormatFloat(timestampSeconds, 'f', 6, 64),
		"-i", input,
		"-frames:v", "1", "-q:v", "2", "-c:v", "mjpeg",
		"-f", "image2pipe", "pipe:1",
	}
}

// FFmpeg runs the ffmpeg binary found at Path.
type FFmpeg struct {
	Path      string
	WaitDelay time.Duration
}

// NewFFmpeg defaults an empty path to the ffmpeg on $PATH.
func NewFFmpeg(path string) *FFmpeg {
	if path == "" {
		path = DefaultFFmpegPath
	}
	return &FFmpeg{Path: path, WaitDelay: DefaultWaitDelay}
}

func (f *FFmpeg) ExtractAudio(ctx context.Context, src Source) (Output, error) {
	if err := src.check(); err != nil {
		return nil, err
	}
	return f.start(ctx, OpAudio, src, AudioArgs(src.Input()), false)
}

func (f *FFmpeg) ExtractFrame(ctx context.Context, src Source, timestampSeconds float64) (Output, error) {
	if timestampSeconds < 0 {
		return nil, &model.TranscodeError{Op: OpFrame, ExitCode: -1, Err: fmt.Errorf("negative timestamp %f", timestampSeconds)}
	}
	if err := src.check(); err != nil {
		return nil, err
	}
	return f.start(ctx, OpFrame, src, FrameArgs(src.Input(), timestampSeconds), true)
}

func (f *FFmpeg) start(ctx context.Context, op string, src Source, args []string, requireOutput bool) (Output, error) {
	procCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(procCtx, f.Path, args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = f.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}
	stderr := &tailBuffer{limit: stderrTailBytes}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, &model.TranscodeError{Op: op, ExitCode: -1, Err: err}
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, &model.TranscodeError{Op: op, ExitCode: -1, Err: fmt.Errorf("start %s: %w", f.Path, err)}
	}
	return &stream{
		op:            op,
		source:        src,
		cmd:           cmd,
		stdout:        stdout,
		stderr:        stderr,
		parent:        ctx,
		cancel:        cancel,
		requireOutput: requireOutput,
	}, nil
}

// stream is the Output of one ffmpeg process.
type stream struct {
	op            string
	source        Source
	cmd           *exec.Cmd
	stdout        io.ReadCloser
	stderr        *tailBuffer
	parent        context.Context
	cancel        context.CancelFunc
	requireOutput bool

	mu      sync.Mutex
	read    int64
	closed  bool
	once    sync.Once
	waitErr error
}

func (s *stream) Read(p []byte) (int, error) {
	n, err := s.stdout.Read(p)
	s.mu.Lock()
	s.read += int64(n)
	s.mu.Unlock()
	return n, err
}

// Wait reaps the process and classifies how it ended. It must be called
// after the stream has been read to EOF, or after Close.
func (s *stream) Wait() error {
	s.once.Do(func() {
		err := s.cmd.Wait()
		s.cancel()
		s.waitErr = s.classify(err)
	})
	return s.waitErr
}

// Close terminates the process if it is still running and reaps it.
func (s *stream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	_ = s.stdout.Close()
	err := s.Wait()
	var te *model.TranscodeError
	if errors.As(err, &te) && errors.Is(te.Err, context.Canceled) && s.parent.Err() == nil {
		// Terminated on our own request.
		return nil
	}
	return err
}

func (s *stream) classify(err error) error {
	s.mu.Lock()
	read, closed := s.read, s.closed
	s.mu.Unlock()
	diag := strings.TrimSpace(s.stderr.String())

	if err == nil {
		if s.requireOutput && read == 0 && !closed {
			return &model.TranscodeError{Op: s.op, Stderr: diag, Err: errors.New("no output produced, timestamp may be past the end of the video")}
		}
		return nil
	}
	if ctxErr := s.parent.Err(); ctxErr != nil {
		return &model.TranscodeError{Op: s.op, ExitCode: -1, Stderr: diag, Err: ctxErr}
	}
	// An input failure reported before Close still wins over the termination.
	for _, marker := range readFailureMarkers {
		if strings.Contains(diag, marker) {
			return &model.MediaReadError{Source: s.source.String(), Err: fmt.Errorf("%s: %w", diag, err)}
		}
	}
	if closed {
		return &model.TranscodeError{Op: s.op, ExitCode: -1, Stderr: diag, Err: context.Canceled}
	}
	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	return &model.TranscodeError{Op: s.op, ExitCode: exitCode, Stderr: diag, Err: err}
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}

// ReadAll drains out, waits for the process and returns the bytes. The
// output is always released.
func ReadAll(out Output) ([]byte, error) {
	data, readErr := io.ReadAll(out)
	if readErr != nil {
		_ = out.Close()
		if err := out.Wait(); err != nil {
			return nil, err
		}
		return nil, readErr
	}
	if err := out.Wait(); err != nil {
		return nil, err
	}
	return data, nil
}

var _ Transcoder = (*FFmpeg)(nil)
