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

package test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/jaycherian/gcp-go-daily-report/internal/core/media"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/transcription"
)

// FakeTranscoder serves canned audio and frame bytes. Frame failures are
// keyed by frame file name.
type FakeTranscoder struct {
	mu sync.Mutex

	Audio []byte
	// AudioErr fails the start of audio extraction.
	AudioErr error
	// AudioWaitErr is reported by Wait after the audio was read.
	AudioWaitErr error
	// FrameErrs fails individual frames.
	FrameErrs map[string]error
	// Block makes every output block until the context ends.
	Block bool
	// Unending keeps the audio decoder running after Audio has been served,
	// the way ffmpeg blocks on a full stdout pipe. Read and Wait block until
	// the output is closed.
	Unending bool

	audioCalls int
	frameCalls int
	live       atomic.Int32
}

// NewFakeTranscoder returns a transcoder that produces audio bytes and
// a small JPEG-looking payload for every frame.
func NewFakeTranscoder(audio []byte) *FakeTranscoder {
	return &FakeTranscoder{Audio: audio, FrameErrs: make(map[string]error)}
}

func (f *FakeTranscoder) ExtractAudio(ctx context.Context, src media.Source) (media.Output, error) {
	f.mu.Lock()
	f.audioCalls++
	startErr, waitErr, block, unending := f.AudioErr, f.AudioWaitErr, f.Block, f.Unending
	f.mu.Unlock()
	if startErr != nil {
		return nil, startErr
	}
	out := f.open(ctx, f.Audio, waitErr, block)
	out.unending = unending
	return out, nil
}

func (f *FakeTranscoder) ExtractFrame(ctx context.Context, src media.Source, ts float64) (media.Output, error) {
	f.mu.Lock()
	f.frameCalls++
	err := f.FrameErrs[model.FrameFileName(ts)]
	block := f.Block
	f.mu.Unlock()
	if err != nil {
		return f.open(ctx, nil, err, block), nil
	}
	return f.open(ctx, append([]byte{0xFF, 0xD8, 0xFF}, []byte(model.FrameFileName(ts))...), nil, block), nil
}

func (f *FakeTranscoder) open(ctx context.Context, data []byte, waitErr error, block bool) *fakeOutput {
	f.live.Add(1)
	return &fakeOutput{ctx: ctx, r: bytes.NewReader(data), waitErr: waitErr, block: block, owner: f, closed: make(chan struct{})}
}

// AudioCalls and FrameCalls count started extractions.
func (f *FakeTranscoder) AudioCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.audioCalls
}

func (f *FakeTranscoder) FrameCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frameCalls
}

// Live is the number of outputs that were opened and not yet closed or
// waited for.
func (f *FakeTranscoder) Live() int {
	return int(f.live.Load())
}

type fakeOutput struct {
	ctx       context.Context
	r         *bytes.Reader
	waitErr   error
	block     bool
	unending  bool
	owner     *FakeTranscoder
	once      sync.Once
	closeOnce sync.Once
	closed    chan struct{}
}

func (o *fakeOutput) Read(p []byte) (int, error) {
	if o.block {
		<-o.ctx.Done()
		return 0, o.ctx.Err()
	}
	n, err := o.r.Read(p)
	if err == io.EOF && o.unending {
		select {
		case <-o.closed:
			return 0, io.ErrClosedPipe
		case <-o.ctx.Done():
			return 0, o.ctx.Err()
		}
	}
	return n, err
}

func (o *fakeOutput) release() {
	o.once.Do(func() { o.owner.live.Add(-1) })
}

func (o *fakeOutput) Wait() error {
	if o.unending {
		select {
		case <-o.closed:
		case <-o.ctx.Done():
		}
	}
	o.release()
	if err := o.ctx.Err(); err != nil {
		return &model.TranscodeError{Op: "fake", ExitCode: -1, Err: err}
	}
	return o.waitErr
}

func (o *fakeOutput) Close() error {
	o.closeOnce.Do(func() { close(o.closed) })
	o.release()
	return nil
}

// FakeTranscriber drains the audio and returns a canned transcript.
type FakeTranscriber struct {
	mu         sync.Mutex
	Transcript *model.Transcript
	Err        error
	// ReadLimit stops reading the audio after that many bytes when set.
	ReadLimit int64
	received  []byte
	options   transcription.Options
}

func NewFakeTranscriber(t *model.Transcript) *FakeTranscriber {
	return &FakeTranscriber{Transcript: t}
}

func (f *FakeTranscriber) Transcribe(ctx context.Context, audio io.Reader, opts transcription.Options) (*model.Transcript, error) {
	f.mu.Lock()
	limit := f.ReadLimit
	f.mu.Unlock()
	if limit > 0 {
		audio = io.LimitReader(audio, limit)
	}
	data, err := io.ReadAll(audio)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = data
	f.options = opts
	if err != nil {
		return nil, &model.TranscriptionError{Err: err}
	}
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Transcript == nil || len(f.Transcript.Words) == 0 {
		return nil, &model.EmptyTranscriptError{}
	}
	out := *f.Transcript
	out.Words = append([]model.Word(nil), f.Transcript.Words...)
	return &out, nil
}

// Received returns the audio bytes of the last call.
func (f *FakeTranscriber) Received() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.received
}

// Options returns the options of the last call.
func (f *FakeTranscriber) Options() transcription.Options {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.options
}

// FakePDF returns fixed bytes for every URL.
type FakePDF struct {
	mu   sync.Mutex
	Data []byte
	Err  error
	urls []string
}

func NewFakePDF() *FakePDF {
	return &FakePDF{Data: []byte("%PDF-1.7 fake")}
}

func (f *FakePDF) RenderURL(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Data, nil
}

// URLs returns every URL rendered so far.
func (f *FakePDF) URLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}

// ErrInjected is the failure the fakes use when a test asks for one.
var ErrInjected = errors.New("injected failure")

// SampleTranscript is a short walkthrough transcript.
func SampleTranscript() *model.Transcript {
	return &model.Transcript{
		Text: "poured the east slab and stripped the forms",
		Words: []model.Word{
			{Word: "poured", Start: 0.5, End: 0.9},
			{Word: "the", Start: 0.9, End: 1.0},
			{Word: "east", Start: 1.0, End: 1.3},
			{Word: "slab", Start: 1.3, End: 1.7},
			{Word: "and", Start: 2.0, End: 2.1},
			{Word: "stripped", Start: 2.1, End: 2.6},
			{Word: "the", Start: 2.6, End: 2.7},
			{Word: "forms", Start: 2.7, End: 3.1},
		},
	}
}
