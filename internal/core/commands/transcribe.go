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
	"fmt"

	"github.com/jaycherian/gcp-go-daily-report/internal/core/blob"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/cor"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/keys"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/transcription"
)

// Transcribe consumes the audio stream and produces the Transcript. A
// decode failure is reported against the transcode stage since it is the
// root cause of whatever the transcriber saw.
type Transcribe struct {
	cor.BaseCommand
	transcriber transcription.Transcriber
}

func NewTranscribe(transcriber transcription.Transcriber) *Transcribe {
	out := &Transcribe{BaseCommand: *cor.NewBaseCommand(StageTranscribe), transcriber: transcriber}
	out.InputParamName = ParamAudio
	return out
}

func (c *Transcribe) Execute(context cor.Context) {
	ctx := context.GetContext()
	stream := context.Get(ParamAudio).(*audioStream)
	context.Remove(ParamAudio)

	transcript, err := c.transcriber.Transcribe(ctx, stream.reader, transcription.Options{
		Model:    getTenant(context).TranscriptionModel,
		FileName: keys.AudioFile,
		MIMEType: blob.ContentTypeMP3,
	})

	drained := stream.reader.eof.Load()
	var decodeErr error
	if drained {
		decodeErr = stream.out.Wait()
	} else {
		// The decoder may still be blocked writing into the pipe.
		decodeErr = stream.out.Close()
		if err == nil && decodeErr == nil {
			c.Warn(context, errAudioTruncated)
		}
	}

	// The diagnostic copy is completed whenever the whole stream was read.
	if drained && decodeErr == nil {
		_ = stream.copy.Close()
	} else {
		_ = stream.copy.CloseWithError(errAudioAbandoned)
	}
	if _, uerr := GetTasks(context).Wait(TaskAudio); uerr != nil {
		c.Warn(context, fmt.Errorf("diagnostic audio upload: %w", uerr))
	}

	if decodeErr != nil {
		c.FailStage(context, StageTranscode, decodeErr)
		return
	}
	if err != nil {
		c.Fail(context, err)
		return
	}
	context.Add(ParamTranscript, transcript)
	c.Succeed(context)
}
