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
	"fmt"

	"github.com/jaycherian/gcp-go-daily-report/internal/core/cor"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/synthesis"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Synthesize asks the generative model for the report document. The
// tenant's tier picks the synthesizer: transcript mode reads the Transcript,
// video mode hands the model the video reference.
type Synthesize struct {
	cor.BaseCommand
	synthesizers map[string]synthesis.Synthesizer
}

// NewSynthesize registers the synthesizers by their Mode. A nil entry is
// ignored.
func NewSynthesize(synthesizers ...synthesis.Synthesizer) *Synthesize {
	out := &Synthesize{
		BaseCommand:  *cor.NewBaseCommand(StageSynthesize),
		synthesizers: make(map[string]synthesis.Synthesizer),
	}
	for _, s := range synthesizers {
		if s != nil {
			out.synthesizers[s.Mode()] = s
		}
	}
	out.InputParamName = ParamTenant
	return out
}

func (c *Synthesize) IsExecutable(context cor.Context) bool {
	if !c.BaseCommand.IsExecutable(context) {
		return false
	}
	if getMode(context) == synthesis.ModeVideo {
		return context.Get(ParamVideoRef) != nil
	}
	return getTranscript(context) != nil
}

func (c *Synthesize) Execute(context cor.Context) {
	mode := getMode(context)
	synth, ok := c.synthesizers[mode]
	if !ok {
		c.Fail(context, &model.SynthesisError{Reason: fmt.Sprintf("no synthesizer for %s mode", mode)})
		return
	}

	tenant := getTenant(context)
	req := synthesis.Request{
		SystemPrompt: tenant.SystemPrompt,
		Schema:       tenant.ReportSchema,
		ModelName:    tenant.ChatModel,
	}
	if mode == synthesis.ModeVideo {
		req.Video, _ = context.Get(ParamVideoRef).(*synthesis.VideoRef)
	} else {
		req.Transcript = getTranscript(context)
	}
	trace.SpanFromContext(context.GetContext()).SetAttributes(
		attribute.String("mode", mode),
		attribute.String("model", tenant.ChatModel),
	)

	doc, err := synth.Synthesize(context.GetContext(), req)
	if err != nil {
		var se *model.SynthesisError
		if !errors.As(err, &se) {
			err = &model.SynthesisError{Reason: "synthesizer failed", Err: err}
		}
		c.Fail(context, err)
		return
	}
	context.Add(ParamDocument, doc)
	c.Succeed(context)
}
