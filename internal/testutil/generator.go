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
	"context"
	"sync"

	"google.golang.org/genai"
)

// GeneratorCall is one request seen by FakeGenerator.
type GeneratorCall struct {
	Model    string
	Contents []*genai.Content
	Config   *genai.GenerateContentConfig
}

// FakeGenerator answers GenerateContent with scripted replies. When the
// script is exhausted the last reply repeats.
type FakeGenerator struct {
	mu      sync.Mutex
	Replies []string
	Errors  []error
	Calls   []GeneratorCall
}

// NewFakeGenerator replies with the given texts in order.
func NewFakeGenerator(replies ...string) *FakeGenerator {
	return &FakeGenerator{Replies: replies}
}

func (f *FakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, GeneratorCall{Model: model, Contents: contents, Config: config})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(f.Errors) > 0 {
		err := f.Errors[0]
		f.Errors = f.Errors[1:]
		if err != nil {
			return nil, err
		}
	}
	text := ""
	if len(f.Replies) > 0 {
		text = f.Replies[0]
		if len(f.Replies) > 1 {
			f.Replies = f.Replies[1:]
		}
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: text}}}}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     int32(len(contents)),
			CandidatesTokenCount: int32(len(text)),
		},
	}, nil
}

// CallCount returns the number of requests seen.
func (f *FakeGenerator) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// LastCall returns the most recent request.
func (f *FakeGenerator) LastCall() GeneratorCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Calls) == 0 {
		return GeneratorCall{}
	}
	return f.Calls[len(f.Calls)-1]
}
