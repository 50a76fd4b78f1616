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

// Package cloud provides components for interacting with Google Cloud services.
// This file implements a wrapper around the Generative AI models client.
// The wrapper uses the Decorator design pattern to add rate limiting to an
// existing client without altering it, so every call made by the
// synthesizers and the Gemini transcriber goes through one quota gate.
//
// Structs:
//   - QuotaAwareGenerativeAIModel: Wraps a ContentGenerator (normally
//     `*genai.Models`) with a token bucket limiter and a base generation config.
//
// Interfaces:
//   - ContentGenerator: The single method of `genai.Models` the pipeline needs.
//     Tests substitute fakes for it.
//
// Functions:
//   - NewQuotaAwareModel: A constructor to create a new instance of the wrapped model.
//   - GenerateContent: Generates with the base model name and config.
//   - GenerateContentWith: Generates with per-call overrides (tenant model,
//     system prompt, response schema).
package cloud

import (
	"context"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// ContentGenerator is satisfied by `*genai.Models`.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// QuotaAwareGenerativeAIModel is a decorator that rate limits calls to the
// wrapped generator. Calls block until a token is available or the context
// is done, so a cancelled pipeline never waits on the quota.
type QuotaAwareGenerativeAIModel struct {
	GenerativeContentConfig *genai.GenerateContentConfig // Base config, copied for each call.
	ModelName               string
	ModelHandle             ContentGenerator
	RateLimit               *rate.Limiter
}

// NewQuotaAwareModel creates a QuotaAwareGenerativeAIModel that allows
// requestsPerSecond calls per second with an equal burst. A non-positive rate
// disables limiting.
//
// Inputs:
//   - config: The base generation config; nil is treated as empty.
//   - name: The default model name.
//   - handle: The client to call, normally `client.Models`.
//   - requestsPerSecond: An integer specifying the maximum number of API calls allowed per second.
func NewQuotaAwareModel(config *genai.GenerateContentConfig, name string, handle ContentGenerator, requestsPerSecond int) *QuotaAwareGenerativeAIModel {
	if config == nil {
		config = &genai.GenerateContentConfig{}
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Second/time.Duration(requestsPerSecond)), requestsPerSecond)
	}
	return &QuotaAwareGenerativeAIModel{
		GenerativeContentConfig: config,
		ModelName:               name,
		ModelHandle:             handle,
		RateLimit:               limiter,
	}
}

// Config returns a shallow copy of the base config for the caller to adjust.
func (q *QuotaAwareGenerativeAIModel) Config() *genai.GenerateContentConfig {
	c := *q.GenerativeContentConfig
	return &c
}

// GenerateContent generates with the base model name and config.
func (q *QuotaAwareGenerativeAIModel) GenerateContent(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	return q.GenerateContentWith(ctx, "", contents, nil)
}

// GenerateContentWith waits for quota, then calls the wrapped generator. An
// empty model falls back to ModelName and a nil config to the base config.
func (q *QuotaAwareGenerativeAIModel) GenerateContentWith(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if err := q.RateLimit.Wait(ctx); err != nil {
		return nil, err
	}
	if model == "" {
		model = q.ModelName
	}
	if config == nil {
		config = q.Config()
	}
	return q.ModelHandle.GenerateContent(ctx, model, contents, config)
}
