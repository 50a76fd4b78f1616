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
// This file holds configuration loading and the generative model helpers
// shared by the transcription and synthesis packages.
//
// Functions:
//   - LoadConfig: Loads TOML configuration from the base file, then overlays
//     the runtime specific file.
//   - GenerateMultiModalResponse: Calls a quota-aware model with bounded
//     retries, records token usage and returns the concatenated text.
//   - StripJSONFence: Removes a Markdown code fence around a JSON reply.
package cloud

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/BurntSushi/toml"
	"google.golang.org/genai"
)

const (
	ConfigFileBaseName  = ".env"              // The base name for configuration files (e.g., ".env.toml").
	ConfigFileExtension = ".toml"             // The file extension for configuration files.
	ConfigSeparator     = "."                 // The separator used in config file names (e.g., ".env.local.toml").
	EnvConfigFilePrefix = "GCP_CONFIG_PREFIX" // The environment variable for specifying the config directory.
	EnvConfigRuntime    = "GCP_RUNTIME"       // The environment variable for specifying the runtime context (e.g., "local", "test", "prod").
	MaxRetries          = 3                   // The maximum number of times to retry a failed API call.
)

// RetryBackoff is the delay before the first retry; it doubles per attempt.
var RetryBackoff = 2 * time.Second

// ErrEmptyResponse is returned when the model answers with no text at all.
var ErrEmptyResponse = errors.New("model returned an empty response")

func fileExists(in string) bool {
	_, err := os.Stat(in)
	return !errors.Is(err, os.ErrNotExist)
}

// LoadConfig decodes the base configuration file and then the runtime file
// into baseConfig. Values in the runtime file win. Missing files are skipped;
// malformed files are fatal.
func LoadConfig(baseConfig interface{}) {
	configurationFilePrefix := os.Getenv(EnvConfigFilePrefix)
	if len(configurationFilePrefix) > 0 && !strings.HasSuffix(configurationFilePrefix, string(os.PathSeparator)) {
		configurationFilePrefix = configurationFilePrefix + string(os.PathSeparator)
	}

	runtimeEnvironment := os.Getenv(EnvConfigRuntime)
	if runtimeEnvironment == "" {
		runtimeEnvironment = "test"
	}

	baseConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigFileExtension
	envConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigSeparator + runtimeEnvironment + ConfigFileExtension
	log.Printf("configuration files: base=%s runtime=%s", baseConfigFileName, envConfigFileName)

	if fileExists(baseConfigFileName) {
		_, err := toml.DecodeFile(baseConfigFileName, baseConfig)
		if err != nil {
			log.Fatalf("failed to decode base configuration file %s with error: %s", baseConfigFileName, err)
		}
	}

	if fileExists(envConfigFileName) {
		_, err := toml.DecodeFile(envConfigFileName, baseConfig)
		if err != nil {
			log.Fatalf("failed to decode environment configuration file: %s with error: %s", envConfigFileName, err)
		}
	}
}

// GenAICounters groups the metrics recorded around a model call.
type GenAICounters struct {
	InputTokens  metric.Int64Counter
	OutputTokens metric.Int64Counter
	Retries      metric.Int64Counter
}

// NewGenAICounters registers the counters under name on meter.
func NewGenAICounters(meter metric.Meter, name string) (*GenAICounters, error) {
	in, err := meter.Int64Counter(name + ".gemini.token.input")
	if err != nil {
		return nil, err
	}
	out, err := meter.Int64Counter(name + ".gemini.token.output")
	if err != nil {
		return nil, err
	}
	retries, err := meter.Int64Counter(name + ".gemini.retry")
	if err != nil {
		return nil, err
	}
	return &GenAICounters{InputTokens: in, OutputTokens: out, Retries: retries}, nil
}

func noopCounters() *GenAICounters {
	c, _ := NewGenAICounters(noop.NewMeterProvider().Meter("noop"), "noop")
	return c
}

// GenerateMultiModalResponse calls the model and returns the text of every
// candidate part, concatenated and stripped of a JSON code fence. Transport
// errors are retried up to MaxRetries times with exponential backoff; context
// errors are not.
//
// Inputs:
//   - ctx: Bounds the whole call including backoff.
//   - counters: Token and retry counters; nil records nothing.
//   - model: The quota-aware model.
//   - modelName, config: Per-call overrides, see GenerateContentWith.
//   - contents: The prompt.
func GenerateMultiModalResponse(
	ctx context.Context,
	counters *GenAICounters,
	model *QuotaAwareGenerativeAIModel,
	modelName string,
	config *genai.GenerateContentConfig,
	contents []*genai.Content) (string, error) {
	if counters == nil {
		counters = noopCounters()
	}

	var resp *genai.GenerateContentResponse
	var err error
	delay := RetryBackoff
	for tryCount := 0; ; tryCount++ {
		resp, err = model.GenerateContentWith(ctx, modelName, contents, config)
		if err == nil {
			break
		}
		if ctx.Err() != nil || tryCount >= MaxRetries {
			return "", err
		}
		counters.Retries.Add(ctx, 1)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	if resp.UsageMetadata != nil {
		counters.InputTokens.Add(ctx, int64(resp.UsageMetadata.PromptTokenCount))
		counters.OutputTokens.Add(ctx, int64(resp.UsageMetadata.CandidatesTokenCount))
	}

	var value strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				value.WriteString(part.Text)
			}
		}
	}
	out := StripJSONFence(value.String())
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

// StripJSONFence removes a surrounding ```json (or bare ```) fence.
func StripJSONFence(in string) string {
	out := strings.TrimSpace(in)
	if strings.HasPrefix(out, "```") {
		out = strings.TrimPrefix(out, "```json")
		out = strings.TrimPrefix(out, "```JSON")
		out = strings.TrimPrefix(out, "```")
		out = strings.TrimSuffix(strings.TrimSpace(out), "```")
	}
	return strings.TrimSpace(out)
}

// NewTextPart wraps text as a user content list.
func NewTextPart(in string) []*genai.Content {
	return genai.Text(in)
}

// NewFileData references a file by URI.
func NewFileData(in string, mimeType string) *genai.Part {
	return &genai.Part{FileData: &genai.FileData{FileURI: in, MIMEType: mimeType}}
}
