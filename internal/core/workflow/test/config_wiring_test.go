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

package workflow_test

import (
	"testing"

	"github.com/jaycherian/gcp-go-daily-report/internal/cloud"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/blob"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/profile"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/workflow"
	test "github.com/jaycherian/gcp-go-daily-report/internal/testutil"
	"github.com/stretchr/testify/assert"
)

// configWith copies the test configuration so cases can change it freely.
func configWith(mutate func(*cloud.Config)) *cloud.Config {
	config := *test.GetConfig()
	config.AgentModels = map[string]cloud.VertexAiLLMModel{
		"report-writer": {Model: "gemini-2.0-flash", RateLimit: 10},
	}
	config.Synthesis.AgentModel = "report-writer"
	config.Transcription.AgentModel = "report-writer"
	mutate(&config)
	return &config
}

func clientsFor(config *cloud.Config) *cloud.ServiceClients {
	return &cloud.ServiceClients{AgentModels: cloud.NewAgentModels(config, test.NewFakeGenerator())}
}

func TestPipelineFromConfig(t *testing.T) {
	for _, provider := range []string{cloud.TranscriptionProviderWhisper, cloud.TranscriptionProviderGemini} {
		t.Run(provider, func(t *testing.T) {
			config := configWith(func(c *cloud.Config) { c.Transcription.Provider = provider })
			p, err := workflow.NewReportPipelineFromConfig(
				config, clientsFor(config), profile.NewMemory(), blob.NewMemory(""), nil)
			test.HandleErr(err, t)
			if assert.NotNil(t, p) {
				assert.NotNil(t, p.Publisher())
				assert.NotEmpty(t, p.Stages())
			}
		})
	}
}

func TestPipelineFromConfigRejectsBadWiring(t *testing.T) {
	cases := map[string]func(*cloud.Config){
		"unknown provider": func(c *cloud.Config) { c.Transcription.Provider = "carrier-pigeon" },
		"missing writer":   func(c *cloud.Config) { c.Synthesis.AgentModel = "nobody" },
		"missing listener": func(c *cloud.Config) {
			c.Transcription.Provider = cloud.TranscriptionProviderGemini
			c.Transcription.AgentModel = "nobody"
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			config := configWith(mutate)
			_, err := workflow.NewReportPipelineFromConfig(
				config, clientsFor(config), profile.NewMemory(), blob.NewMemory(""), nil)
			assert.Error(t, err)
		})
	}
}
