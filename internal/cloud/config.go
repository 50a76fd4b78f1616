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
// This file defines the application configuration. The structure mirrors the
// TOML files under configs/ and is loaded with LoadConfig, which layers the
// runtime specific file (".env.<runtime>.toml") over the base file.
//
// Structs:
//   - Config: The root configuration object.
//   - Storage, Media, Transcription, Synthesis, Database, Cache: one block per
//     subsystem of the report pipeline.
//   - VertexAiLLMModel: Settings for one generative model, wrapped at startup
//     into a QuotaAwareGenerativeAIModel.
//   - TopicSubscription: A Pub/Sub subscription the worker listens to.
package cloud

import (
	"time"

	"google.golang.org/genai"
)

// DefaultSafetySettings relaxes the harm filters. Site walkthroughs routinely
// mention tools, injuries and hazards, which trip the defaults.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
}

// Storage backend names.
const (
	StorageBackendGCS    = "gcs"
	StorageBackendS3     = "s3"
	StorageBackendLocal  = "local"
	StorageBackendMemory = "memory"
)

// Transcription providers.
const (
	TranscriptionProviderWhisper = "whisper"
	TranscriptionProviderGemini  = "gemini"
)

// BigQueryDataSource names the dataset and table holding the report index.
type BigQueryDataSource struct {
	DatasetName string `toml:"dataset"`      // The name of the BigQuery dataset.
	ReportTable string `toml:"report_table"` // The append-only table of published reports.
}

// VertexAiLLMModel holds the generation settings for one model.
type VertexAiLLMModel struct {
	Model              string  `toml:"model"`               // The name of the Vertex AI LLM.
	SystemInstructions string  `toml:"system_instructions"` // Default system instructions, overridden per tenant.
	Temperature        float32 `toml:"temperature"`         // The temperature parameter for the LLM.
	TopP               float32 `toml:"top_p"`               // The top_p parameter for the LLM.
	TopK               float32 `toml:"top_k"`               // The top_k parameter for the LLM.
	MaxTokens          int32   `toml:"max_tokens"`          // The maximum number of tokens for the LLM output.
	OutputFormat       string  `toml:"output_format"`       // The desired output MIME type for the LLM.
	RateLimit          int     `toml:"rate_limit"`          // The rate limit for the LLM in requests per second.
}

// TopicSubscription is a Pub/Sub subscription consumed by the worker.
type TopicSubscription struct {
	Name             string `toml:"name"`               // The name of the Pub/Sub subscription.
	DeadLetterTopic  string `toml:"dead_letter_topic"`  // The name of the dead-letter topic for the subscription.
	TimeoutInSeconds int    `toml:"timeout_in_seconds"` // Upper bound for one pipeline run started by a message.
}

// Storage selects and configures the blob store backend.
type Storage struct {
	Backend           string `toml:"backend"`             // One of gcs, s3, local, memory.
	Bucket            string `toml:"bucket"`              // Bucket for gcs and s3.
	Prefix            string `toml:"prefix"`              // Optional key prefix inside the bucket.
	Region            string `toml:"region"`              // AWS region for s3.
	Endpoint          string `toml:"endpoint"`            // Custom S3 endpoint (MinIO, R2, etc.).
	LocalDir          string `toml:"local_dir"`           // Root directory for the local backend.
	BaseURL           string `toml:"base_url"`            // Public base URL for the local and memory backends.
	PresignTTLMinutes int    `toml:"presign_ttl_minutes"` // Lifetime of signed URLs.
}

// PresignTTL returns the signed URL lifetime, defaulting to one hour.
func (s Storage) PresignTTL() time.Duration {
	if s.PresignTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(s.PresignTTLMinutes) * time.Minute
}

// Media configures the external tools used to decode and render.
type Media struct {
	FFmpegPath        string `toml:"ffmpeg_path"`
	ChromePath        string `toml:"chrome_path"`
	FrameWorkers      int    `toml:"frame_workers"`       // Concurrent frame extraction jobs.
	WaitDelaySeconds  int    `toml:"wait_delay_seconds"`  // SIGTERM to SIGKILL escalation delay.
	PDFTimeoutSeconds int    `toml:"pdf_timeout_seconds"` // Upper bound for one PDF render.
}

// Transcription configures the speech-to-text provider.
type Transcription struct {
	Provider       string `toml:"provider"`        // whisper or gemini.
	Endpoint       string `toml:"endpoint"`        // Base URL of the Whisper compatible API.
	APIKeyEnv      string `toml:"api_key_env"`     // Name of the environment variable holding the API key.
	AgentModel     string `toml:"agent_model"`     // Key into AgentModels for the gemini provider.
	TimeoutSeconds int    `toml:"timeout_seconds"` // HTTP timeout for one transcription.
}

// Synthesis selects the model used to write reports.
type Synthesis struct {
	AgentModel string `toml:"agent_model"` // Key into AgentModels.
}

// Database configures the Postgres profile store.
type Database struct {
	URL                    string `toml:"url"`
	MaxOpenConns           int    `toml:"max_open_conns"`
	MaxIdleConns           int    `toml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `toml:"conn_max_lifetime_minutes"`
	PingTimeoutSeconds     int    `toml:"ping_timeout_seconds"`
}

// Cache configures the Redis read-through cache in front of the profile store.
// An empty Addr disables it.
type Cache struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	TTLSeconds int    `toml:"ttl_seconds"`
}

// Config is the root configuration object.
type Config struct {
	// Application holds general application settings.
	Application struct {
		Name                      string `toml:"name"`                         // The name of the application.
		GoogleProjectId           string `toml:"google_project_id"`            // The Google Cloud project ID.
		GoogleLocation            string `toml:"location"`                     // The Google Cloud location.
		SignerServiceAccountEmail string `toml:"signer_service_account_email"` // The service account email used for signing GCS URLs.
		LogoURL                   string `toml:"logo_url"`                     // Fallback logo when a tenant has none.
	} `toml:"application"`
	Server struct {
		Port           string   `toml:"port"`
		AllowedOrigins []string `toml:"allowed_origins"`
	} `toml:"server"`
	Storage            Storage                      `toml:"storage"`
	Media              Media                        `toml:"media"`
	Transcription      Transcription                `toml:"transcription"`
	Synthesis          Synthesis                    `toml:"synthesis"`
	Database           Database                     `toml:"database"`
	Cache              Cache                        `toml:"cache"`
	BigQueryDataSource BigQueryDataSource           `toml:"big_query_data_source"`
	TopicSubscriptions map[string]TopicSubscription `toml:"topic_subscriptions"` // Keyed by a logical name (e.g., "uploads").
	AgentModels        map[string]VertexAiLLMModel  `toml:"agent_models"`        // Keyed by a logical name (e.g., "report-writer").
}

// NewConfig returns a Config with its maps initialised and the defaults that
// the TOML files may override.
func NewConfig() *Config {
	c := &Config{
		TopicSubscriptions: make(map[string]TopicSubscription),
		AgentModels:        make(map[string]VertexAiLLMModel),
	}
	c.Server.Port = "8080"
	c.Storage.Backend = StorageBackendGCS
	c.Storage.PresignTTLMinutes = 60
	c.Media.FFmpegPath = "ffmpeg"
	c.Media.ChromePath = "chromium"
	c.Media.FrameWorkers = 4
	c.Media.WaitDelaySeconds = 5
	c.Media.PDFTimeoutSeconds = 60
	c.Transcription.Provider = TranscriptionProviderWhisper
	c.Transcription.Endpoint = "https://api.openai.com/v1"
	c.Transcription.APIKeyEnv = "OPENAI_API_KEY"
	c.Transcription.TimeoutSeconds = 300
	c.Cache.TTLSeconds = 300
	return c
}
