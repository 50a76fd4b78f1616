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
// This file is responsible for initializing and holding the client objects
// used to talk to Google Cloud. It acts as a dependency injection container:
// one `ServiceClients` struct is created at startup and passed to the
// gateway, the pipeline and the API handlers.
//
// Logic Flow:
//  1. `NewCloudServiceClients` is called at application startup with the
//     loaded configuration.
//  2. Storage and IAM clients are created only for the gcs storage backend,
//     Pub/Sub only when subscriptions are configured and BigQuery only when a
//     report dataset is configured, so local runs need no credentials for
//     services they do not use.
//  3. The GenAI client is always created and every configured agent model is
//     wrapped in a QuotaAwareGenerativeAIModel.
//
// Structs:
//   - ServiceClients: A container struct holding all initialized Google Cloud
//     service clients and service wrappers.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/bigquery"
	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"google.golang.org/genai"
)

// ServiceClients is the container for every external client. Nil fields are
// services the configuration does not use.
type ServiceClients struct {
	StorageClient   *storage.Client                   // Client for Google Cloud Storage (GCS).
	PubsubClient    *pubsub.Client                    // Client for Google Cloud Pub/Sub.
	GenAIClient     *genai.Client                     // Client for Google's Generative AI services (Vertex AI).
	BiqQueryClient  *bigquery.Client                  // Client for Google Cloud BigQuery.
	IAMClient       *credentials.IamCredentialsClient // Client for IAM to sign GCS URLs.
	PubSubListeners map[string]*PubSubListener        // Keyed by the logical name from the config.
	AgentModels     map[string]*QuotaAwareGenerativeAIModel
}

// Close releases every open client.
func (c *ServiceClients) Close() error {
	var errs []error
	if c.StorageClient != nil {
		errs = append(errs, c.StorageClient.Close())
	}
	if c.PubsubClient != nil {
		errs = append(errs, c.PubsubClient.Close())
	}
	if c.BiqQueryClient != nil {
		errs = append(errs, c.BiqQueryClient.Close())
	}
	if c.IAMClient != nil {
		errs = append(errs, c.IAMClient.Close())
	}
	return errors.Join(errs...)
}

// AgentModel returns the wrapped model registered under name.
func (c *ServiceClients) AgentModel(name string) (*QuotaAwareGenerativeAIModel, error) {
	m, ok := c.AgentModels[name]
	if !ok {
		return nil, fmt.Errorf("agent model %q is not configured", name)
	}
	return m, nil
}

// NewAgentModels wraps every configured model around handle.
func NewAgentModels(config *Config, handle ContentGenerator) map[string]*QuotaAwareGenerativeAIModel {
	agentModels := make(map[string]*QuotaAwareGenerativeAIModel)
	for amKey, values := range config.AgentModels {
		generation := &genai.GenerateContentConfig{
			Temperature:      genai.Ptr[float32](values.Temperature),
			TopP:             genai.Ptr[float32](values.TopP),
			TopK:             genai.Ptr[float32](values.TopK),
			MaxOutputTokens:  values.MaxTokens,
			SafetySettings:   DefaultSafetySettings,
			ResponseMIMEType: values.OutputFormat,
		}
		if values.SystemInstructions != "" {
			generation.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: values.SystemInstructions}}}
		}
		agentModels[amKey] = NewQuotaAwareModel(generation, values.Model, handle, values.RateLimit)
	}
	return agentModels
}

// NewCloudServiceClients initializes the clients the configuration needs.
//
// Inputs:
//   - ctx: The root context.Context for the application.
//   - config: A pointer to the loaded application configuration (`Config`).
//
// Outputs:
//   - *ServiceClients: A pointer to the initialized ServiceClients struct.
//   - error: An error if any of the clients fail to initialize.
func NewCloudServiceClients(ctx context.Context, config *Config) (*ServiceClients, error) {
	cloud := &ServiceClients{PubSubListeners: make(map[string]*PubSubListener)}
	fail := func(err error) (*ServiceClients, error) {
		_ = cloud.Close()
		return nil, err
	}
	var err error

	if config.Storage.Backend == StorageBackendGCS {
		if cloud.StorageClient, err = storage.NewClient(ctx); err != nil {
			return fail(fmt.Errorf("storage client: %w", err))
		}
		if config.Application.SignerServiceAccountEmail != "" {
			if cloud.IAMClient, err = credentials.NewIamCredentialsClient(ctx); err != nil {
				return fail(fmt.Errorf("iam credentials client: %w", err))
			}
		}
	}

	if len(config.TopicSubscriptions) > 0 {
		if cloud.PubsubClient, err = pubsub.NewClient(ctx, config.Application.GoogleProjectId); err != nil {
			return fail(fmt.Errorf("pubsub client: %w", err))
		}
		for subKey, values := range config.TopicSubscriptions {
			// The command is attached later, once the pipeline is built.
			listener, err := NewPubSubListener(cloud.PubsubClient, values.Name, nil)
			if err != nil {
				return fail(err)
			}
			cloud.PubSubListeners[subKey] = listener
		}
	}

	slog.Info("creating genai client", "project", config.Application.GoogleProjectId, "location", config.Application.GoogleLocation)
	cloud.GenAIClient, err = genai.NewClient(ctx, &genai.ClientConfig{
		Project:  config.Application.GoogleProjectId,
		Location: config.Application.GoogleLocation,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return fail(fmt.Errorf("genai client: %w", err))
	}
	cloud.AgentModels = NewAgentModels(config, cloud.GenAIClient.Models)

	if config.BigQueryDataSource.DatasetName != "" {
		if cloud.BiqQueryClient, err = bigquery.NewClient(ctx, config.Application.GoogleProjectId); err != nil {
			return fail(fmt.Errorf("bigquery client: %w", err))
		}
	}
	return cloud, nil
}
