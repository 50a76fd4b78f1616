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

// Package profile resolves the per-tenant configuration that drives report
// generation: the tenant's identity fields and the settings of its
// subscription tier (models, system prompt, report schema).
//
// Logic Flow:
//  1. Postgres reads the tenant's profile row joined with its tier row and
//     converts the pair with model.TenantConfigFromRow.
//  2. Cached wraps any Store with a Redis read-through cache. Redis failures
//     degrade to a direct read; they never fail the lookup.
//  3. Memory is an in-process Store for local runs and tests.
//
// Migrate applies the embedded goose migrations that create and seed the
// profiles and config tables.
package profile

import (
	"context"
	"sort"
	"sync"

	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
)

// DefaultTier is used when a profile carries no subscription level.
const DefaultTier = "free"

// Store returns the configuration of one tenant. A tenant without a profile
// yields a *model.ConfigurationError; an unreachable backend yields a
// *model.StoreUnavailableError.
type Store interface {
	GetTenantConfig(ctx context.Context, tenantID string) (*model.TenantConfig, error)
}

// TierLister is implemented by stores that can enumerate subscription tiers.
type TierLister interface {
	ListTiers(ctx context.Context) ([]string, error)
}

// Memory is a Store backed by a map.
type Memory struct {
	mu      sync.RWMutex
	configs map[string]model.TenantConfig
	calls   int
}

func NewMemory(configs ...model.TenantConfig) *Memory {
	m := &Memory{configs: make(map[string]model.TenantConfig)}
	for _, c := range configs {
		m.configs[c.TenantID] = c
	}
	return m
}

// Put adds or replaces a tenant configuration.
func (m *Memory) Put(cfg model.TenantConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[cfg.TenantID] = cfg
}

func (m *Memory) GetTenantConfig(ctx context.Context, tenantID string) (*model.TenantConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	cfg, ok := m.configs[tenantID]
	if !ok {
		return nil, &model.ConfigurationError{TenantID: tenantID, Missing: []string{"profile"}}
	}
	return &cfg, nil
}

// Calls reports how many lookups reached the store.
func (m *Memory) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

func (m *Memory) ListTiers(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	var tiers []string
	for _, c := range m.configs {
		if c.SubscriptionLevel != "" && !seen[c.SubscriptionLevel] {
			seen[c.SubscriptionLevel] = true
			tiers = append(tiers, c.SubscriptionLevel)
		}
	}
	sort.Strings(tiers)
	return tiers, nil
}

// ExampleTenant returns a complete configuration for local runs.
func ExampleTenant(tenantID string) model.TenantConfig {
	return model.TenantConfig{
		TenantID:           tenantID,
		ChatModel:          "gemini-2.0-flash",
		TranscriptionModel: "whisper-1",
		SystemPrompt:       model.ExampleSystemPrompt,
		ReportSchema:       model.NormalizeSchema(model.ExampleReportSchema),
		PreparerName:       "Site Supervisor",
		PreparerEmail:      "supervisor@example.com",
		CompanyName:        "Example Builders",
		CompanyWebsite:     "https://example.com",
		SubscriptionLevel:  DefaultTier,
	}
}
