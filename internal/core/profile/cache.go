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

package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jaycherian/gcp-go-daily-report/internal/cloud"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
	"github.com/redis/go-redis/v9"
)

const (
	cacheKeyPrefix  = "daily-report:tenant-config:"
	DefaultCacheTTL = 5 * time.Minute
)

// NewRedisClient connects to the cache described by c and pings it.
func NewRedisClient(ctx context.Context, c cloud.Cache) (*redis.Client, error) {
	if c.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Cached is a read-through cache in front of a Store. Only successful
// lookups are cached.
type Cached struct {
	Store  Store
	Client redis.Cmdable
	TTL    time.Duration
}

func NewCached(store Store, client redis.Cmdable, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{Store: store, Client: client, TTL: ttl}
}

func cacheKey(tenantID string) string { return cacheKeyPrefix + tenantID }

func (c *Cached) GetTenantConfig(ctx context.Context, tenantID string) (*model.TenantConfig, error) {
	if c.Client == nil {
		return c.Store.GetTenantConfig(ctx, tenantID)
	}

	raw, err := c.Client.Get(ctx, cacheKey(tenantID)).Bytes()
	switch {
	case err == nil:
		var cfg model.TenantConfig
		if jerr := json.Unmarshal(raw, &cfg); jerr == nil {
			return &cfg, nil
		}
		slog.WarnContext(ctx, "discarding unreadable cached tenant config", "tenant", tenantID)
	case errors.Is(err, redis.Nil):
	default:
		slog.WarnContext(ctx, "tenant config cache unavailable", "tenant", tenantID, "error", err)
		return c.Store.GetTenantConfig(ctx, tenantID)
	}

	cfg, err := c.Store.GetTenantConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if data, jerr := json.Marshal(cfg); jerr == nil {
		if serr := c.Client.Set(ctx, cacheKey(tenantID), data, c.TTL).Err(); serr != nil {
			slog.WarnContext(ctx, "cannot cache tenant config", "tenant", tenantID, "error", serr)
		}
	}
	return cfg, nil
}

// Invalidate drops the cached configuration of a tenant.
func (c *Cached) Invalidate(ctx context.Context, tenantID string) error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Del(ctx, cacheKey(tenantID)).Err()
}

func (c *Cached) ListTiers(ctx context.Context) ([]string, error) {
	if l, ok := c.Store.(TierLister); ok {
		return l.ListTiers(ctx)
	}
	return nil, errors.New("store cannot list tiers")
}
