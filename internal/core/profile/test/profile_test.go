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

package profile_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/profile"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var profileColumns = []string{
	"id", "full_name", "email", "phone",
	"company_name", "company_street", "company_unit", "company_city",
	"company_state", "company_zip", "company_phone", "company_website",
	"config_logo_filename", "subscription_level",
	"subscription_level", "whisper_model", "chat_model",
	"daily_report_system_prompt", "report_json_schema", "use_gemini",
}

func TestPostgresGetTenantConfig(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	// Schema stored as a JSON string holding JSON is decoded once.
	rows := sqlmock.NewRows(profileColumns).AddRow(
		"user-1", " Dana Smith ", "dana@example.com", nil,
		"Acme Builders", "1 Main St", nil, "Springfield",
		"IL", "62701", "555-0100", "https://acme.example",
		"logo.png", nil,
		"free", "whisper-1", "gemini-2.0-flash",
		"Write the report.", `"{\"type\":\"object\"}"`, true,
	)
	mock.ExpectQuery("SELECT p.id").WithArgs("user-1", profile.DefaultTier).WillReturnRows(rows)

	cfg, err := profile.NewPostgres(db).GetTenantConfig(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", cfg.TenantID)
	assert.Equal(t, "Dana Smith", cfg.PreparerName)
	assert.Equal(t, "", cfg.PreparerPhone)
	assert.Equal(t, "free", cfg.SubscriptionLevel)
	assert.Equal(t, "gemini-2.0-flash", cfg.ChatModel)
	assert.Equal(t, "whisper-1", cfg.TranscriptionModel)
	assert.JSONEq(t, `{"type":"object"}`, string(cfg.ReportSchema))
	assert.True(t, cfg.UseVideoSynthesis)
	assert.Equal(t, "logo.png", cfg.LogoRef)
	assert.NoError(t, cfg.Validate())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMissingProfile(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery("SELECT p.id").WillReturnRows(sqlmock.NewRows(profileColumns))

	_, err = profile.NewPostgres(db).GetTenantConfig(context.Background(), "ghost")
	var cfgErr *model.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "ghost", cfgErr.TenantID)
}

func TestPostgresMissingTier(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows := sqlmock.NewRows(profileColumns).AddRow(
		"user-2", "Lee", "lee@example.com", nil,
		"Lee Co", nil, nil, nil, nil, nil, nil, nil,
		nil, "enterprise",
		nil, nil, nil, nil, nil, nil,
	)
	mock.ExpectQuery("SELECT p.id").WillReturnRows(rows)

	_, err = profile.NewPostgres(db).GetTenantConfig(context.Background(), "user-2")
	var cfgErr *model.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "enterprise")
}

func TestPostgresUnavailable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery("SELECT p.id").WillReturnError(errors.New("connection reset"))

	_, err = profile.NewPostgres(db).GetTenantConfig(context.Background(), "user-1")
	var unavailable *model.StoreUnavailableError
	assert.ErrorAs(t, err, &unavailable)
}

func TestPostgresListTiers(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery("SELECT subscription_level FROM config").
		WillReturnRows(sqlmock.NewRows([]string{"subscription_level"}).AddRow("free").AddRow("pro"))

	tiers, err := profile.NewPostgres(db).ListTiers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"free", "pro"}, tiers)
}

// fakeRedis implements the commands the cache uses.
type fakeRedis struct {
	redis.Cmdable
	mu     sync.Mutex
	values map[string][]byte
	ttl    time.Duration
	err    error
}

func newFakeRedis() *fakeRedis { return &fakeRedis{values: make(map[string][]byte)} }

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.values[key] = value.([]byte)
	f.ttl = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.values, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestCachedReadThrough(t *testing.T) {
	ctx := context.Background()
	store := profile.NewMemory(profile.ExampleTenant("t1"))
	cache := newFakeRedis()
	cached := profile.NewCached(store, cache, time.Minute)

	first, err := cached.GetTenantConfig(ctx, "t1")
	require.NoError(t, err)
	second, err := cached.GetTenantConfig(ctx, "t1")
	require.NoError(t, err)

	assert.Equal(t, 1, store.Calls())
	assert.Equal(t, time.Minute, cache.ttl)
	assert.Equal(t, first.ChatModel, second.ChatModel)
	assert.JSONEq(t, string(first.ReportSchema), string(second.ReportSchema))

	require.NoError(t, cached.Invalidate(ctx, "t1"))
	_, err = cached.GetTenantConfig(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, store.Calls())
}

func TestCachedDoesNotCacheFailures(t *testing.T) {
	ctx := context.Background()
	store := profile.NewMemory()
	cached := profile.NewCached(store, newFakeRedis(), 0)

	_, err := cached.GetTenantConfig(ctx, "nobody")
	require.Error(t, err)
	store.Put(profile.ExampleTenant("nobody"))
	cfg, err := cached.GetTenantConfig(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, "nobody", cfg.TenantID)
}

func TestCachedFallsBackWhenRedisFails(t *testing.T) {
	store := profile.NewMemory(profile.ExampleTenant("t1"))
	cache := newFakeRedis()
	cache.err = errors.New("dial tcp: connection refused")

	cfg, err := profile.NewCached(store, cache, time.Minute).GetTenantConfig(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", cfg.TenantID)
}

func TestCachedWithUnreachableRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	store := profile.NewMemory(profile.ExampleTenant("t1"))

	cfg, err := profile.NewCached(store, client, time.Minute).GetTenantConfig(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", cfg.TenantID)
}

func TestMemoryStore(t *testing.T) {
	store := profile.NewMemory(profile.ExampleTenant("b"), profile.ExampleTenant("a"))

	cfg, err := store.GetTenantConfig(context.Background(), "a")
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
	assert.NoError(t, cfg.ValidateIdentity())

	tiers, err := store.ListTiers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{profile.DefaultTier}, tiers)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.GetTenantConfig(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMigrateNilDatabase(t *testing.T) {
	assert.NoError(t, profile.Migrate(context.Background(), nil))
}
