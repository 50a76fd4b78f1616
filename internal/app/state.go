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

// Package app wires the configuration into the long lived components shared
// by the server and the worker binaries.
//
// Logic Flow:
//  1. GetConfig loads the TOML configuration once.
//  2. NewState creates the cloud clients, then the blob gateway for the
//     configured backend, the profile store and the optional report index.
//  3. The report pipeline and the report service are built on top of them.
//  4. Close releases everything in reverse order.
//
// Inputs:
//   - ctx: The root context of the binary.
//   - config: The loaded *cloud.Config.
//
// Outputs:
//   - *State: the shared dependencies.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/jaycherian/gcp-go-daily-report/internal/cloud"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/blob"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/commands"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/profile"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/services"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/workflow"
	"github.com/redis/go-redis/v9"
)

// State holds the shared dependencies of a binary.
type State struct {
	Config   *cloud.Config
	Cloud    *cloud.ServiceClients
	Blobs    blob.Gateway
	Profiles profile.Store
	Index    *services.ReportIndex
	Pipeline *workflow.ReportPipeline
	Reports  *services.ReportService

	db    *sql.DB
	redis *redis.Client
}

var loaded *cloud.Config

// SetupOS points the configuration loader at configs/ with the given
// runtime, unless the environment already chose one.
func SetupOS(runtime string) error {
	if _, ok := os.LookupEnv(cloud.EnvConfigFilePrefix); !ok {
		if err := os.Setenv(cloud.EnvConfigFilePrefix, "configs"); err != nil {
			return err
		}
	}
	if _, ok := os.LookupEnv(cloud.EnvConfigRuntime); !ok {
		return os.Setenv(cloud.EnvConfigRuntime, runtime)
	}
	return nil
}

// GetConfig loads the configuration on first use.
func GetConfig() *cloud.Config {
	if loaded == nil {
		if err := SetupOS("local"); err != nil {
			log.Fatalf("failed to setup env: %v\n", err)
		}
		c := cloud.NewConfig()
		cloud.LoadConfig(c)
		loaded = c
	}
	return loaded
}

// NewState builds every shared component. Partially built state is closed
// on failure.
func NewState(ctx context.Context, config *cloud.Config) (*State, error) {
	s := &State{Config: config}
	fail := func(err error) (*State, error) {
		_ = s.Close()
		return nil, err
	}

	var err error
	if s.Cloud, err = cloud.NewCloudServiceClients(ctx, config); err != nil {
		return nil, err
	}
	if s.Blobs, err = NewBlobGateway(ctx, config, s.Cloud); err != nil {
		return fail(err)
	}
	if s.Profiles, err = s.newProfileStore(ctx); err != nil {
		return fail(err)
	}

	var indexer commands.Indexer
	s.Index = services.NewReportIndex(s.Cloud.BiqQueryClient,
		config.BigQueryDataSource.DatasetName, config.BigQueryDataSource.ReportTable)
	if s.Index != nil {
		if err := s.Index.EnsureTable(ctx); err != nil {
			return fail(err)
		}
		indexer = s.Index
	}

	if s.Pipeline, err = workflow.NewReportPipelineFromConfig(config, s.Cloud, s.Profiles, s.Blobs, indexer); err != nil {
		return fail(err)
	}
	s.Reports = &services.ReportService{
		Blobs:      s.Blobs,
		Publisher:  s.Pipeline.Publisher(),
		PresignTTL: config.Storage.PresignTTL(),
	}
	return s, nil
}

// NewBlobGateway returns the gateway for the configured storage backend.
func NewBlobGateway(ctx context.Context, config *cloud.Config, clients *cloud.ServiceClients) (blob.Gateway, error) {
	st := config.Storage
	switch st.Backend {
	case cloud.StorageBackendGCS:
		gcs, err := blob.NewGCS(clients.StorageClient, st.Bucket, st.Prefix, clients.IAMClient, config.Application.SignerServiceAccountEmail)
		if err != nil {
			return nil, err
		}
		return gcs, nil
	case cloud.StorageBackendS3:
		s3, err := blob.NewS3(ctx, blob.S3Options{Region: st.Region, Bucket: st.Bucket, Prefix: st.Prefix, Endpoint: st.Endpoint})
		if err != nil {
			return nil, err
		}
		return s3, nil
	case cloud.StorageBackendLocal:
		local, err := blob.NewLocal(st.LocalDir, st.BaseURL)
		if err != nil {
			return nil, err
		}
		return local, nil
	case cloud.StorageBackendMemory:
		return blob.NewMemory(st.BaseURL), nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", st.Backend)
}

// newProfileStore opens Postgres when a database URL is configured and
// falls back to the built-in example tenant otherwise. A configured cache
// is placed in front of either.
func (s *State) newProfileStore(ctx context.Context) (profile.Store, error) {
	var store profile.Store
	if s.Config.Database.URL != "" {
		db, err := profile.Connect(ctx, s.Config.Database.URL, profile.OptionsFromConfig(s.Config.Database))
		if err != nil {
			return nil, err
		}
		s.db = db
		store = profile.NewPostgres(db)
	} else {
		slog.Warn("no database configured, serving the example tenant only")
		store = profile.NewMemory(profile.ExampleTenant("example"))
	}

	if s.Config.Cache.Addr != "" {
		client, err := profile.NewRedisClient(ctx, s.Config.Cache)
		if err != nil {
			return nil, err
		}
		s.redis = client
		store = profile.NewCached(store, client, time.Duration(s.Config.Cache.TTLSeconds)*time.Second)
	}
	return store, nil
}

// DB returns the profile database, or nil when profiles are not in Postgres.
func (s *State) DB() *sql.DB { return s.db }

// Close releases every client held by the state.
func (s *State) Close() error {
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	if s.Cloud != nil {
		errs = append(errs, s.Cloud.Close())
	}
	return errors.Join(errs...)
}
