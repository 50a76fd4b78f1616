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

package commands

import (
	goctx "context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jaycherian/gcp-go-daily-report/internal/core/blob"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/cor"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/media"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/profile"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/synthesis"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// ConfigFetch loads the tenant configuration and, concurrently, resolves the
// video into a source the transcoder can read. It completes before any
// decoding starts, so an unusable configuration never spawns a process.
type ConfigFetch struct {
	cor.BaseCommand
	store      profile.Store
	blobs      blob.Gateway
	presignTTL time.Duration
}

func NewConfigFetch(store profile.Store, blobs blob.Gateway, presignTTL time.Duration) *ConfigFetch {
	out := &ConfigFetch{
		BaseCommand: *cor.NewBaseCommand(StageConfigFetch),
		store:       store,
		blobs:       blobs,
		presignTTL:  presignTTL,
	}
	out.InputParamName = ParamInstance
	return out
}

func (c *ConfigFetch) Execute(context cor.Context) {
	req := getRequest(context)
	instance := getInstance(context)

	var (
		tenant    *model.TenantConfig
		source    media.Source
		videoURL  string
		cfgErr    error
		sourceErr error
	)
	g, ctx := errgroup.WithContext(context.GetContext())
	g.Go(func() error {
		tenant, cfgErr = c.store.GetTenantConfig(ctx, instance.TenantID)
		if cfgErr == nil {
			cfgErr = tenant.Validate()
		}
		return cfgErr
	})
	g.Go(func() error {
		source, videoURL, sourceErr = c.resolve(ctx, req.Video)
		return sourceErr
	})
	_ = g.Wait()

	// A failed half cancels the other; report the half that failed first.
	if sourceErr != nil && (cfgErr == nil || (errors.Is(cfgErr, goctx.Canceled) && context.GetContext().Err() == nil)) {
		c.FailStage(context, StageResolveSource, sourceErr)
		return
	}
	if cfgErr != nil {
		var ce *model.ConfigurationError
		var su *model.StoreUnavailableError
		if !errors.As(cfgErr, &ce) && !errors.As(cfgErr, &su) && !errors.Is(cfgErr, goctx.Canceled) {
			cfgErr = &model.ConfigurationError{TenantID: instance.TenantID, Err: cfgErr}
		}
		c.Fail(context, cfgErr)
		return
	}

	mode := synthesis.ModeTranscript
	if tenant.UseVideoSynthesis {
		mode = synthesis.ModeVideo
	}
	trace.SpanFromContext(context.GetContext()).SetAttributes(
		attribute.String("tenant", instance.TenantID),
		attribute.String("mode", mode),
		attribute.String("tier", tenant.SubscriptionLevel),
	)

	context.Add(ParamTenant, tenant)
	context.Add(ParamMode, mode)
	context.Add(ParamSource, source)
	if videoURL != "" {
		context.Add(ParamVideoURL, videoURL)
	}
	if mode == synthesis.ModeVideo && source.URL != "" {
		context.Add(ParamVideoRef, &synthesis.VideoRef{
			URI:      source.URL,
			MIMEType: media.VideoMIMEType(req.Video.Key, nil),
		})
	}
	c.Succeed(context)
}

// resolve turns a video reference into a transcoder source. Blob keys are
// presigned for the configured window; local paths must be readable.
func (c *ConfigFetch) resolve(ctx goctx.Context, ref VideoRef) (media.Source, string, error) {
	if ref.LocalPath != "" {
		if _, err := os.Stat(ref.LocalPath); err != nil {
			return media.Source{}, "", &model.MediaReadError{Source: ref.LocalPath, Err: err}
		}
		return media.LocalSource(ref.LocalPath), "", nil
	}
	url, err := c.blobs.Presign(ctx, ref.Key, c.presignTTL)
	if err != nil {
		return media.Source{}, "", fmt.Errorf("presign source video: %w", err)
	}
	return media.RemoteSource(url), c.blobs.URL(ref.Key), nil
}
