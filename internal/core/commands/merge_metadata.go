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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jaycherian/gcp-go-daily-report/internal/core/blob"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/cor"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/keys"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/synthesis"
)

// MergeMetadata attaches reportMetadata and reportAssetsS3Urls to the
// document once every frame has its URL.
type MergeMetadata struct {
	cor.BaseCommand
	blobs          blob.Gateway
	defaultLogoURL string
	clock          func() time.Time
}

// NewMergeMetadata uses defaultLogoURL for tenants without a logo of their
// own.
func NewMergeMetadata(blobs blob.Gateway, defaultLogoURL string, clock func() time.Time) *MergeMetadata {
	if clock == nil {
		clock = time.Now
	}
	out := &MergeMetadata{
		BaseCommand:    *cor.NewBaseCommand(StageMergeMetadata),
		blobs:          blobs,
		defaultLogoURL: defaultLogoURL,
		clock:          clock,
	}
	out.InputParamName = ParamDocument
	return out
}

var errImagesNotFinal = errors.New("frame images were never finalized")

func (c *MergeMetadata) Execute(context cor.Context) {
	if !getDocument(context).ImagesFinal() {
		c.Fail(context, errImagesNotFinal)
		return
	}
	tenant := getTenant(context)
	if err := tenant.ValidateIdentity(); err != nil {
		c.Fail(context, err)
		return
	}

	// The source copy has to land before its URL is published.
	if ok, err := GetTasks(context).Wait(TaskSourceVideo); ok && err != nil {
		c.Warn(context, fmt.Errorf("source video copy: %w", err))
		context.Remove(ParamVideoURL)
	}

	instance := getInstance(context)
	base := getBase(context)
	assets := model.AssetURLs{
		BaseURL:   c.blobs.URL(base + keys.Separator),
		LogoURL:   LogoURL(c.blobs, tenant, c.defaultLogoURL),
		ViewerURL: c.blobs.URL(keys.AssetKey(base, keys.ViewerFile)),
		VideoURL:  getString(context, ParamVideoURL),
	}
	if getMode(context) == synthesis.ModeTranscript {
		assets.TranscriptionURL = c.blobs.URL(keys.AssetKey(base, keys.TranscriptFile))
	}
	meta := tenant.Metadata(instance.Customer, instance.Project, c.clock())

	if err := getDocument(context).AttachMetadata(meta, assets); err != nil {
		c.Fail(context, err)
		return
	}
	c.Succeed(context)
}

// LogoURL resolves a tenant's logo. A logo reference that is already a URL
// is used as is; a file name points into the tenant's config folder.
func LogoURL(blobs blob.Gateway, tenant *model.TenantConfig, fallback string) string {
	ref := tenant.LogoRef
	switch {
	case ref == "":
		return fallback
	case isURL(ref):
		return ref
	}
	return blobs.URL(keys.TenantAssetKey(tenant.TenantID, ref))
}

func isURL(s string) bool {
	for _, scheme := range []string{"https://", "http://", "gs://", "s3://"} {
		if strings.HasPrefix(s, scheme) {
			return true
		}
	}
	return false
}
