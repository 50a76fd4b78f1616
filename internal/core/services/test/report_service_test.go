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

// Package services_test contains the test suite for the services package.
// This file tests the ReportService against the in-memory blob store.
package services_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-daily-report/internal/core/blob"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/commands"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/keys"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/render"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/services"
	test "github.com/jaycherian/gcp-go-daily-report/internal/testutil"
	"github.com/zeebo/assert"
)

const (
	tenantID = "tenant-1"
	stored   = `{"narrative":"Poured the slab.","images":[{"fileName":"frame_12.000.jpg","caption":"Slab","s3Url":"memory://bucket/x"}]}`
)

var base = keys.BasePrefix(tenantID, "Acme", "Tower A", "2026-10-15T08-00-00Z")

type harness struct {
	blobs   *blob.Memory
	pdf     *test.FakePDF
	service *services.ReportService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	viewer, err := render.NewViewer()
	assert.NoError(t, err)
	h := &harness{blobs: blob.NewMemory(""), pdf: test.NewFakePDF()}
	h.service = &services.ReportService{
		Blobs: h.blobs,
		Publisher: &commands.ViewerPublisher{
			Blobs:      h.blobs,
			Viewer:     viewer,
			PDF:        h.pdf,
			PresignTTL: time.Minute,
		},
	}
	_, err = blob.PutBytes(context.Background(), h.blobs, keys.ReportKey(base), []byte(stored), blob.PutOptions{ContentType: blob.ContentTypeJSON})
	assert.NoError(t, err)
	return h
}

func TestGetReportFromAnyAssetKey(t *testing.T) {
	h := newHarness(t)
	doc, err := h.service.GetReport(context.Background(), tenantID, keys.AssetKey(base, keys.ViewerFile))
	assert.NoError(t, err)
	assert.Equal(t, len(doc.Images), 1)
	assert.Equal(t, doc.Images[0].FileName, "frame_12.000.jpg")
}

func TestGetReportRejectsOtherTenants(t *testing.T) {
	h := newHarness(t)
	_, err := h.service.GetReport(context.Background(), "tenant-2", keys.ReportKey(base))
	assert.True(t, errors.Is(err, services.ErrOutsideTenant))
}

func TestSaveReportRegeneratesViewerAndPDF(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc, err := h.service.GetReport(ctx, tenantID, base)
	assert.NoError(t, err)
	doc.Fields["narrative"] = []byte(`"Poured and cured the slab."`)

	assert.NoError(t, h.service.SaveReport(ctx, tenantID, base, doc))

	obj, ok := h.blobs.Object(keys.ReportKey(base))
	assert.True(t, ok)
	assert.True(t, bytes.Contains(obj.Data, []byte("cured")))
	_, ok = h.blobs.Object(keys.AssetKey(base, keys.ViewerFile))
	assert.True(t, ok)
	_, ok = h.blobs.Object(keys.AssetKey(base, keys.PDFFile))
	assert.True(t, ok)
	assert.Equal(t, len(h.pdf.URLs()), 1)
}

func TestSaveReportToleratesPDFFailure(t *testing.T) {
	h := newHarness(t)
	h.pdf.Err = test.ErrInjected
	ctx := context.Background()
	doc, err := h.service.GetReport(ctx, tenantID, base)
	assert.NoError(t, err)
	assert.NoError(t, h.service.SaveReport(ctx, tenantID, base, doc))
	_, ok := h.blobs.Object(keys.AssetKey(base, keys.PDFFile))
	assert.False(t, ok)
}

func TestSaveReportFailsOnJSONWrite(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc, err := h.service.GetReport(ctx, tenantID, base)
	assert.NoError(t, err)
	h.blobs.PutHook = func(key string) error {
		if strings.HasSuffix(key, keys.ReportFile) {
			return test.ErrInjected
		}
		return nil
	}
	err = h.service.SaveReport(ctx, tenantID, base, doc)
	var pubErr *model.PublishError
	assert.True(t, errors.As(err, &pubErr))
	_, ok := h.blobs.Object(keys.AssetKey(base, keys.ViewerFile))
	assert.False(t, ok)
}

func TestAddAndRemoveImage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	doc, err := h.service.AddImage(ctx, tenantID, base, "Crane Lift.JPG", "Crane on site", strings.NewReader("\xff\xd8\xff\xe0 jpeg"), "")
	assert.NoError(t, err)
	assert.Equal(t, len(doc.Images), 2)
	_, ok := h.blobs.Object(keys.FrameKey(base, "crane_lift.jpg"))
	assert.True(t, ok)

	_, err = h.service.AddImage(ctx, tenantID, base, "crane_lift.jpg", "again", strings.NewReader("x"), "image/jpeg")
	assert.Error(t, err)

	doc, err = h.service.RemoveImage(ctx, tenantID, base, "frame_12.000.jpg")
	assert.NoError(t, err)
	assert.Equal(t, len(doc.Images), 1)
	assert.Equal(t, doc.Images[0].FileName, "crane_lift.jpg")

	_, err = h.service.RemoveImage(ctx, tenantID, base, "frame_12.000.jpg")
	var nf *model.NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestBrowseWalksTheTenantTree(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := blob.PutBytes(ctx, h.blobs, keys.TenantAssetKey(tenantID, "logo.png"), []byte("png"), blob.PutOptions{})
	assert.NoError(t, err)

	top, err := h.service.Browse(ctx, tenantID, "", "")
	assert.NoError(t, err)
	assert.DeepEqual(t, top.Folders, []string{"acme"})

	projects, err := h.service.Browse(ctx, tenantID, "Acme", "")
	assert.NoError(t, err)
	assert.DeepEqual(t, projects.Folders, []string{"tower_a"})

	reports, err := h.service.Browse(ctx, tenantID, "Acme", "Tower A")
	assert.NoError(t, err)
	assert.Equal(t, len(reports.Folders), 1)
	assert.True(t, strings.HasPrefix(reports.Folders[0], keys.FolderPrefix))
}

func TestPresignAssetStaysInTenant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	url, err := h.service.PresignAsset(ctx, tenantID, keys.ReportKey(base))
	assert.NoError(t, err)
	assert.True(t, url != "")

	_, err = h.service.PresignAsset(ctx, tenantID, "tenant/tenant-2/x/y/z")
	assert.True(t, errors.Is(err, services.ErrOutsideTenant))
	_, err = h.service.PresignAsset(ctx, tenantID, keys.TenantPrefix(tenantID)+"../tenant-2/secret")
	assert.True(t, errors.Is(err, services.ErrOutsideTenant))
}

func TestReportIndexIsOptional(t *testing.T) {
	assert.True(t, services.NewReportIndex(nil, "", "") == nil)
}
