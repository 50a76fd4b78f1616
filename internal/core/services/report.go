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

// Package services contains the business logic for interacting with data sources.
// This file, `report.go`, defines the ReportService, which serves published
// reports back to their tenant and applies edits to them.
//
// Logic Flow:
// A published report is addressed by any key under its base prefix. Edits
// always rewrite the whole JSON document with a single put, then regenerate
// the viewer and its PDF under the same prefix; the derived artifacts are
// best-effort, exactly as during generation. Images added by hand are
// stored in the report's frame folder next to the extracted ones.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/jaycherian/gcp-go-daily-report/internal/core/blob"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/commands"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/keys"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/media"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
)

// ErrOutsideTenant is returned for keys that do not belong to the caller.
var ErrOutsideTenant = errors.New("key is outside the tenant namespace")

// Listing is one level of a tenant's report tree.
type Listing struct {
	Prefix  string   `json:"prefix"`
	Folders []string `json:"folders"`
	Files   []string `json:"files"`
}

// ReportService reads and edits published reports.
type ReportService struct {
	Blobs      blob.Gateway
	Publisher  *commands.ViewerPublisher
	PresignTTL time.Duration
}

// resolve checks that key belongs to tenantID and returns its base.
func resolve(tenantID, key string) (keys.Base, error) {
	if !strings.HasPrefix(key, keys.TenantPrefix(tenantID)) {
		return keys.Base{}, fmt.Errorf("%w: %s", ErrOutsideTenant, key)
	}
	return keys.ParseBase(key)
}

// GetReport reads the report under key.
func (s *ReportService) GetReport(ctx context.Context, tenantID, key string) (*model.ReportDocument, error) {
	base, err := resolve(tenantID, key)
	if err != nil {
		return nil, err
	}
	data, err := blob.ReadAll(ctx, s.Blobs, keys.ReportKey(base.Prefix()))
	if err != nil {
		return nil, err
	}
	doc, err := model.ParseReportDocument(data)
	if err != nil {
		return nil, fmt.Errorf("stored report %s: %w", key, err)
	}
	return doc, nil
}

// SaveReport overwrites the report under key with doc and regenerates its
// viewer and PDF. Only the JSON write can fail the call.
func (s *ReportService) SaveReport(ctx context.Context, tenantID, key string, doc *model.ReportDocument) error {
	base, err := resolve(tenantID, key)
	if err != nil {
		return err
	}
	return s.save(ctx, base.Prefix(), doc)
}

func (s *ReportService) save(ctx context.Context, base string, doc *model.ReportDocument) error {
	data, err := doc.Indented()
	if err != nil {
		return err
	}
	reportKey := keys.ReportKey(base)
	if _, err := blob.PutBytes(ctx, s.Blobs, reportKey, data, blob.PutOptions{ContentType: blob.ContentTypeJSON}); err != nil {
		return &model.PublishError{Key: reportKey, Err: err}
	}
	if s.Publisher != nil {
		if err := s.Publisher.Regenerate(ctx, base, doc); err != nil {
			slog.WarnContext(ctx, "report saved without fresh viewer", "key", reportKey, "error", err)
		}
	}
	return nil
}

// AddImage stores an uploaded image in the report's frame folder and adds
// it to the report. A file name already in the report is rejected.
func (s *ReportService) AddImage(ctx context.Context, tenantID, key, fileName, caption string, body io.Reader, contentType string) (*model.ReportDocument, error) {
	doc, err := s.GetReport(ctx, tenantID, key)
	if err != nil {
		return nil, err
	}
	base, _ := resolve(tenantID, key)

	name := keys.Escape(path.Base(fileName))
	if name == "" || strings.Trim(name, ".") == "" {
		return nil, fmt.Errorf("invalid image name %q", fileName)
	}
	for _, img := range doc.Images {
		if img.FileName == name {
			return nil, fmt.Errorf("image %s already exists", name)
		}
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = media.ImageMIMEType(name, data)
	}
	url, err := blob.PutBytes(ctx, s.Blobs, keys.FrameKey(base.Prefix(), name), data, blob.PutOptions{ContentType: contentType})
	if err != nil {
		return nil, err
	}

	images := append(append([]model.ImageRecord(nil), doc.Images...), model.ImageRecord{FileName: name, Caption: caption, URL: url})
	if err := doc.SetImages(images); err != nil {
		return nil, err
	}
	if err := s.save(ctx, base.Prefix(), doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// RemoveImage drops an image from the report. The image object itself is
// kept so earlier PDFs and shared links stay intact.
func (s *ReportService) RemoveImage(ctx context.Context, tenantID, key, fileName string) (*model.ReportDocument, error) {
	doc, err := s.GetReport(ctx, tenantID, key)
	if err != nil {
		return nil, err
	}
	base, _ := resolve(tenantID, key)

	images := make([]model.ImageRecord, 0, len(doc.Images))
	for _, img := range doc.Images {
		if img.FileName != fileName {
			images = append(images, img)
		}
	}
	if len(images) == len(doc.Images) {
		return nil, &model.NotFoundError{Key: keys.FrameKey(base.Prefix(), fileName), Err: errors.New("image is not in the report")}
	}
	if err := doc.SetImages(images); err != nil {
		return nil, err
	}
	if err := s.save(ctx, base.Prefix(), doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Browse lists one level of a tenant's tree: its customers, a customer's
// projects, or a project's report folders and uploads.
func (s *ReportService) Browse(ctx context.Context, tenantID, customer, project string) (*Listing, error) {
	prefix := keys.TenantPrefix(tenantID)
	switch {
	case customer != "" && project != "":
		prefix = keys.ProjectPrefix(tenantID, customer, project)
	case customer != "":
		prefix += keys.Escape(customer) + keys.Separator
	}
	res, err := s.Blobs.List(ctx, prefix, keys.Separator)
	if err != nil {
		return nil, err
	}

	out := &Listing{Prefix: prefix, Folders: []string{}, Files: []string{}}
	for _, p := range res.Prefixes {
		name := strings.TrimSuffix(strings.TrimPrefix(p, prefix), keys.Separator)
		if customer == "" && name == keys.ConfigDir {
			continue
		}
		out.Folders = append(out.Folders, name)
	}
	for _, k := range res.Keys {
		out.Files = append(out.Files, strings.TrimPrefix(k, prefix))
	}
	return out, nil
}

// PresignAsset returns a temporary URL for one of the tenant's objects.
func (s *ReportService) PresignAsset(ctx context.Context, tenantID, key string) (string, error) {
	if !strings.HasPrefix(key, keys.TenantPrefix(tenantID)) || strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: %s", ErrOutsideTenant, key)
	}
	ttl := s.PresignTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return s.Blobs.Presign(ctx, key, ttl)
}
