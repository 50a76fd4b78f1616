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
	"time"

	"github.com/jaycherian/gcp-go-daily-report/internal/core/blob"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/keys"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/render"
)

// ViewerPublisher renders and stores the derived artifacts of a report: the
// viewer page and its PDF print. It is shared by the pipeline and by the
// report editing service, which regenerates both under the same prefix.
type ViewerPublisher struct {
	Blobs      blob.Gateway
	Viewer     render.ViewerRenderer
	PDF        render.PDFRenderer
	PresignTTL time.Duration
}

// RenderViewer renders the viewer page with the document's own logo URL.
func (p *ViewerPublisher) RenderViewer(doc *model.ReportDocument) ([]byte, error) {
	if p.Viewer == nil {
		return nil, errors.New("no viewer renderer configured")
	}
	logo := ""
	if doc.Assets != nil {
		logo = doc.Assets.LogoURL
	}
	return p.Viewer.Render(doc, logo)
}

// PutViewer stores the viewer page. Viewers are never cached so edits show
// up immediately.
func (p *ViewerPublisher) PutViewer(ctx goctx.Context, base string, html []byte) (string, error) {
	key := keys.AssetKey(base, keys.ViewerFile)
	url, err := blob.PutBytes(ctx, p.Blobs, key, html, blob.PutOptions{
		ContentType:  blob.ContentTypeHTML,
		CacheControl: blob.NoCache,
	})
	if err != nil {
		return "", &model.PublishError{Key: key, Err: err}
	}
	return url, nil
}

// PutPDF prints the stored viewer through a temporary URL and stores the
// PDF. It is a no-op without a PDF renderer.
func (p *ViewerPublisher) PutPDF(ctx goctx.Context, base string) error {
	if p.PDF == nil {
		return nil
	}
	viewerURL, err := p.Blobs.Presign(ctx, keys.AssetKey(base, keys.ViewerFile), p.PresignTTL)
	if err != nil {
		return fmt.Errorf("presign viewer: %w", err)
	}
	data, err := p.PDF.RenderURL(ctx, viewerURL)
	if err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	key := keys.AssetKey(base, keys.PDFFile)
	if _, err := blob.PutBytes(ctx, p.Blobs, key, data, blob.PutOptions{ContentType: blob.ContentTypePDF}); err != nil {
		return &model.PublishError{Key: key, Err: err}
	}
	return nil
}

// Regenerate renders, stores and prints the viewer of doc. Failures are
// returned joined; the viewer failure skips the PDF.
func (p *ViewerPublisher) Regenerate(ctx goctx.Context, base string, doc *model.ReportDocument) error {
	html, err := p.RenderViewer(doc)
	if err != nil {
		return fmt.Errorf("render viewer: %w", err)
	}
	if _, err := p.PutViewer(ctx, base, html); err != nil {
		return err
	}
	return p.PutPDF(ctx, base)
}
