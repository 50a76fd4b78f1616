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

// Package render produces the human-facing forms of a report: the
// self-contained HTML viewer and its PDF print.
package render

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
)

//go:embed templates/*.tmpl
var templateFiles embed.FS

// ViewerRenderer produces the viewer HTML of a report.
type ViewerRenderer interface {
	Render(doc *model.ReportDocument, logoURL string) ([]byte, error)
}

// Viewer renders the report viewer page. The report JSON is embedded in a
// script block; the page needs no server to display it.
type Viewer struct {
	tmpl *template.Template
}

// NewViewer parses the embedded viewer template.
func NewViewer() (*Viewer, error) {
	tmpl, err := template.ParseFS(templateFiles, "templates/report-viewer.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse viewer template: %w", err)
	}
	return &Viewer{tmpl: tmpl}, nil
}

type viewerData struct {
	Title   string
	LogoURL string
	Report  any
}

// Render returns the viewer HTML for doc.
func (v *Viewer) Render(doc *model.ReportDocument, logoURL string) ([]byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	var report map[string]any
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}

	data := viewerData{Title: "Daily Report", LogoURL: logoURL, Report: report}
	if doc.Metadata != nil {
		parts := []string{"Daily Report"}
		for _, p := range []string{doc.Metadata.Customer, doc.Metadata.Project} {
			if p != "" {
				parts = append(parts, p)
			}
		}
		data.Title = strings.Join(parts, " - ")
	}

	var buf bytes.Buffer
	if err := v.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render viewer: %w", err)
	}
	return buf.Bytes(), nil
}

var _ ViewerRenderer = (*Viewer)(nil)
