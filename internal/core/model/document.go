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

package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Names of the document fields owned by the pipeline. Every other top-level
// field belongs to the tenant's report schema and is carried through as-is.
const (
	FieldImages   = "images"
	FieldMetadata = "reportMetadata"
	FieldAssets   = "reportAssetsS3Urls"
)

// FrameCandidate is a timestamp and caption proposed by the generative model.
type FrameCandidate struct {
	Timestamp Seconds `json:"timestamp"`
	Caption   string  `json:"caption"`
}

// Seconds accepts both JSON numbers and numeric strings; models are not
// consistent about which one they emit.
type Seconds float64

func (s *Seconds) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(str), "s"), 64)
		if err != nil {
			return fmt.Errorf("timestamp %q is not a number: %w", str, err)
		}
		*s = Seconds(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = Seconds(v)
	return nil
}

// ImageRecord is an uploaded frame as it appears in a published report.
type ImageRecord struct {
	FileName string `json:"fileName"`
	Caption  string `json:"caption"`
	URL      string `json:"s3Url"`
}

// ReportDocument is the evolving structured report. It starts as the raw
// synthesizer output, with Candidates holding the proposed frames, then has
// its Images finalised and finally gets Metadata and Assets attached exactly
// once before it is serialised and published.
type ReportDocument struct {
	Fields     map[string]json.RawMessage
	Candidates []FrameCandidate
	Images     []ImageRecord
	Metadata   *ReportMetadata
	Assets     *AssetURLs

	imagesFinal bool
}

// ParseReportDocument decodes a JSON object into a document. The images field
// is read as published records when its entries carry a fileName, and as
// frame candidates otherwise.
func ParseReportDocument(data []byte) (*ReportDocument, error) {
	return parseDocument(data, false)
}

// ParseCandidateDocument decodes freshly synthesized output. Its images are
// always frame candidates, whatever extra keys the entries carry.
func ParseCandidateDocument(data []byte) (*ReportDocument, error) {
	return parseDocument(data, true)
}

func parseDocument(data []byte, candidates bool) (*ReportDocument, error) {
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("report is not a JSON object: %w", err)
	}
	if fields == nil {
		return nil, errors.New("report is not a JSON object: null")
	}
	doc := &ReportDocument{Fields: fields}

	if raw, ok := fields[FieldImages]; ok {
		delete(fields, FieldImages)
		if err := doc.decodeImages(raw, candidates); err != nil {
			return nil, err
		}
	}
	if raw, ok := fields[FieldMetadata]; ok {
		delete(fields, FieldMetadata)
		if !isNull(raw) {
			doc.Metadata = &ReportMetadata{}
			if err := json.Unmarshal(raw, doc.Metadata); err != nil {
				return nil, fmt.Errorf("invalid %s: %w", FieldMetadata, err)
			}
		}
	}
	if raw, ok := fields[FieldAssets]; ok {
		delete(fields, FieldAssets)
		if !isNull(raw) {
			doc.Assets = &AssetURLs{}
			if err := json.Unmarshal(raw, doc.Assets); err != nil {
				return nil, fmt.Errorf("invalid %s: %w", FieldAssets, err)
			}
		}
	}
	return doc, nil
}

func (d *ReportDocument) decodeImages(raw json.RawMessage, candidates bool) error {
	if isNull(raw) {
		return nil
	}
	var entries []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("invalid %s: %w", FieldImages, err)
	}
	published := !candidates && len(entries) > 0
	for _, e := range entries {
		if _, ok := e["fileName"]; !ok {
			published = false
			break
		}
	}
	if published {
		if err := json.Unmarshal(raw, &d.Images); err != nil {
			return fmt.Errorf("invalid %s: %w", FieldImages, err)
		}
		d.imagesFinal = true
		return nil
	}
	if err := json.Unmarshal(raw, &d.Candidates); err != nil {
		return fmt.Errorf("invalid %s candidates: %w", FieldImages, err)
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// HasField reports whether a schema-shaped top-level field is present.
func (d *ReportDocument) HasField(name string) bool {
	switch name {
	case FieldImages:
		return d.imagesFinal || d.Candidates != nil
	case FieldMetadata:
		return d.Metadata != nil
	case FieldAssets:
		return d.Assets != nil
	}
	_, ok := d.Fields[name]
	return ok
}

// ImagesFinal reports whether SetImages has replaced the candidates.
func (d *ReportDocument) ImagesFinal() bool { return d.imagesFinal }

// SetImages replaces the candidates with uploaded image records. Records are
// sorted by file name so the document does not depend on upload completion
// order. Every record needs a URL and file names must be unique.
func (d *ReportDocument) SetImages(records []ImageRecord) error {
	sorted := make([]ImageRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].FileName < sorted[j].FileName })
	for i, r := range sorted {
		if r.URL == "" {
			return fmt.Errorf("image %s has no URL", r.FileName)
		}
		if i > 0 && sorted[i-1].FileName == r.FileName {
			return fmt.Errorf("duplicate image file name %s", r.FileName)
		}
	}
	d.Images = sorted
	d.Candidates = nil
	d.imagesFinal = true
	return nil
}

// AttachMetadata sets the metadata and asset URLs. It is only valid once, and
// only after the images are final.
func (d *ReportDocument) AttachMetadata(meta ReportMetadata, assets AssetURLs) error {
	if !d.imagesFinal {
		return errors.New("report metadata attached before images were finalised")
	}
	if d.Metadata != nil || d.Assets != nil {
		return errors.New("report metadata already attached")
	}
	d.Metadata = &meta
	d.Assets = &assets
	return nil
}

// MarshalJSON writes the schema fields followed by the core-managed fields.
func (d *ReportDocument) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Fields)+3)
	for k, v := range d.Fields {
		out[k] = v
	}
	switch {
	case d.imagesFinal:
		images := d.Images
		if images == nil {
			images = []ImageRecord{}
		}
		out[FieldImages] = images
	case d.Candidates != nil:
		out[FieldImages] = d.Candidates
	}
	if d.Metadata != nil {
		out[FieldMetadata] = d.Metadata
	}
	if d.Assets != nil {
		out[FieldAssets] = d.Assets
	}
	return json.Marshal(out)
}

// Indented serialises the document the way it is published.
func (d *ReportDocument) Indented() ([]byte, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
