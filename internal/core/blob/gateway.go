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

// Package blob is the Blob Store Gateway: a thin capability wrapper over an
// object store exposing put, get, list and presign. The pipeline only talks
// to the Gateway interface; the backends here cover Google Cloud Storage,
// Amazon S3, a local directory and an in-memory map.
//
// All backends report failures with the model error taxonomy:
// NotFoundError for missing keys and StoreUnavailableError for everything
// else (network, auth, expired credentials).
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
)

// Content types used by the pipeline.
const (
	ContentTypeJSON = "application/json"
	ContentTypeHTML = "text/html; charset=utf-8"
	ContentTypePDF  = "application/pdf"
	ContentTypeJPEG = "image/jpeg"
	ContentTypeMP3  = "audio/mpeg"

	NoCache = "no-cache, no-store, must-revalidate"
)

// PutOptions carries object metadata for a write.
type PutOptions struct {
	ContentType  string
	CacheControl string
}

// ListResult holds the keys directly under a prefix and, when a delimiter
// was given, the common prefixes one level down.
type ListResult struct {
	Keys     []string `json:"keys"`
	Prefixes []string `json:"prefixes"`
}

// Gateway is the object store capability used by the pipeline and services.
type Gateway interface {
	// Put writes body to key and returns the object's URL.
	Put(ctx context.Context, key string, body io.Reader, opts PutOptions) (string, error)
	// Get opens key for reading. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// List returns keys and common prefixes under prefix.
	List(ctx context.Context, prefix, delimiter string) (*ListResult, error)
	// Presign returns a temporary GET URL valid for ttl.
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
	// URL returns the permanent address of key.
	URL(key string) string
}

// PutBytes is a convenience for small in-memory payloads.
func PutBytes(ctx context.Context, g Gateway, key string, data []byte, opts PutOptions) (string, error) {
	return g.Put(ctx, key, bytes.NewReader(data), opts)
}

// ReadAll fetches a whole object.
func ReadAll(ctx context.Context, g Gateway, key string) ([]byte, error) {
	r, err := g.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, unavailable("read", key, err)
	}
	return data, nil
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *model.NotFoundError
	return errors.As(err, &nf)
}

func unavailable(op, key string, err error) error {
	var nf *model.NotFoundError
	var su *model.StoreUnavailableError
	if errors.As(err, &nf) || errors.As(err, &su) {
		return err
	}
	return &model.StoreUnavailableError{Op: op, Key: key, Err: err}
}

func notFound(key string, err error) error {
	return &model.NotFoundError{Key: key, Err: err}
}

// groupListing turns a flat key list into a ListResult the way object stores
// do for delimiter listings.
func groupListing(all []string, prefix, delimiter string) *ListResult {
	out := &ListResult{Keys: []string{}, Prefixes: []string{}}
	seen := make(map[string]bool)
	for _, k := range all {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := strings.TrimPrefix(k, prefix)
		if delimiter != "" {
			if i := strings.Index(rest, delimiter); i >= 0 {
				p := prefix + rest[:i+len(delimiter)]
				if !seen[p] {
					seen[p] = true
					out.Prefixes = append(out.Prefixes, p)
				}
				continue
			}
		}
		out.Keys = append(out.Keys, k)
	}
	sort.Strings(out.Keys)
	sort.Strings(out.Prefixes)
	return out
}

func applyPrefix(prefix, key string) string {
	cleanPrefix := strings.Trim(prefix, "/")
	cleanKey := strings.TrimLeft(key, "/")
	if cleanPrefix == "" {
		return cleanKey
	}
	if cleanKey == "" {
		return cleanPrefix + "/"
	}
	return cleanPrefix + "/" + cleanKey
}

func stripPrefix(prefix, key string) string {
	cleanPrefix := strings.Trim(prefix, "/")
	if cleanPrefix == "" {
		return key
	}
	return strings.TrimPrefix(key, cleanPrefix+"/")
}

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("empty key")
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("invalid key %q", key)
	}
	return nil
}
