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

package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Local stores objects as files under a base directory. URLs are file://
// URLs unless a base URL is configured (for example when the directory is
// served over HTTP).
type Local struct {
	baseDir string
	baseURL string
}

// NewLocal creates the base directory if needed.
func NewLocal(baseDir, baseURL string) (*Local, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	if baseURL != "" && !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Local{baseDir: abs, baseURL: baseURL}, nil
}

func (s *Local) path(key string) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.baseDir, clean), nil
}

func (s *Local) Put(ctx context.Context, key string, body io.Reader, _ PutOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", unavailable("put", key, err)
	}
	fullPath, err := s.path(key)
	if err != nil {
		return "", unavailable("put", key, err)
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", unavailable("put", key, fmt.Errorf("mkdir: %w", err))
	}
	// Write to a sibling temp file and rename so readers never observe a
	// partially written object.
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".put-*")
	if err != nil {
		return "", unavailable("put", key, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return "", unavailable("put", key, fmt.Errorf("write body: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return "", unavailable("put", key, err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return "", unavailable("put", key, err)
	}
	return s.URL(key), nil
}

func (s *Local) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("get", key, err)
	}
	fullPath, err := s.path(key)
	if err != nil {
		return nil, unavailable("get", key, err)
	}
	f, err := os.Open(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound(key, err)
	}
	if err != nil {
		return nil, unavailable("get", key, err)
	}
	return f, nil
}

func (s *Local) List(ctx context.Context, prefix, delimiter string) (*ListResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("list", prefix, err)
	}
	var all []string
	err := filepath.WalkDir(s.baseDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".put-") {
			return nil
		}
		rel, err := filepath.Rel(s.baseDir, p)
		if err != nil {
			return err
		}
		all = append(all, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, unavailable("list", prefix, err)
	}
	return groupListing(all, prefix, delimiter), nil
}

// Presign has no signing authority on a local disk. File URLs are returned
// as-is; HTTP base URLs carry the expiry for servers that check it.
func (s *Local) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", unavailable("presign", key, err)
	}
	if _, err := s.path(key); err != nil {
		return "", unavailable("presign", key, err)
	}
	if s.baseURL == "" {
		return s.URL(key), nil
	}
	q := url.Values{"expires": {strconv.FormatInt(time.Now().Add(ttl).Unix(), 10)}}
	return s.URL(key) + "?" + q.Encode(), nil
}

func (s *Local) URL(key string) string {
	if s.baseURL != "" {
		return s.baseURL + strings.TrimLeft(key, "/")
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(s.baseDir, filepath.FromSlash(key)))}
	return u.String()
}

var _ Gateway = (*Local)(nil)
