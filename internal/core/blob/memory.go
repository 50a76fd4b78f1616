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
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// Object is one stored entry of the in-memory backend.
type Object struct {
	Data         []byte
	ContentType  string
	CacheControl string
}

// Memory is a goroutine-safe in-memory Gateway. It backs the "memory"
// storage backend and the pipeline tests. The optional hooks inject
// failures per key.
type Memory struct {
	BaseURL string
	// PutHook runs before every write; a non-nil error fails the write.
	PutHook func(key string) error
	// GetHook runs before every read.
	GetHook func(key string) error

	mu      sync.Mutex
	objects map[string]Object
	writes  []string
}

// NewMemory returns an empty store addressed under baseURL.
func NewMemory(baseURL string) *Memory {
	if baseURL == "" {
		baseURL = "memory://bucket/"
	}
	return &Memory{BaseURL: baseURL, objects: make(map[string]Object)}
}

func (m *Memory) Put(ctx context.Context, key string, body io.Reader, opts PutOptions) (string, error) {
	if err := checkKey(key); err != nil {
		return "", unavailable("put", key, err)
	}
	if m.PutHook != nil {
		if err := m.PutHook(key); err != nil {
			return "", unavailable("put", key, err)
		}
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", unavailable("put", key, err)
	}
	if err := ctx.Err(); err != nil {
		return "", unavailable("put", key, err)
	}
	m.mu.Lock()
	m.objects[key] = Object{Data: data, ContentType: opts.ContentType, CacheControl: opts.CacheControl}
	m.writes = append(m.writes, key)
	m.mu.Unlock()
	return m.URL(key), nil
}

func (m *Memory) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("get", key, err)
	}
	if m.GetHook != nil {
		if err := m.GetHook(key); err != nil {
			return nil, unavailable("get", key, err)
		}
	}
	m.mu.Lock()
	obj, ok := m.objects[key]
	m.mu.Unlock()
	if !ok {
		return nil, notFound(key, errors.New("no such key"))
	}
	return io.NopCloser(bytes.NewReader(obj.Data)), nil
}

func (m *Memory) List(ctx context.Context, prefix, delimiter string) (*ListResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("list", prefix, err)
	}
	m.mu.Lock()
	all := make([]string, 0, len(m.objects))
	for k := range m.objects {
		all = append(all, k)
	}
	m.mu.Unlock()
	return groupListing(all, prefix, delimiter), nil
}

func (m *Memory) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", unavailable("presign", key, err)
	}
	q := url.Values{"expires": {strconv.FormatInt(time.Now().Add(ttl).Unix(), 10)}}
	return m.URL(key) + "?" + q.Encode(), nil
}

func (m *Memory) URL(key string) string {
	return m.BaseURL + key
}

// Object returns a stored entry.
func (m *Memory) Object(key string) (Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	return obj, ok
}

// Keys returns every stored key.
func (m *Memory) Keys() []string {
	res, _ := m.List(context.Background(), "", "")
	return res.Keys
}

// Writes returns the keys in the order they were written.
func (m *Memory) Writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.writes))
	copy(out, m.writes)
	return out
}

var _ Gateway = (*Memory)(nil)
