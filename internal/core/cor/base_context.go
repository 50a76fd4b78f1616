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

// Package cor (Chain of Responsibility) provides the fundamental building blocks
// for creating workflows. This file defines `BaseContext`, the default
// implementation of the `Context` interface.
//
// The `Context` is the shared state passed through the whole chain. Each
// command reads data from it, performs its work and writes results back for
// the commands after it. Commands that fan out to goroutines share the same
// context, so every method takes the context lock.
//
// This implementation includes:
//   - A map to hold arbitrary data (`data`).
//   - A map of fatal errors keyed by command name, plus their order.
//   - An ordered list of recoverable warnings.
//   - Temporary files and cleanup functions released by Close on every path.
//   - A standard Go `context.Context` for cancellation and trace propagation.
package cor

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

// BaseContext is the default implementation of the Context interface.
type BaseContext struct {
	mu         sync.Mutex
	data       map[string]interface{}
	errors     map[string]error
	errorOrder []string
	warnings   []Warning
	tempFiles  []string
	cleanups   []func()
	closed     bool
	context    context.Context
}

// NewBaseContext creates an empty context bound to context.Background().
func NewBaseContext() Context {
	return &BaseContext{
		data:    make(map[string]interface{}),
		errors:  make(map[string]error),
		context: context.Background(),
	}
}

func (c *BaseContext) SetContext(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.context = ctx
}

func (c *BaseContext) GetContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.context
}

// Close runs the cleanup functions in reverse registration order, then
// removes the temporary files. Failures are logged, never returned.
func (c *BaseContext) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	cleanups := c.cleanups
	files := c.tempFiles
	c.cleanups = nil
	c.tempFiles = nil
	c.mu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	for _, file := range files {
		if err := os.RemoveAll(file); err != nil {
			slog.Warn("failed to remove temporary file", "file", file, "error", err)
		}
	}
}

func (c *BaseContext) Add(key string, value interface{}) Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return c
}

func (c *BaseContext) AddTempFile(file string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tempFiles = append(c.tempFiles, file)
}

func (c *BaseContext) GetTempFiles() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.tempFiles...)
}

func (c *BaseContext) AddCleanup(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanups = append(c.cleanups, fn)
}

// AddError records err under key. The first error for a key wins.
func (c *BaseContext) AddError(key string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.errors[key]; exists {
		return
	}
	c.errors[key] = err
	c.errorOrder = append(c.errorOrder, key)
}

func (c *BaseContext) GetErrors() map[string]error {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]error, len(c.errors))
	for k, v := range c.errors {
		out[k] = v
	}
	return out
}

func (c *BaseContext) FirstError() error {
	_, err := c.FirstFailure()
	return err
}

func (c *BaseContext) FirstFailure() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.errorOrder) == 0 {
		return "", nil
	}
	key := c.errorOrder[0]
	return key, c.errors[key]
}

func (c *BaseContext) AddWarning(source string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warnings = append(c.warnings, Warning{Source: source, Err: err})
}

func (c *BaseContext) GetWarnings() []Warning {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Warning(nil), c.warnings...)
}

func (c *BaseContext) Get(key string) interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key]
}

func (c *BaseContext) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

func (c *BaseContext) HasErrors() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errors) > 0
}
