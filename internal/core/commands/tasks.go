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
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Tasks tracks the background work of one job by name. A task's result can
// be awaited any number of times.
type Tasks struct {
	mu     sync.Mutex
	groups map[string]*errgroup.Group
}

func NewTasks() *Tasks {
	return &Tasks{groups: make(map[string]*errgroup.Group)}
}

// Go starts fn as the task name. Starting a name twice is a programming
// error and panics.
func (t *Tasks) Go(name string, fn func() error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.groups[name]; exists {
		panic("task already started: " + name)
	}
	g := new(errgroup.Group)
	g.Go(fn)
	t.groups[name] = g
}

// Wait blocks until the task completes. ok is false when no such task was
// started.
func (t *Tasks) Wait(name string) (ok bool, err error) {
	if t == nil {
		return false, nil
	}
	t.mu.Lock()
	g, ok := t.groups[name]
	t.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, g.Wait()
}

// Started reports whether a task was started.
func (t *Tasks) Started(name string) bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.groups[name]
	return ok
}

// WaitAll blocks until every task has completed and returns their errors
// by name.
func (t *Tasks) WaitAll() map[string]error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	names := make([]string, 0, len(t.groups))
	for name := range t.groups {
		names = append(names, name)
	}
	t.mu.Unlock()
	sort.Strings(names)

	out := make(map[string]error)
	for _, name := range names {
		if _, err := t.Wait(name); err != nil {
			out[name] = err
		}
	}
	return out
}
