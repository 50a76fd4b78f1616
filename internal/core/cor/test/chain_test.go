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

package cor_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jaycherian/gcp-go-daily-report/internal/core/cor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepCommand struct {
	cor.BaseCommand
	run func(ctx cor.Context)
}

func newStep(name string, run func(ctx cor.Context)) *stepCommand {
	return &stepCommand{BaseCommand: *cor.NewBaseCommand(name), run: run}
}

func (s *stepCommand) IsExecutable(ctx cor.Context) bool { return ctx.GetContext() != nil }

func (s *stepCommand) Execute(ctx cor.Context) { s.run(ctx) }

func TestChainPipesOutputToInput(t *testing.T) {
	chain := cor.NewBaseChain("pipe")
	chain.AddCommand(newStep("first", func(ctx cor.Context) { ctx.Add(cor.CtxOut, "a") }))
	chain.AddCommand(newStep("second", func(ctx cor.Context) {
		ctx.Add(cor.CtxOut, ctx.Get(cor.CtxIn).(string)+"b")
	}))

	ctx := cor.NewBaseContext()
	chain.Execute(ctx)

	assert.False(t, ctx.HasErrors())
	assert.Equal(t, "ab", ctx.Get(cor.CtxIn))
	assert.Equal(t, []string{"first", "second"}, chain.Commands())
}

func TestChainStopsOnFirstError(t *testing.T) {
	var ran []string
	boom := errors.New("boom")
	chain := cor.NewBaseChain("stop")
	first := newStep("first", nil)
	first.run = func(ctx cor.Context) {
		ran = append(ran, "first")
		first.Fail(ctx, boom)
	}
	chain.AddCommand(first)
	chain.AddCommand(newStep("second", func(ctx cor.Context) { ran = append(ran, "second") }))

	ctx := cor.NewBaseContext()
	chain.Execute(ctx)

	assert.Equal(t, []string{"first"}, ran)
	assert.ErrorIs(t, ctx.FirstError(), boom)
	assert.Contains(t, ctx.GetErrors(), "first")
}

func TestChainStopsWhenCancelled(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	var ran []string
	chain := cor.NewBaseChain("cancel")
	chain.AddCommand(newStep("first", func(ctx cor.Context) {
		ran = append(ran, "first")
		cancel()
	}))
	chain.AddCommand(newStep("second", func(ctx cor.Context) { ran = append(ran, "second") }))

	ctx := cor.NewBaseContext()
	ctx.SetContext(parent)
	chain.Execute(ctx)

	assert.Equal(t, []string{"first"}, ran)
	assert.ErrorIs(t, ctx.FirstError(), context.Canceled)
	assert.Equal(t, parent, ctx.GetContext())
}

func TestContinueOnFailure(t *testing.T) {
	var ran []string
	chain := cor.NewBaseChain("continue")
	chain.ContinueOnFailure(true)
	chain.AddCommand(newStep("first", func(ctx cor.Context) { ctx.AddError("first", errors.New("x")) }))
	chain.AddCommand(newStep("second", func(ctx cor.Context) { ran = append(ran, "second") }))

	chain.Execute(cor.NewBaseContext())
	assert.Equal(t, []string{"second"}, ran)
}

func TestFirstErrorKeepsOrder(t *testing.T) {
	ctx := cor.NewBaseContext()
	a, b := errors.New("a"), errors.New("b")
	ctx.AddError("one", a)
	ctx.AddError("two", b)
	ctx.AddError("one", b)

	assert.Equal(t, a, ctx.FirstError())
	assert.Len(t, ctx.GetErrors(), 2)
}

func TestWarningsAreOrderedAndConcurrentSafe(t *testing.T) {
	ctx := cor.NewBaseContext()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx.AddWarning("frames", errors.New("frame failed"))
		}()
	}
	wg.Wait()
	assert.Len(t, ctx.GetWarnings(), 50)
	assert.False(t, ctx.HasErrors())
}

func TestCloseRunsCleanupsAndRemovesTempFiles(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "audio.mp3")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	var order []int
	ctx := cor.NewBaseContext()
	ctx.AddTempFile(file)
	ctx.AddCleanup(func() { order = append(order, 1) })
	ctx.AddCleanup(func() { order = append(order, 2) })

	ctx.Close()
	ctx.Close()

	assert.Equal(t, []int{2, 1}, order)
	_, err := os.Stat(file)
	assert.True(t, os.IsNotExist(err))
}
