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
// for creating workflows. This file defines the core interfaces that govern the
// behavior of all components within this pattern. By using interfaces, the
// framework remains flexible and extensible, allowing different implementations
// of commands, chains, and contexts to be used interchangeably.
package cor

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// CtxIn and CtxOut are constant keys used to manage the primary data flow
// within a BaseChain.
const (
	// CtxIn is the default key for the primary input of a command. The BaseChain
	// will automatically populate the value of this key with the output from the
	// previous command.
	CtxIn = "__IN__"
	// CtxOut is the default key where a command should place its primary output.
	// The BaseChain will pick up the value from this key to use as the input
	// for the next command.
	CtxOut = "__OUT__"
)

// Warning is a recoverable failure recorded by a command. The chain keeps
// running; the warnings are reported with the result.
type Warning struct {
	Source string
	Err    error
}

// Context defines the interface for a shared state object that is passed
// through a chain of commands. It carries data, errors, warnings and cleanup
// work between commands for a single workflow execution. Implementations must
// be safe for use by the goroutines a command starts.
type Context interface {
	// SetContext sets the standard Go `context.Context` used for cancellation
	// and OpenTelemetry trace propagation.
	SetContext(context context.Context)

	// GetContext retrieves the standard Go `context.Context`.
	GetContext() context.Context

	// Add stores a key-value pair in the context. It returns the Context to
	// allow for fluent method chaining.
	Add(key string, value interface{}) Context

	// AddError records a fatal error keyed by the command that produced it.
	AddError(key string, err error)

	// GetErrors returns a copy of the recorded errors.
	GetErrors() map[string]error

	// FirstError returns the earliest recorded error, or nil.
	FirstError() error

	// FirstFailure returns the earliest recorded error and its key.
	FirstFailure() (string, error)

	// AddWarning records a recoverable failure.
	AddWarning(source string, err error)

	// GetWarnings returns the warnings in the order they were recorded.
	GetWarnings() []Warning

	// Get retrieves a value by key, or nil.
	Get(key string) interface{}

	// Remove deletes a key.
	Remove(key string)

	// HasErrors reports whether any fatal error was recorded.
	HasErrors() bool

	// AddTempFile registers a file to delete on Close.
	AddTempFile(file string)

	// GetTempFiles returns the registered temporary files.
	GetTempFiles() []string

	// AddCleanup registers a function to run on Close, last registered first.
	AddCleanup(fn func())

	// Close runs cleanups and removes temporary files. It is safe to call
	// more than once.
	Close()
}

// Executable is anything that can run against a Context.
type Executable interface {
	Execute(context Context)
}

// Command is a single step in a workflow.
type Command interface {
	Executable // Embeds the Execute method.

	// GetName returns the unique name of the command, used for tracing and
	// as the key for errors.
	GetName() string

	// GetInputParam returns the key the command reads its primary input from.
	GetInputParam() string

	// GetOutputParam returns the key the command writes its primary output to.
	GetOutputParam() string

	// IsExecutable reports whether the context holds what the command needs.
	IsExecutable(context Context) bool

	GetTracer() trace.Tracer

	GetMeter() metric.Meter

	GetSuccessCounter() metric.Int64Counter

	GetErrorCounter() metric.Int64Counter
}

// Chain is a Command composed of other commands run in order.
type Chain interface {
	Command // A Chain is a Command.

	// ContinueOnFailure sets whether the chain keeps going after an error.
	ContinueOnFailure(bool) Chain

	// AddCommand appends a command to the chain.
	AddCommand(command Command) Chain
}
