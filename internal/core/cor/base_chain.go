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
// for creating workflows as a sequence of commands. This file defines the
// `BaseChain`, which is the default implementation of the `Chain` interface.
//
// Logic Flow:
// A `BaseChain` is itself a `Command`, allowing chains to be nested within
// other chains. Its primary role is to execute a list of `Command` objects in
// a predefined order.
//
//  1. **Execution starts**: The `Execute` method is called with a shared context.
//  2. **Telemetry**: An OpenTelemetry span is created for the entire chain.
//  3. **Command Loop**: The chain iterates through its list of commands.
//  4. **Error Handling**: Before executing a command, it checks whether the context
//     already has errors or whether the Go context was cancelled. In either case,
//     unless `continueOnFailure` is set, the chain stops. Cancellation is
//     recorded as an error under the chain's name.
//  5. **Execution & Context Management**: Each command runs under its own child
//     span; the Go context is reset to the chain's context afterwards.
//  6. **Data Piping**: After a command executes, the value in `CtxOut` is moved
//     to `CtxIn` for the next command.
//  7. **Completion**: The chain span status reflects the final state.
package cor

import (
	"fmt"

	"go.opentelemetry.io/otel/codes"
)

// BaseChain is the default implementation of the Chain interface.
type BaseChain struct {
	BaseCommand
	continueOnFailure bool      // Whether later commands still run after a failure.
	commands          []Command // The ordered list of commands that this chain will execute.
}

// NewBaseChain creates an empty chain named name.
func NewBaseChain(name string) *BaseChain {
	return &BaseChain{BaseCommand: *NewBaseCommand(name)}
}

func (c *BaseChain) ContinueOnFailure(continueOnFailure bool) Chain {
	c.continueOnFailure = continueOnFailure
	return c
}

func (c *BaseChain) AddCommand(command Command) Chain {
	c.commands = append(c.commands, command)
	return c
}

// Commands returns the names of the commands in execution order.
func (c *BaseChain) Commands() []string {
	names := make([]string, 0, len(c.commands))
	for _, command := range c.commands {
		names = append(names, command.GetName())
	}
	return names
}

// IsExecutable only requires a Go context; each command checks its own input.
func (c *BaseChain) IsExecutable(context Context) bool {
	return context.GetContext() != nil
}

func (c *BaseChain) Execute(chCtx Context) {
	parentCtx := chCtx.GetContext()

	outerCtx, chainSpan := c.Tracer.Start(parentCtx, fmt.Sprintf("%s_execute", c.GetName()))
	defer chainSpan.End()
	defer chCtx.SetContext(parentCtx)

	for _, command := range c.commands {
		if !c.continueOnFailure {
			if chCtx.HasErrors() {
				break
			}
			if err := outerCtx.Err(); err != nil {
				chCtx.AddError(c.GetName(), err)
				break
			}
		}

		commandContext, commandSpan := c.Tracer.Start(outerCtx, command.GetName())

		if command.IsExecutable(chCtx) {
			chCtx.SetContext(commandContext)
			command.Execute(chCtx)
			chCtx.SetContext(outerCtx)
		} else {
			commandSpan.SetStatus(codes.Error, fmt.Sprintf("command not executable: %s", command.GetName()))
		}

		if chCtx.HasErrors() {
			commandSpan.SetStatus(codes.Error, "error during or after command execution")
		} else {
			commandSpan.SetStatus(codes.Ok, "command completed successfully")
		}
		commandSpan.End()

		outputValue := chCtx.Get(CtxOut)
		chCtx.Remove(CtxIn)
		if outputValue != nil {
			chCtx.Add(CtxIn, outputValue)
		}
		chCtx.Remove(CtxOut)
	}

	if !chCtx.HasErrors() {
		chainSpan.SetStatus(codes.Ok, "chain completed successfully")
		c.Succeed(chCtx)
	} else {
		chainSpan.SetStatus(codes.Error, "chain failed to execute")
		if c.ErrorCounter != nil {
			c.ErrorCounter.Add(parentCtx, 1)
		}
	}
}
