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

// Package cloud provides components for interacting with Google Cloud services.
// This file defines a generic Pub/Sub message listener. It hides the receive
// loop and delegates each message to a Command, so the worker only has to
// build the chain that handles an upload notification.
//
// Logic Flow:
//  1. An instance of PubSubListener is created with a client and a subscription ID.
//  2. A "Command" is attached to this listener.
//  3. `Listen` starts a goroutine that receives messages until its context ends.
//  4. Each message is handed to the command inside a fresh cor.Context with
//     the payload under cor.CtxIn and a span for the message.
//  5. The message is acknowledged only if the command completes without
//     errors, which gives at-least-once processing. Failed messages are left
//     for redelivery under the subscription's retry policy.
//
// Structs:
//   - PubSubListener: Manages the connection to a Pub/Sub subscription and holds
//     the command that will process incoming messages.
package cloud

import (
	"context"
	"log/slog"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/cor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PubSubListener connects a subscription to a processing command.
type PubSubListener struct {
	client       *pubsub.Client
	subscription *pubsub.Subscription
	command      cor.Command
	timeout      time.Duration
}

// NewPubSubListener creates a listener on subscriptionID. The command may be
// nil and attached later with SetCommand.
func NewPubSubListener(
	pubsubClient *pubsub.Client,
	subscriptionID string,
	command cor.Command,
) (cmd *PubSubListener, err error) {
	sub := pubsubClient.Subscription(subscriptionID)
	cmd = &PubSubListener{
		client:       pubsubClient,
		subscription: sub,
		command:      command,
	}
	return cmd, nil
}

// SetCommand attaches command unless one is already set.
func (m *PubSubListener) SetCommand(command cor.Command) {
	if m.command == nil {
		m.command = command
	}
}

// SetTimeout bounds the processing of a single message. Zero means no bound.
func (m *PubSubListener) SetTimeout(timeout time.Duration) {
	m.timeout = timeout
}

// Handle runs the command for one payload and reports whether it succeeded.
func (m *PubSubListener) Handle(ctx context.Context, data []byte) bool {
	tracer := otel.Tracer("message-listener")
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	spanCtx, span := tracer.Start(ctx, "receive-message")
	defer span.End()
	span.SetAttributes(attribute.String("msg", string(data)))

	chainCtx := cor.NewBaseContext()
	defer chainCtx.Close()
	chainCtx.SetContext(spanCtx)
	chainCtx.Add(cor.CtxIn, string(data))

	m.command.Execute(chainCtx)

	if chainCtx.HasErrors() {
		span.SetStatus(codes.Error, "failed")
		for name, e := range chainCtx.GetErrors() {
			slog.ErrorContext(spanCtx, "error executing chain", "command", name, "error", e)
		}
		return false
	}
	span.SetStatus(codes.Ok, "success")
	return true
}

// Listen receives messages in a background goroutine until ctx is done.
func (m *PubSubListener) Listen(ctx context.Context) {
	slog.Info("listening", "subscription", m.subscription.String())

	go func() {
		err := m.subscription.Receive(ctx, func(msgCtx context.Context, msg *pubsub.Message) {
			if m.Handle(msgCtx, msg.Data) {
				msg.Ack()
			}
		})
		if err != nil {
			slog.Error("error receiving data", "subscription", m.subscription.String(), "error", err)
		}
	}()
}
