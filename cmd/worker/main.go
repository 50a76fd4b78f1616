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

// Package main is the entry point for the daily report worker.
//
// The worker listens to the Pub/Sub subscriptions that receive Cloud Storage
// object notifications. Every new video under a project's uploads folder
// starts one report pipeline run. Messages whose run failed for a transient
// reason are left for redelivery; everything else is acknowledged.
//
// Functions:
//   - main: Builds the shared state, attaches the upload workflow to every
//     configured listener and blocks until interrupted.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jaycherian/gcp-go-daily-report/internal/app"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/workflow"
	"github.com/jaycherian/gcp-go-daily-report/internal/telemetry"
)

func main() {
	telemetry.SetupLogging()
	slog.Info("Logging initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	config := app.GetConfig()

	shutdown, err := telemetry.SetupOpenTelemetry(ctx, config)
	if err != nil {
		slog.Error("Failed to setup OpenTelemetry", "error", err)
		log.Fatal(err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			slog.Error("telemetry shutdown", "error", err)
		}
	}()

	state, err := app.NewState(ctx, config)
	if err != nil {
		slog.Error("Failed to initialize state", "error", err)
		log.Fatal(err)
	}
	defer func() {
		if err := state.Close(); err != nil {
			slog.Error("closing state", "error", err)
		}
	}()

	if len(state.Cloud.PubSubListeners) == 0 {
		log.Fatal("no topic subscriptions configured")
	}
	uploads := workflow.NewUploadWorkflow(state.Pipeline, config.Storage.Prefix)
	for name, listener := range state.Cloud.PubSubListeners {
		listener.SetCommand(uploads)
		if timeout := config.TopicSubscriptions[name].TimeoutInSeconds; timeout > 0 {
			listener.SetTimeout(time.Duration(timeout) * time.Second)
		}
		listener.Listen(ctx)
	}
	slog.Info("Worker ready", "subscriptions", len(state.Cloud.PubSubListeners))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutdown Worker ...")
	cancel()
	log.Println("Worker exiting")
}
