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

// Package main applies the profile store migrations and exits.
package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"github.com/jaycherian/gcp-go-daily-report/internal/app"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/profile"
	"github.com/jaycherian/gcp-go-daily-report/internal/telemetry"
)

func main() {
	telemetry.SetupLogging()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	config := app.GetConfig()
	if config.Database.URL == "" {
		log.Fatal("database.url is not configured")
	}
	db, err := profile.Connect(ctx, config.Database.URL, profile.OptionsFromConfig(config.Database))
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := profile.Migrate(ctx, db); err != nil {
		slog.Error("migration failed", "error", err)
		log.Fatal(err)
	}
	slog.Info("migrations applied")
}
