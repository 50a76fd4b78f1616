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

// Package telemetry sets up logging, tracing and metrics for the report
// binaries. This file configures slog for Google Cloud Logging.
//
// Logic Flow:
//  1. SetupLogging installs a JSON handler whose keys follow the Cloud
//     Logging structured payload (severity, timestamp, message).
//  2. The handler adds the trace and span ids of the record's context, so
//     every log line of a pipeline run links to its trace.
//  3. WithLogAttrs stores job attributes (tenant, report prefix) in a
//     context; the handler appends them to every record logged with it.
package telemetry

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// Environment variables read by SetupLogging.
const (
	EnvLogLevel = "LOG_LEVEL" // debug, info, warn or error. Defaults to info.
	EnvLogFile  = "LOG_FILE"  // Optional file that receives a copy of the output.
)

type logAttrsKey struct{}

// WithLogAttrs returns a context whose log records carry attrs in addition
// to any attributes already attached to ctx.
func WithLogAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	prev, _ := ctx.Value(logAttrsKey{}).([]slog.Attr)
	merged := make([]slog.Attr, 0, len(prev)+len(attrs))
	merged = append(merged, prev...)
	merged = append(merged, attrs...)
	return context.WithValue(ctx, logAttrsKey{}, merged)
}

// cloudLogHandler adds trace correlation and context attributes.
type cloudLogHandler struct {
	slog.Handler
}

func (h *cloudLogHandler) Handle(ctx context.Context, record slog.Record) error {
	if attrs, ok := ctx.Value(logAttrsKey{}).([]slog.Attr); ok {
		record.AddAttrs(attrs...)
	}
	// https://cloud.google.com/logging/docs/structured-logging#special-payload-fields
	if s := trace.SpanContextFromContext(ctx); s.IsValid() {
		record.AddAttrs(
			slog.Any("logging.googleapis.com/trace", s.TraceID()),
			slog.Any("logging.googleapis.com/spanId", s.SpanID()),
			slog.Bool("logging.googleapis.com/trace_sampled", s.TraceFlags().IsSampled()),
		)
	}
	return h.Handler.Handle(ctx, record)
}

func (h *cloudLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &cloudLogHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *cloudLogHandler) WithGroup(name string) slog.Handler {
	return &cloudLogHandler{Handler: h.Handler.WithGroup(name)}
}

// replacer renames the slog keys to the Cloud Logging ones and maps WARN to
// the WARNING severity.
func replacer(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.LevelKey:
		a.Key = "severity"
		if level, ok := a.Value.Any().(slog.Level); ok && level == slog.LevelWarn {
			a.Value = slog.StringValue("WARNING")
		}
	case slog.TimeKey:
		a.Key = "timestamp"
	case slog.MessageKey:
		a.Key = "message"
	}
	return a
}

// ParseLevel reads a level name, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// NewLogHandler returns the Cloud Logging handler writing to w.
func NewLogHandler(w io.Writer, level slog.Level) slog.Handler {
	return &cloudLogHandler{Handler: slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replacer,
	})}
}

// SetupLogging installs the handler as the slog default and points the
// standard logger at the same output.
func SetupLogging() {
	var out io.Writer = os.Stdout
	if name := os.Getenv(EnvLogFile); name != "" {
		if file, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			out = io.MultiWriter(os.Stdout, file)
		}
	}
	log.SetOutput(out)
	log.SetPrefix("[INFO] ")
	log.SetFlags(log.Ldate | log.Ltime)

	slog.SetDefault(slog.New(NewLogHandler(out, ParseLevel(os.Getenv(EnvLogLevel)))))
}
