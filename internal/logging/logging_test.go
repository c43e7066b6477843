// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	line := strings.TrimSpace(buf.String())
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("log line %q is not JSON: %v", line, err)
	}
	return m
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInit_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(Config{Level: "info", Format: "console", Output: &bytes.Buffer{}})

	Info().Str("document", "alice:novel:ch1").Msg("Room started")

	m := decodeLine(t, &buf)
	if m["message"] != "Room started" || m["document"] != "alice:novel:ch1" {
		t.Errorf("log entry = %v", m)
	}
}

func TestCtx_AddsIDs(t *testing.T) {
	var buf bytes.Buffer
	ctx := ContextWithLogger(context.Background(), NewTestLogger(&buf))
	ctx = ContextWithCorrelationID(ctx, "abc12345")
	ctx = ContextWithRequestID(ctx, "req-1")

	Ctx(ctx).Info().Msg("hello")

	m := decodeLine(t, &buf)
	if m["correlation_id"] != "abc12345" || m["request_id"] != "req-1" {
		t.Errorf("log entry = %v", m)
	}
	if CorrelationIDFromContext(context.Background()) != "" {
		t.Error("empty context returned a correlation ID")
	}
	if len(GenerateCorrelationID()) != 8 {
		t.Error("GenerateCorrelationID() length != 8")
	}
}

func TestSecurityLogger_NeverLogsRawUsername(t *testing.T) {
	var buf bytes.Buffer
	l := NewSecurityLoggerWithLogger(NewTestLogger(&buf))

	l.LogHandshakeDenied("alice", "bob:novel:ch1", "c1", "10.0.0.1", "forbidden", errors.New("token signature is invalid"))

	m := decodeLine(t, &buf)
	if m["username"] != "al***" {
		t.Errorf("username = %v, want masked", m["username"])
	}
	if m["status"] != "failed" || m["reason"] != "forbidden" {
		t.Errorf("entry = %v", m)
	}
	if m["error"] != "authentication error" {
		t.Errorf("error = %v, want sanitized", m["error"])
	}
}

func TestSanitizers(t *testing.T) {
	if got := SanitizeToken("eyJhbGciOiJIUzI1NiJ9.payload.sig"); got != "eyJh....sig" {
		t.Errorf("SanitizeToken() = %q", got)
	}
	if SanitizeToken("short") != "***" {
		t.Error("short token not fully masked")
	}
	if SanitizeUsername("ab") != "***" {
		t.Error("short username not fully masked")
	}
	if got := SanitizeError(strings.Repeat("x", 300)); len(got) != 203 {
		t.Errorf("SanitizeError() length = %d, want 203", len(got))
	}
}

func TestSlogHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewSlogHandlerWithLogger(NewTestLogger(&buf)))

	logger.WithGroup("svc").Info("service restarted", slog.String("name", "store-retry-loop"), slog.Int("attempt", 2))

	m := decodeLine(t, &buf)
	if m["message"] != "service restarted" {
		t.Errorf("message = %v", m["message"])
	}
	if m["svc.name"] != "store-retry-loop" || m["svc.attempt"] != float64(2) {
		t.Errorf("entry = %v", m)
	}
	if m["level"] != "info" {
		t.Errorf("level = %v, want info", m["level"])
	}
}

func TestSlogToZerologLevel(t *testing.T) {
	tests := []struct {
		in   slog.Level
		want zerolog.Level
	}{
		{slog.LevelDebug - 4, zerolog.TraceLevel},
		{slog.LevelDebug, zerolog.DebugLevel},
		{slog.LevelInfo, zerolog.InfoLevel},
		{slog.LevelWarn, zerolog.WarnLevel},
		{slog.LevelError, zerolog.ErrorLevel},
	}
	for _, tt := range tests {
		if got := slogToZerologLevel(tt.in); got != tt.want {
			t.Errorf("slogToZerologLevel(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
