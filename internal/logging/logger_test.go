// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestInitWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Timestamp: true, Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })

	Info().Str("theme", "aurora").Msg("theme loaded")

	out := buf.String()
	if !strings.Contains(out, `"message":"theme loaded"`) {
		t.Fatalf("expected message field, got %s", out)
	}
	if !strings.Contains(out, `"theme":"aurora"`) {
		t.Fatalf("expected theme field, got %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"nonsense", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if ValidLevel("nonsense") {
		t.Error("ValidLevel accepted an unknown level")
	}
}

func TestCtxAddsRequestAndUser(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	t.Cleanup(func() { Init(DefaultConfig()) })

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithUserID(ctx, 42)
	Ctx(ctx).Info().Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"request_id":"req-1"`) || !strings.Contains(out, `"user_id":"42"`) {
		t.Fatalf("missing context fields: %s", out)
	}
}

func TestSlogHandlerGroups(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	t.Cleanup(func() { Init(DefaultConfig()) })

	logger := slog.New(NewSlogHandler()).WithGroup("svc").With("name", "http")
	logger.Info("started", "port", 8080)

	out := buf.String()
	if !strings.Contains(out, `"svc.name":"http"`) || !strings.Contains(out, `"svc.port":8080`) {
		t.Fatalf("unexpected slog output: %s", out)
	}
}

func TestMasking(t *testing.T) {
	if got := MaskToken("abcdefghijkl"); got != "abcd****" {
		t.Errorf("MaskToken = %q", got)
	}
	if got := MaskUsername("alice@example.com"); got != "al***@example.com" {
		t.Errorf("MaskUsername email = %q", got)
	}
	if got := MaskUsername("ab"); got != "**" {
		t.Errorf("MaskUsername short = %q", got)
	}
}
