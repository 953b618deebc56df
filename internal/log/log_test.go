package log

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tc := range tests {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNew_RespectsLevel(t *testing.T) {
	t.Setenv("GO_ENV", "")

	var buf bytes.Buffer
	logger := New(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown", "frame", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message logged at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "frame=3") {
		t.Errorf("warn message missing: %q", out)
	}
}

func TestNew_JSONInProduction(t *testing.T) {
	t.Setenv("GO_ENV", "production")

	var buf bytes.Buffer
	New(&buf, "info").Info("hello")

	if !strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Errorf("expected JSON output, got %q", buf.String())
	}
}

func TestInit_AdjustsEarlierLoggers(t *testing.T) {
	t.Cleanup(func() { Init("info") })

	ctx := context.Background()
	early := Component("early")

	Init("debug")
	if !early.Enabled(ctx, slog.LevelDebug) {
		t.Error("component logger should follow Init(debug)")
	}

	Init("warn")
	if early.Enabled(ctx, slog.LevelInfo) {
		t.Error("component logger should follow Init(warn)")
	}
	if !L().Enabled(ctx, slog.LevelWarn) {
		t.Error("global logger should log warnings")
	}
}
