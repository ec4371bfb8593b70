package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"loud", 0, false},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err == nil) != tt.ok || (tt.ok && got != tt.want) {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestNewFormats(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "info", "json")
	if err != nil {
		t.Fatal(err)
	}
	l.Debug("hidden")
	l.Info("shown", "frame", 3)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("not one json record: %v\n%s", err, buf.String())
	}
	if rec["msg"] != "shown" || rec["frame"] != float64(3) {
		t.Errorf("record = %v", rec)
	}

	buf.Reset()
	l, err = New(&buf, "debug", "text")
	if err != nil {
		t.Fatal(err)
	}
	l.Debug("visible")
	if !strings.Contains(buf.String(), "msg=visible") {
		t.Errorf("text output = %q", buf.String())
	}

	if _, err := New(&buf, "info", "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestSetupEnvOverride(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FORMAT", "json")
	l, err := Setup("debug", "text")
	if err != nil {
		t.Fatal(err)
	}
	if l.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("LOG_LEVEL did not override the configured level")
	}
	if slog.Default() != l {
		t.Error("Setup did not install the default logger")
	}
}
