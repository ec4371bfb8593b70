// Package logger configures the process-wide slog handler.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("log level must be one of: debug, info, warn, error (got %q)", level)
}

// New builds a text or json logger writing to w.
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	ho := slog.HandlerOptions{
		Level: lvl,
	}

	var h slog.Handler
	switch strings.ToLower(format) {
	case "json":
		h = slog.NewJSONHandler(w, &ho)
	case "text", "":
		h = slog.NewTextHandler(w, &ho)
	default:
		return nil, fmt.Errorf("log format must be json or text (got %q)", format)
	}
	return slog.New(h), nil
}

// Setup installs a stderr logger as the slog default. The LOG_LEVEL and
// LOG_FORMAT environment variables override level and format.
func Setup(level, format string) (*slog.Logger, error) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		format = v
	}
	l, err := New(os.Stderr, level, format)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(l)
	return l, nil
}
