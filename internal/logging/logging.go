// Package logging builds the server's slog logger.
//
// Output always goes to stderr: stdout carries the LSP stream. Level and
// format come from flags, falling back to PONY_LSP_LOG_LEVEL and
// PONY_LSP_LOG_FORMAT.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	LevelEnv  = "PONY_LSP_LOG_LEVEL"
	FormatEnv = "PONY_LSP_LOG_FORMAT"
)

// Config holds logging configuration.
type Config struct {
	Level  slog.Level
	Format string // "text" or "json"
	Output io.Writer
}

// ConfigFromEnv returns the default configuration with environment
// overrides applied.
func ConfigFromEnv() Config {
	cfg := Config{Level: slog.LevelInfo, Format: "text", Output: os.Stderr}
	if level, ok := ParseLevel(os.Getenv(LevelEnv)); ok {
		cfg.Level = level
	}
	if format := os.Getenv(FormatEnv); format != "" {
		cfg.Format = strings.ToLower(format)
	}
	return cfg
}

// ParseLevel accepts debug, info, warn(ing) and error.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// New creates a logger for cfg.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler)
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
