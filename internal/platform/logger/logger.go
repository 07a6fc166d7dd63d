package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/phrazzld/yaha/internal/config"
)

// ParseLevel converts a configured level name into a slog.Level.
// The boolean is false when the name is not recognised.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// New builds a logger writing to w according to cfg. An unknown level
// falls back to info and is reported through the returned logger.
func New(cfg config.LogConfig, w io.Writer) *slog.Logger {
	level, ok := ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	l := slog.New(handler)
	if !ok {
		l.Warn("invalid log level configured, using default level",
			"configured_level", cfg.Level,
			"default_level", "info")
	}
	return l
}

// Setup initializes the application's logging system: it builds a logger
// writing to stderr, so that stdout stays free for command output, and
// installs it as the slog default.
func Setup(cfg config.LogConfig) (*slog.Logger, error) {
	l := New(cfg, os.Stderr)
	slog.SetDefault(l)
	return l, nil
}
