package logger_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/yaha/internal/config"
	"github.com/phrazzld/yaha/internal/platform/logger"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		want  slog.Level
		valid bool
	}{
		{name: "debug", want: slog.LevelDebug, valid: true},
		{name: "INFO", want: slog.LevelInfo, valid: true},
		{name: "warn", want: slog.LevelWarn, valid: true},
		{name: "error", want: slog.LevelError, valid: true},
		{name: "trace", want: slog.LevelInfo, valid: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := logger.ParseLevel(tc.name)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.valid, ok)
		})
	}
}

func TestNewRespectsLevel(t *testing.T) {
	t.Parallel()

	buf := &logger.TestLogBuffer{}
	l := logger.New(config.LogConfig{Level: "warn", Format: "json"}, buf)

	l.Info("hidden")
	l.Warn("shown", "source", "alpha")

	entries, err := buf.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "shown", entries[0]["msg"])
	assert.Equal(t, "alpha", entries[0]["source"])
}

func TestNewInvalidLevelWarns(t *testing.T) {
	t.Parallel()

	buf := &logger.TestLogBuffer{}
	l := logger.New(config.LogConfig{Level: "invalid_level", Format: "json"}, buf)
	require.NotNil(t, l)

	logger.AssertLogContains(t, buf, "invalid log level configured")
	logger.AssertLogContains(t, buf, "invalid_level")

	buf.Reset()
	l.Debug("debug message")
	l.Info("info message")
	assert.NotContains(t, buf.String(), "debug message")
	assert.Contains(t, buf.String(), "info message")
}

func TestNewTextFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := logger.New(config.LogConfig{Level: "info", Format: "text"}, &buf)
	l.Info("hello", "run_id", "abc")
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "run_id=abc")
}

func TestSetupInstallsDefault(t *testing.T) {
	orig := slog.Default()
	t.Cleanup(func() { slog.SetDefault(orig) })

	l, err := logger.Setup(config.LogConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Same(t, l, slog.Default())
}

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	fallback := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	custom := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	//nolint:staticcheck // a nil context is handled explicitly
	assert.Same(t, fallback, logger.FromContextOrDefault(nil, fallback))
	assert.Same(t, fallback, logger.FromContextOrDefault(context.Background(), fallback))

	ctx := logger.WithLogger(context.Background(), custom)
	assert.Same(t, custom, logger.FromContextOrDefault(ctx, fallback))
	assert.Same(t, custom, logger.FromContext(ctx))

	assert.Panics(t, func() { logger.WithLogger(context.Background(), nil) })
}

func TestSetupTestLogger(t *testing.T) {
	t.Parallel()

	buf, l, ctx := logger.SetupTestLogger(t)
	l.Debug("captured", "key", "value")
	logger.FromContext(ctx).Info("via context")

	entries, err := buf.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "value", entries[0]["key"])
	assert.Equal(t, "via context", entries[1]["msg"])
}

func TestTestLogBufferFind(t *testing.T) {
	t.Parallel()

	buf, l, _ := logger.SetupTestLogger(t)
	l.Info("first", "n", 1)
	l.Warn("second", "source", "ads")

	entry, ok := buf.Find("second")
	require.True(t, ok)
	assert.Equal(t, "ads", entry["source"])
	assert.Equal(t, "WARN", entry["level"])

	_, ok = buf.Find("missing")
	assert.False(t, ok)
}
