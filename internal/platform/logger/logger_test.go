package logger_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediagrab/grab-api/internal/config"
	"github.com/mediagrab/grab-api/internal/platform/logger"
)

func TestSetupLevels(t *testing.T) {
	testCases := []struct {
		name          string
		configLevel   string
		debugEnabled  bool
		warnEnabled   bool
		errorEnabled  bool
	}{
		{name: "debug level", configLevel: "debug", debugEnabled: true, warnEnabled: true, errorEnabled: true},
		{name: "warn level", configLevel: "warn", debugEnabled: false, warnEnabled: true, errorEnabled: true},
		{name: "error level", configLevel: "error", debugEnabled: false, warnEnabled: false, errorEnabled: true},
		{name: "invalid level falls back to info", configLevel: "loud", debugEnabled: false, warnEnabled: true, errorEnabled: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			l, err := logger.Setup(config.ServerConfig{LogLevel: tc.configLevel})
			require.NoError(t, err)
			require.NotNil(t, l)

			ctx := context.Background()
			assert.Equal(t, tc.debugEnabled, l.Enabled(ctx, slog.LevelDebug))
			assert.Equal(t, tc.warnEnabled, l.Enabled(ctx, slog.LevelWarn))
			assert.Equal(t, tc.errorEnabled, l.Enabled(ctx, slog.LevelError))
		})
	}
}

func TestSetupSetsDefaultLogger(t *testing.T) {
	previous := slog.Default()
	defer slog.SetDefault(previous)

	l, err := logger.Setup(config.ServerConfig{LogLevel: "info"})
	require.NoError(t, err)
	assert.Same(t, l, slog.Default())
}

func TestFromContext(t *testing.T) {
	stored := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := logger.WithLogger(context.Background(), stored)

	assert.Same(t, stored, logger.FromContext(ctx))
	assert.Same(t, slog.Default(), logger.FromContext(context.Background()))
}

func TestFromContextOrDefault(t *testing.T) {
	fallback := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("returns stored logger", func(t *testing.T) {
		stored := slog.New(slog.NewTextHandler(io.Discard, nil))
		ctx := logger.WithLogger(context.Background(), stored)
		assert.Same(t, stored, logger.FromContextOrDefault(ctx, fallback))
	})

	t.Run("returns fallback when none stored", func(t *testing.T) {
		assert.Same(t, fallback, logger.FromContextOrDefault(context.Background(), fallback))
	})
}
