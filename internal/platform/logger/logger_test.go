package logger

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-api/strata/internal/config"
)

func TestSetupReturnsLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		log, err := Setup(config.ServerConfig{Port: 8080, LogLevel: level})
		require.NoError(t, err)
		assert.NotNil(t, log)
	}
}

func TestSetupFallsBackOnInvalidLevel(t *testing.T) {
	log, err := Setup(config.ServerConfig{Port: 8080, LogLevel: "verbose"})
	require.NoError(t, err)
	assert.NotNil(t, log)
	assert.True(t, log.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, log.Enabled(context.Background(), slog.LevelDebug))
}

func TestContextRoundTrip(t *testing.T) {
	base := slog.Default()
	scoped := base.With(slog.String("component", "test"))

	ctx := WithContext(context.Background(), scoped)
	assert.Same(t, scoped, FromContextOrDefault(ctx, base))
	assert.Same(t, base, FromContextOrDefault(context.Background(), base))
}
