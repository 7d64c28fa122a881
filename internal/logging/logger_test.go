package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"nero/internal/config"
)

func TestNew_Levels(t *testing.T) {
	log, err := New(config.LoggingConfig{Level: "warn", Format: "json"}, false)
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))

	log, err = New(config.LoggingConfig{Level: "warn", Format: "console"}, true)
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel), "verbose forces debug")

	_, err = New(config.LoggingConfig{Level: "loud"}, false)
	assert.Error(t, err)
}

func TestFor_Categories(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	root := zap.New(core)
	cfg := config.LoggingConfig{DebugMode: true, Categories: map[string]bool{"watch": false}}

	For(root, cfg, CategoryEval).Debug("stratum complete")
	For(root, cfg, CategoryWatch).Debug("file changed")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "eval", entries[0].LoggerName)
	assert.Equal(t, "stratum complete", entries[0].Message)
}

func TestFor_DisabledWithoutDebugMode(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	For(zap.New(core), config.LoggingConfig{}, CategoryPipeline).Info("ignored")
	assert.Zero(t, logs.Len())

	// A nil root never panics.
	For(nil, config.LoggingConfig{DebugMode: true}, CategoryPipeline).Info("ignored")
	OrNop(nil).Info("ignored")
}
