package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed(level zapcore.Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return &Logger{zapLogger: zap.New(core), zapLevel: level}, logs
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"DEBUG":    LevelDebug,
		"info":     LevelInfo,
		"WARNING":  LevelWarn,
		" error ":  LevelError,
		"CRITICAL": LevelFatal,
		"bogus":    LevelInfo,
	}
	for name, want := range cases {
		assert.Equal(t, want, ParseLevel(name), name)
	}
	assert.Equal(t, "WARNING", LevelWarn.String())
}

func TestWithCarriesFields(t *testing.T) {
	logger, logs := observed(zapcore.DebugLevel)

	logger.With(String("component", "catalog")).Named("render").
		Warn("Render failed", Int("depth", 3), Error(errors.New("boom")))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "render", entry.LoggerName)
	fields := entry.ContextMap()
	assert.Equal(t, "catalog", fields["component"])
	assert.Equal(t, int64(3), fields["depth"])
	assert.Equal(t, "boom", fields["error"])
}

func TestLogRespectsLevel(t *testing.T) {
	logger, logs := observed(zapcore.WarnLevel)

	logger.Log(LevelInfo, "dropped")
	logger.Log(LevelError, "kept")
	logger.Log(LevelNone, "never")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "kept", logs.All()[0].Message)
}
