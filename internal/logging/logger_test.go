package logging

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_WritesKeyValueFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := FromZap(zap.New(core)).With("component", "request")

	logger.Warn("retrying", "status", 429, "error", errors.New("boom"), "dangling")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "request", fields["component"])
	assert.EqualValues(t, 429, fields["status"])
	assert.Equal(t, "boom", fields["error"])
	assert.Contains(t, fields, "dangling")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel(" warning "))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("nonsense"))
}

func TestDefault_NilSafe(t *testing.T) {
	SetDefault(nil)
	require.NotNil(t, Default())

	var nilLogger *Logger
	assert.NotPanics(t, func() { nilLogger.Info("ignored") })
}
