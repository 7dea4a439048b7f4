package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DebugLevel,
		"DEBUG":   DebugLevel,
		" warn ":  WarnLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"fatal":   FatalLevel,
		"info":    InfoLevel,
		"":        InfoLevel,
		"verbose": InfoLevel,
	}

	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "ParseLevel(%q)", in)
	}
}

func TestStructuredLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("agro-test", "test", WarnLevel)
	logger.SetOutput(&buf)

	ctx := context.Background()
	logger.Debug(ctx, "dropped", nil)
	logger.Info(ctx, "dropped", nil)
	logger.Warn(ctx, "kept", Fields{"market": "Raipur"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "WARN", entry.Level)
	assert.Equal(t, "kept", entry.Message)
	assert.Equal(t, "agro-test", entry.Service)
	assert.Equal(t, "Raipur", entry.Fields["market"])
}

func TestStructuredLogger_RequestIDAndError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("agro-test", "test", DebugLevel)
	logger.SetOutput(&buf)

	ctx := WithRequestID(context.Background(), "req-42")
	logger.Error(ctx, "[TEST_ERROR] boom", Fields{}, errors.New("upstream down"))

	var entry LogEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "req-42", entry.RequestID)
	assert.Equal(t, "upstream down", entry.Error)
	assert.NotEmpty(t, entry.File)
	assert.NotZero(t, entry.Line)
}

func TestRequestIDFromContext_Missing(t *testing.T) {
	_, ok := RequestIDFromContext(context.Background())
	assert.False(t, ok)

	_, ok = RequestIDFromContext(WithRequestID(context.Background(), ""))
	assert.False(t, ok)
}

func TestContextLogger_MergeFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("agro-test", "test", DebugLevel)
	logger.SetOutput(&buf)

	component := logger.WithFields(Fields{"component": "route_resolver", "cache": "route"})
	component.Info(context.Background(), "merged", Fields{"cache": "override"})

	var entry LogEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "route_resolver", entry.Fields["component"])
	assert.Equal(t, "override", entry.Fields["cache"])
}

func TestNewNop_DiscardsEverything(t *testing.T) {
	logger := NewNop()
	logger.Error(context.Background(), "nothing", nil, errors.New("x"))
	assert.NoError(t, logger.Close())
}
