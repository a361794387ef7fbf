package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithField("component", "resolver").Info("resolved grant")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "resolved grant", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "resolver", entry["component"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WarnLevel, &buf)

	logger.Debug("noise")
	logger.Info("also noise")
	assert.Zero(t, buf.Len())

	logger.Warn("signal")
	assert.NotZero(t, buf.Len())
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLogLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLogLevel("WARNING"))
	assert.Equal(t, ErrorLevel, ParseLogLevel("error"))
	assert.Equal(t, InfoLevel, ParseLogLevel("info"))
	assert.Equal(t, InfoLevel, ParseLogLevel("bogus"))
}

func TestContextCarriesPrincipal(t *testing.T) {
	ctx := context.Background()

	_, ok := GetPrincipalID(ctx)
	assert.False(t, ok)

	ctx = WithPrincipalID(ctx, 42)
	id, ok := GetPrincipalID(ctx)
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)
}

func TestFromContextAttachesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	ctx := WithLogger(context.Background(), logger)
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithPrincipalID(ctx, 7)

	FromContext(ctx).Info("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "7", entry["principal_id"])
}
