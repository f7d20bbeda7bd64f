package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/81adi8/erp-sub005/pkg/contextkeys"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_EmitsJSONWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithField("tenant_id", "tenant-a").WithError(errors.New("boom")).Warn("cache store get failed")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "cache store get failed", entry["msg"])
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, "tenant-a", entry["tenant_id"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLogger_LevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.Debug("should not appear")
	assert.Zero(t, buf.Len())

	logger.Info("should appear")
	assert.NotZero(t, buf.Len())
}

func TestLogger_WithFieldDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	_ = logger.WithField("request_id", "req-1")
	logger.Info("plain")

	entry := decodeLine(t, &buf)
	_, ok := entry["request_id"]
	assert.False(t, ok, "derived fields must not leak into the parent logger")
}

func TestFromContext_AttachesRequestScopedFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	ctx := WithLogger(context.Background(), logger)
	ctx = contextkeys.WithRequestID(ctx, "req-42")
	ctx = contextkeys.WithUserID(ctx, "user-7")

	FromContext(ctx).Info("handled")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "req-42", entry["request_id"])
	assert.Equal(t, "user-7", entry["user_id"])
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLogLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLogLevel("warning"))
	assert.Equal(t, ErrorLevel, ParseLogLevel("ERROR"))
	assert.Equal(t, InfoLevel, ParseLogLevel("bogus"))
}
