package stdout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/songzhibin97/mailregistry/pkg/log"
	"github.com/songzhibin97/mailregistry/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T, level log.Level) (*StdoutLogger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	logger, err := New(&Config{Level: level, Output: buf})
	require.NoError(t, err)
	return logger, buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		entry := map[string]interface{}{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestLevelFiltering(t *testing.T) {
	logger, buf := newTestLogger(t, log.WarnLevel)

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error", log.Error(errors.New("boom")))

	entries := decodeLines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "warn", entries[0]["message"])
	assert.Equal(t, "error", entries[1]["level"])
	assert.Equal(t, "boom", entries[1]["error"])
}

func TestWithFields(t *testing.T) {
	logger, buf := newTestLogger(t, log.DebugLevel)

	child := logger.With(log.String(log.FieldComponent, "mailin"))
	child.Info("mail created", log.Int64(log.FieldMailID, 42), log.Int64s("service_ids", []int64{1, 2}))
	logger.Info("parent")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "mailin", entries[0]["component"])
	assert.Equal(t, float64(42), entries[0]["mail_id"])
	assert.Len(t, entries[0]["service_ids"], 2)
	_, ok := entries[1]["component"]
	assert.False(t, ok, "parent logger must not inherit child fields")
}

func TestWithContext(t *testing.T) {
	logger, buf := newTestLogger(t, log.InfoLevel)

	ctx := log.WithRequestID(context.Background(), "req-42")
	ctx = registry.WithCaller(ctx, registry.Caller{ID: "ABCD", Role: registry.RoleUser})

	logger.WithContext(ctx).Info("handled")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "req-42", entries[0]["request_id"])
	assert.Equal(t, "ABCD", entries[0]["caller_id"])
	assert.Equal(t, "USER", entries[0]["caller_role"])
}

func TestWithContextEmpty(t *testing.T) {
	logger, _ := newTestLogger(t, log.InfoLevel)
	assert.Same(t, logger, logger.WithContext(context.Background()))
}
