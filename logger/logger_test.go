package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestConfig_New(t *testing.T) {
	t.Run("auto uses logfmt off a terminal", func(t *testing.T) {
		var buf bytes.Buffer
		c := NewConfig()
		log, err := c.New(&buf)
		require.NoError(t, err)

		log.Info("store initialized", zap.String("store", "topics"))
		out := buf.String()
		assert.Contains(t, out, `msg="store initialized"`)
		assert.Contains(t, out, "store=topics")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		c := Config{Format: "json", Level: zapcore.InfoLevel}
		log, err := c.New(&buf)
		require.NoError(t, err)

		log.Debug("hidden")
		log.Warn("visible")

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 1)
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
		assert.Equal(t, "visible", entry["msg"])
	})

	t.Run("unknown format", func(t *testing.T) {
		c := Config{Format: "xml"}
		_, err := c.New(&bytes.Buffer{})
		require.Error(t, err)
	})
}

func TestContext(t *testing.T) {
	fallback := zap.NewNop()
	ctx := context.Background()
	assert.Same(t, fallback, FromContext(ctx, fallback))
	assert.Equal(t, ctx, WithFields(ctx, zap.String("principal", "jdoe")))

	core, logs := observer.New(zapcore.InfoLevel)
	ctx = NewContextWithLogger(ctx, zap.New(core).With(zap.String("request_id", "r-1")))
	ctx = WithFields(ctx, zap.String("principal", "jdoe"))
	FromContext(ctx, fallback).Info("change applied")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, map[string]interface{}{"request_id": "r-1", "principal": "jdoe"}, entries[0].ContextMap())
}
