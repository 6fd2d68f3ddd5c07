package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogLogger_TextLevels(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "text", "debug")
	ctx := context.Background()

	log.Debug(ctx, "dbg", "a", 1)
	log.Info(ctx, "inf", "b", 2)
	log.Warn(ctx, "wrn", "c", 3)
	log.Error(ctx, "err", "d", 4)

	out := buf.String()
	for _, want := range []string{
		"level=DEBUG", "msg=dbg", "a=1",
		"level=INFO", "msg=inf", "b=2",
		"level=WARN", "msg=wrn", "c=3",
		"level=ERROR", "msg=err", "d=4",
	} {
		assert.Contains(t, out, want)
	}
}

func TestSlogLogger_LevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "text", "warn")
	ctx := context.Background()

	log.Debug(ctx, "hidden")
	log.Info(ctx, "hidden too")
	log.Warn(ctx, "shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
}

func TestSlogLogger_JSONWithAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "json", "info").With("module", "storage")

	log.Info(context.Background(), "write", "app", "notes.example.com")

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &rec))
	assert.Equal(t, "storage", rec["module"])
	assert.Equal(t, "write", rec["msg"])
	assert.Equal(t, "notes.example.com", rec["app"])
}

func TestNop_DoesNotPanic(t *testing.T) {
	var l Logger = Nop{}
	ctx := context.TODO()
	assert.NotPanics(t, func() {
		l.Debug(ctx, "x")
		l.With("k", "v").Info(ctx, "x")
		l.Warn(ctx, "x")
		l.Error(ctx, "x")
	})
}
