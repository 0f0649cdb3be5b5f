package tracing

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStart_BuildsTree(t *testing.T) {
	ctx, root := Start(context.Background(), "page_fetch")
	assert.Same(t, root, FromContext(ctx))
	assert.NotEmpty(t, root.TraceID())

	_, exec := Start(ctx, "execute")
	_, deliver := Start(ctx, "deliver")
	exec.End()
	deliver.End()
	root.End()

	children := root.Children()
	require.Len(t, children, 2)
	assert.Equal(t, "execute", children[0].Name())
	assert.Equal(t, root.TraceID(), children[1].TraceID())

	_, other := Start(context.Background(), "page_fetch")
	assert.NotEqual(t, root.TraceID(), other.TraceID())
}

func TestEnd_IsIdempotent(t *testing.T) {
	_, span := Start(context.Background(), "x")
	span.End()
	first := span.Duration()
	span.End()
	assert.Equal(t, first, span.Duration())
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx, root := Start(context.Background(), "page_fetch")
	root.Set("page", 2)
	_, child := Start(ctx, "execute")
	child.End()
	root.End()
	root.Log(ctx, logger)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first, second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "page_fetch", first["span"])
	assert.Equal(t, float64(2), first["page"])
	assert.Equal(t, float64(0), first["depth"])
	assert.Equal(t, "execute", second["span"])
	assert.Equal(t, float64(1), second["depth"])
	assert.Equal(t, first["trace_id"], second["trace_id"])
}

func TestLog_SkippedAboveDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, root := Start(context.Background(), "page_fetch")
	root.End()
	root.Log(ctx, logger)
	assert.Empty(t, buf.String())
}
