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

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "index.build", "")
	require.NotEmpty(t, root.TraceID)
	assert.Same(t, root, SpanFromContext(ctx))

	_, invert := StartChildSpan(ctx, "invert")
	invert.SetAttr("blocks", 3)
	invert.End()
	_, merge := StartChildSpan(ctx, "merge")
	merge.End()
	root.End()

	require.Len(t, root.Children, 2)
	assert.Equal(t, root.TraceID, invert.TraceID)
	assert.Equal(t, 3, invert.Attrs["blocks"])
	assert.GreaterOrEqual(t, root.Duration, invert.Duration)
}

func TestChildWithoutParentStartsTrace(t *testing.T) {
	assert.Nil(t, SpanFromContext(context.Background()))
	_, span := StartChildSpan(context.Background(), "orphan")
	assert.NotEmpty(t, span.TraceID)
}

func TestLogWritesEverySpan(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "index.build", "trace-1")
	_, child := StartChildSpan(ctx, "merge")
	child.SetAttr("segments", 2)
	child.End()
	root.End()

	var buf bytes.Buffer
	root.Log(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	assert.Equal(t, "merge", entry["span"])
	assert.Equal(t, "trace-1", entry["trace_id"])
	assert.Equal(t, float64(1), entry["depth"])
	assert.Equal(t, float64(2), entry["segments"])
}
