package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChildSpansInheritTraceID(t *testing.T) {
	ctx, root := Start(context.Background(), "scan_cycle")
	require.NotEmpty(t, root.TraceID)

	childCtx, child := Start(ctx, "query_stale")
	child.End()
	root.End()

	require.Equal(t, root.TraceID, child.TraceID)
	require.Equal(t, root.TraceID, TraceID(childCtx))
	require.Len(t, root.Children(), 1)
	require.Empty(t, TraceID(context.Background()))
}

func TestSeparateRootsGetSeparateTraces(t *testing.T) {
	_, a := Start(context.Background(), "scan_cycle")
	_, b := Start(context.Background(), "scan_cycle")
	require.NotEqual(t, a.TraceID, b.TraceID)
}

func TestEndIsIdempotent(t *testing.T) {
	_, s := Start(context.Background(), "report")
	s.End()
	first := s.Duration
	require.Positive(t, first)
	s.End()
	require.Equal(t, first, s.Duration)
}

func TestLogWritesTree(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx, root := Start(context.Background(), "scan_cycle")
	_, child := Start(ctx, "report")
	child.Set("batch_size", 2)
	child.End()
	root.End()
	root.Log(ctx, logger, slog.LevelDebug)

	out := buf.String()
	require.Equal(t, 2, strings.Count(out, "trace_id="+root.TraceID))
	require.Contains(t, out, "span=report")
	require.Contains(t, out, "parent=scan_cycle")
	require.Contains(t, out, "attrs.batch_size=2")
}

func TestLogSkippedBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, root := Start(context.Background(), "scan_cycle")
	root.End()
	root.Log(ctx, logger, slog.LevelDebug)
	require.Empty(t, buf.String())
}
