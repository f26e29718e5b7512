// Package tracing times nested operations under one trace id and writes the
// finished tree to slog. Scan cycles use it for their query, report and
// evict steps.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type spanKey struct{}

// Span is one timed operation. Children share the root's TraceID.
type Span struct {
	Name     string
	TraceID  string
	Start    time.Time
	Duration time.Duration

	parent   *Span
	mu       sync.Mutex
	attrs    []slog.Attr
	children []*Span
}

// Start opens a span under the one in ctx, or a new trace when ctx has none.
func Start(ctx context.Context, name string) (context.Context, *Span) {
	s := &Span{Name: name, Start: time.Now()}
	if parent := fromContext(ctx); parent != nil {
		s.parent = parent
		s.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.children = append(parent.children, s)
		parent.mu.Unlock()
	} else {
		s.TraceID = uuid.NewString()
	}
	return context.WithValue(ctx, spanKey{}, s), s
}

// End fixes the duration. Later calls are no-ops.
func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Duration == 0 {
		s.Duration = max(time.Since(s.Start), time.Nanosecond)
	}
}

func (s *Span) Set(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, slog.Any(key, value))
	s.mu.Unlock()
}

func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

// TraceID returns the trace of the span in ctx, or "".
func TraceID(ctx context.Context) string {
	if s := fromContext(ctx); s != nil {
		return s.TraceID
	}
	return ""
}

func fromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(spanKey{}).(*Span)
	return s
}

// Log writes one record per span, parents before children.
func (s *Span) Log(ctx context.Context, logger *slog.Logger, level slog.Level) {
	if !logger.Enabled(ctx, level) {
		return
	}
	s.mu.Lock()
	args := []any{
		slog.String("trace_id", s.TraceID),
		slog.String("span", s.Name),
		slog.Int64("duration_ms", s.Duration.Milliseconds()),
	}
	if s.parent != nil {
		args = append(args, slog.String("parent", s.parent.Name))
	}
	if len(s.attrs) > 0 {
		attrs := make([]any, len(s.attrs))
		for i, a := range s.attrs {
			attrs[i] = a
		}
		args = append(args, slog.Group("attrs", attrs...))
	}
	s.mu.Unlock()

	logger.Log(ctx, level, "span", args...)
	for _, child := range s.Children() {
		child.Log(ctx, logger, level)
	}
}
