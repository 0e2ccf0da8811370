package logging

import (
	"context"
	"log/slog"
)

// TraceExtractor returns the hex trace and span ids carried by ctx. Empty
// strings mean there is no active span.
type TraceExtractor func(ctx context.Context) (traceID, spanID string)

// ContextHandler adds trace_id and span_id attributes to records logged with
// a context that carries an active span.
type ContextHandler struct {
	next    slog.Handler
	extract TraceExtractor
}

// NewContextHandler wraps next.
func NewContextHandler(next slog.Handler, extract TraceExtractor) *ContextHandler {
	return &ContextHandler{next: next, extract: extract}
}

// Enabled delegates to the wrapped handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle decorates r and passes it on.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil && h.extract != nil {
		traceID, spanID := h.extract(ctx)
		if traceID != "" {
			r = r.Clone()
			r.AddAttrs(slog.String("trace_id", traceID))
			if spanID != "" {
				r.AddAttrs(slog.String("span_id", spanID))
			}
		}
	}
	return h.next.Handle(ctx, r)
}

// WithAttrs returns a new ContextHandler with the given attributes.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{next: h.next.WithAttrs(attrs), extract: h.extract}
}

// WithGroup returns a new ContextHandler with the given group.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{next: h.next.WithGroup(name), extract: h.extract}
}
