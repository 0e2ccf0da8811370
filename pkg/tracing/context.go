package tracing

import (
	"context"

	"github.com/getmockd/hellotel/pkg/baggage"
)

// Context is an immutable snapshot of the active span and the current baggage.
// Derivation methods return a new Context and leave the receiver untouched.
type Context struct {
	span    *Span
	baggage baggage.Baggage
}

// Background returns the empty Context: no span, no baggage.
func Background() Context {
	return Context{}
}

// WithBaggage returns a copy of c with its baggage replaced by b.
func (c Context) WithBaggage(b baggage.Baggage) Context {
	c.baggage = b
	return c
}

// WithSpan returns a copy of c with s as the active span.
func (c Context) WithSpan(s *Span) Context {
	c.span = s
	return c
}

// Span returns the active span, or nil.
func (c Context) Span() *Span {
	return c.span
}

// SpanContext returns the identity of the active span. It is invalid when no
// span is active.
func (c Context) SpanContext() SpanContext {
	return c.span.SpanContext()
}

// Baggage returns the current baggage.
func (c Context) Baggage() baggage.Baggage {
	return c.baggage
}

// HasSpan reports whether c carries a valid span context.
func (c Context) HasSpan() bool {
	return c.SpanContext().IsValid()
}

type telemetryContextKey struct{}

// ContextWith returns a copy of ctx carrying c.
func ContextWith(ctx context.Context, c Context) context.Context {
	return context.WithValue(ctx, telemetryContextKey{}, c)
}

// FromContext returns the Context carried by ctx, or Background().
func FromContext(ctx context.Context) Context {
	if ctx == nil {
		return Background()
	}
	if c, ok := ctx.Value(telemetryContextKey{}).(Context); ok {
		return c
	}
	return Background()
}

// SpanFromContext returns the active span carried by ctx, or nil if none.
func SpanFromContext(ctx context.Context) *Span {
	return FromContext(ctx).Span()
}

// TraceIDFromContext returns the hex trace ID carried by ctx, if any.
func TraceIDFromContext(ctx context.Context) string {
	if sc := FromContext(ctx).SpanContext(); sc.IsValid() {
		return sc.TraceID.String()
	}
	return ""
}

// SpanIDFromContext returns the hex span ID carried by ctx, if any.
func SpanIDFromContext(ctx context.Context) string {
	if sc := FromContext(ctx).SpanContext(); sc.IsValid() {
		return sc.SpanID.String()
	}
	return ""
}
