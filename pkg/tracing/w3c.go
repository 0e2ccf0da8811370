package tracing

import (
	"encoding/hex"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

const (
	// TraceparentHeader is the W3C Trace Context traceparent header name.
	TraceparentHeader = "traceparent"

	// W3C Trace Context version.
	traceparentVersion = "00"

	// Trace flags.
	flagSampled = 0x01
)

// W3CTraceContextPropagator implements the W3C Trace Context traceparent
// header. It carries only the span identity; baggage is left untouched.
type W3CTraceContextPropagator struct{}

// NewW3CTraceContextPropagator creates a new W3C propagator.
func NewW3CTraceContextPropagator() *W3CTraceContextPropagator {
	return &W3CTraceContextPropagator{}
}

// Extract extracts span context from a carrier.
// The traceparent format is: {version}-{trace-id}-{parent-id}-{flags}
// Example: 00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01
func (p *W3CTraceContextPropagator) Extract(c Context, carrier Carrier) Context {
	traceparent := carrier.Get(TraceparentHeader)
	if traceparent == "" {
		return c
	}

	sc, ok := parseTraceparent(traceparent)
	if !ok {
		return c
	}

	return c.WithSpan(newRemoteSpan(sc))
}

// Inject injects span context into a carrier.
// If there is no valid span in the context, this is a no-op.
func (p *W3CTraceContextPropagator) Inject(c Context, carrier Carrier) {
	sc := c.SpanContext()
	if !sc.IsValid() {
		return
	}
	carrier.Set(TraceparentHeader, formatTraceparent(sc))
}

// Fields returns the traceparent header name.
func (p *W3CTraceContextPropagator) Fields() []string {
	return []string{TraceparentHeader}
}

// parseTraceparent parses a W3C traceparent header.
// Returns the span context and whether parsing was successful.
func parseTraceparent(traceparent string) (SpanContext, bool) {
	parts := strings.Split(strings.TrimSpace(traceparent), "-")
	if len(parts) != 4 {
		return SpanContext{}, false
	}

	version, traceHex, spanHex, flags := parts[0], parts[1], parts[2], parts[3]

	// Unknown versions with a valid layout are still parsed.
	if len(version) != 2 || !isValidHex(version) || version == "ff" {
		return SpanContext{}, false
	}

	if len(traceHex) != 32 || !isValidHex(traceHex) {
		return SpanContext{}, false
	}
	traceID, err := trace.TraceIDFromHex(strings.ToLower(traceHex))
	if err != nil {
		return SpanContext{}, false
	}

	if len(spanHex) != 16 || !isValidHex(spanHex) {
		return SpanContext{}, false
	}
	spanID, err := trace.SpanIDFromHex(strings.ToLower(spanHex))
	if err != nil {
		return SpanContext{}, false
	}

	if len(flags) != 2 {
		return SpanContext{}, false
	}
	flagBytes, err := hex.DecodeString(flags)
	if err != nil || len(flagBytes) != 1 {
		return SpanContext{}, false
	}

	return SpanContext{
		TraceID: traceID,
		SpanID:  spanID,
		Sampled: flagBytes[0]&flagSampled != 0,
	}, true
}

// formatTraceparent formats a traceparent header value.
func formatTraceparent(sc SpanContext) string {
	flags := "00"
	if sc.Sampled {
		flags = "01"
	}
	return traceparentVersion + "-" + sc.TraceID.String() + "-" + sc.SpanID.String() + "-" + flags
}
