package tracing

import (
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/http/httpguts"

	"github.com/getmockd/hellotel/pkg/baggage"
	"github.com/getmockd/hellotel/pkg/logging"
)

const (
	// UberTraceIDHeader carries {trace-id}:{span-id}:{parent-id}:{flags}.
	UberTraceIDHeader = "uber-trace-id"

	// UberBaggagePrefix prefixes one header per baggage entry.
	UberBaggagePrefix = "uberctx-"

	// JaegerBaggageHeader carries ad-hoc baggage as k1=v1,k2=v2. It is only
	// read, never written.
	JaegerBaggageHeader = "jaeger-baggage"

	// The parent-id field is deprecated and always written as 0.
	jaegerParentID = "0"
)

// JaegerPropagator encodes a Context in the Jaeger wire format: an
// uber-trace-id header for the span and one uberctx-{key} header per baggage
// entry. Baggage metadata is not carried.
type JaegerPropagator struct {
	logger *slog.Logger
}

// PropagatorOption configures a JaegerPropagator.
type PropagatorOption func(*JaegerPropagator)

// WithPropagatorLogger sets the logger used to report malformed headers.
func WithPropagatorLogger(l *slog.Logger) PropagatorOption {
	return func(p *JaegerPropagator) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewJaegerPropagator creates a new Jaeger propagator.
func NewJaegerPropagator(opts ...PropagatorOption) *JaegerPropagator {
	p := &JaegerPropagator{logger: logging.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Fields returns the fixed header name written by Inject.
func (p *JaegerPropagator) Fields() []string {
	return []string{UberTraceIDHeader}
}

// Inject writes the active span identity and every baggage entry into
// carrier. Without a valid active span nothing is written, baggage included.
// Keys that cannot form a header name, such as ones containing spaces, are
// skipped.
func (p *JaegerPropagator) Inject(c Context, carrier Carrier) {
	sc := c.SpanContext()
	if !sc.IsValid() {
		return
	}
	carrier.Set(UberTraceIDHeader, formatUberTraceID(sc))
	for _, e := range c.Baggage().Entries() {
		name := UberBaggagePrefix + e.Key
		if !httpguts.ValidHeaderFieldName(name) {
			p.logger.Debug("skipping baggage key not valid in a header", "key", e.Key)
			continue
		}
		carrier.Set(name, url.PathEscape(e.Value))
	}
}

// Extract decodes carrier into a new Context derived from c. A valid
// uber-trace-id becomes the active span as a remote, non-recording reference.
// Baggage headers, when any are present, replace the baggage of c. Malformed
// input is logged and ignored.
func (p *JaegerPropagator) Extract(c Context, carrier Carrier) Context {
	if v := carrier.Get(UberTraceIDHeader); v != "" {
		sc, err := parseUberTraceID(v)
		if err != nil {
			p.logger.Debug("ignoring uber-trace-id", "value", v, "error", err)
		} else {
			c = c.WithSpan(newRemoteSpan(sc))
		}
	}

	if b, found := p.extractBaggage(carrier); found {
		c = c.WithBaggage(b)
	}
	return c
}

func (p *JaegerPropagator) extractBaggage(carrier Carrier) (baggage.Baggage, bool) {
	b := baggage.Empty()
	found := false

	for _, key := range carrier.Keys() {
		lk := strings.ToLower(key)
		if !strings.HasPrefix(lk, UberBaggagePrefix) {
			continue
		}
		name := key[len(UberBaggagePrefix):]
		if name == "" {
			continue
		}
		found = true
		b = b.Put(name, unescapeBaggageValue(carrier.Get(key)))
	}

	if raw := carrier.Get(JaegerBaggageHeader); raw != "" {
		found = true
		for _, pair := range strings.Split(raw, ",") {
			k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if !ok || k == "" {
				p.logger.Debug("ignoring jaeger-baggage item", "item", pair)
				continue
			}
			b = b.Put(k, v)
		}
	}
	return b, found
}

// unescapeBaggageValue reverses the percent-encoding applied on inject. Values
// that are not valid escapes are kept as received.
func unescapeBaggageValue(v string) string {
	if !strings.Contains(v, "%") {
		return v
	}
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func formatUberTraceID(sc SpanContext) string {
	flag := "0"
	if sc.Sampled {
		flag = "1"
	}
	return sc.TraceID.String() + ":" + sc.SpanID.String() + ":" + jaegerParentID + ":" + flag
}

// parseUberTraceID parses {trace-id}:{span-id}:{parent-id}:{flags}. Trace and
// span ids shorter than their full width are left-padded with zeros.
func parseUberTraceID(v string) (SpanContext, error) {
	v = unescapeBaggageValue(strings.TrimSpace(v))
	parts := strings.Split(v, ":")
	if len(parts) != 4 {
		return SpanContext{}, fmt.Errorf("%w: expected 4 fields, got %d", ErrMalformedHeader, len(parts))
	}

	traceHex, spanHex, flagsHex := parts[0], parts[1], parts[3]

	if traceHex == "" || len(traceHex) > 32 || !isValidHex(traceHex) {
		return SpanContext{}, fmt.Errorf("%w: invalid trace id %q", ErrMalformedHeader, traceHex)
	}
	traceID, err := trace.TraceIDFromHex(leftPad(strings.ToLower(traceHex), 32))
	if err != nil {
		return SpanContext{}, fmt.Errorf("%w: trace id: %v", ErrMalformedHeader, err)
	}

	if spanHex == "" || len(spanHex) > 16 || !isValidHex(spanHex) {
		return SpanContext{}, fmt.Errorf("%w: invalid span id %q", ErrMalformedHeader, spanHex)
	}
	spanID, err := trace.SpanIDFromHex(leftPad(strings.ToLower(spanHex), 16))
	if err != nil {
		return SpanContext{}, fmt.Errorf("%w: span id: %v", ErrMalformedHeader, err)
	}

	flags, err := strconv.ParseUint(flagsHex, 16, 8)
	if err != nil {
		return SpanContext{}, fmt.Errorf("%w: invalid flags %q", ErrMalformedHeader, flagsHex)
	}

	return SpanContext{
		TraceID: traceID,
		SpanID:  spanID,
		Sampled: flags&flagSampled != 0,
	}, nil
}

func leftPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
