package tracing

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/getmockd/hellotel/pkg/logging"
)

// Tracer creates spans and hands finished spans to its exporters.
//
// Tracers are explicit dependencies: construct one per process (or per test)
// and pass it to whatever needs to start spans.
type Tracer struct {
	name      string
	version   string
	exporters []Exporter
	sampler   Sampler
	ids       IDGenerator
	logger    *slog.Logger

	// exportMu serializes exports so each exporter sees spans in end order.
	exportMu sync.Mutex
	shutdown bool
}

// TracerOption configures a Tracer.
type TracerOption func(*Tracer)

// WithExporter adds an exporter. Every exporter receives every finished span.
func WithExporter(e Exporter) TracerOption {
	return func(t *Tracer) {
		if e != nil {
			t.exporters = append(t.exporters, e)
		}
	}
}

// WithSampler sets the sampler used for root spans.
func WithSampler(s Sampler) TracerOption {
	return func(t *Tracer) {
		t.sampler = s
	}
}

// WithIDGenerator replaces the random trace and span id source.
func WithIDGenerator(g IDGenerator) TracerOption {
	return func(t *Tracer) {
		t.ids = g
	}
}

// WithVersion sets the instrumentation version reported on spans.
func WithVersion(v string) TracerOption {
	return func(t *Tracer) {
		t.version = v
	}
}

// WithLogger sets the logger used for export failures.
func WithLogger(l *slog.Logger) TracerOption {
	return func(t *Tracer) {
		t.logger = l
	}
}

// Sampler decides whether a root span should be recorded.
type Sampler interface {
	ShouldSample(traceID trace.TraceID) bool
}

// AlwaysSample is a sampler that always samples.
type AlwaysSample struct{}

// ShouldSample always returns true.
func (AlwaysSample) ShouldSample(trace.TraceID) bool { return true }

// NeverSample is a sampler that never samples.
type NeverSample struct{}

// ShouldSample always returns false.
func (NeverSample) ShouldSample(trace.TraceID) bool { return false }

// RatioSampler samples a percentage of traces.
type RatioSampler struct {
	ratio float64
}

// NewRatioSampler creates a sampler that samples the given ratio of traces.
func NewRatioSampler(ratio float64) *RatioSampler {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return &RatioSampler{ratio: ratio}
}

// ShouldSample returns true if the trace should be sampled based on trace ID.
func (s *RatioSampler) ShouldSample(traceID trace.TraceID) bool {
	if s.ratio >= 1 {
		return true
	}
	if s.ratio <= 0 {
		return false
	}
	// First 8 bytes of the trace id make the decision deterministic per trace.
	val := binary.BigEndian.Uint64(traceID[:8])
	threshold := uint64(s.ratio * float64(^uint64(0)))
	return val < threshold
}

// IDGenerator mints trace and span identifiers.
type IDGenerator interface {
	NewTraceID() trace.TraceID
	NewSpanID() trace.SpanID
}

type randomIDGenerator struct{}

func (randomIDGenerator) NewTraceID() trace.TraceID {
	var id trace.TraceID
	for !id.IsValid() {
		_, _ = rand.Read(id[:])
	}
	return id
}

func (randomIDGenerator) NewSpanID() trace.SpanID {
	var id trace.SpanID
	for !id.IsValid() {
		_, _ = rand.Read(id[:])
	}
	return id
}

// NewTracer creates a new Tracer with the given instrumentation name.
func NewTracer(name string, opts ...TracerOption) *Tracer {
	t := &Tracer{
		name:    name,
		sampler: AlwaysSample{},
		ids:     randomIDGenerator{},
		logger:  logging.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SpanStartOption configures a span at start.
type SpanStartOption func(*spanConfig)

type spanConfig struct {
	kind      SpanKind
	attrs     []attribute.KeyValue
	timestamp time.Time
}

// WithKind sets the span kind. The default is SpanKindInternal.
func WithKind(kind SpanKind) SpanStartOption {
	return func(c *spanConfig) {
		c.kind = kind
	}
}

// WithAttributes sets initial attributes.
func WithAttributes(attrs ...attribute.KeyValue) SpanStartOption {
	return func(c *spanConfig) {
		c.attrs = append(c.attrs, attrs...)
	}
}

// WithTimestamp overrides the start time.
func WithTimestamp(ts time.Time) SpanStartOption {
	return func(c *spanConfig) {
		c.timestamp = ts
	}
}

// Start creates a new span. If parent holds a valid span, the new span joins
// its trace, records it as parent and inherits its sampling decision.
// Otherwise a new trace is started and the sampler decides.
func (t *Tracer) Start(parent Context, name string, opts ...SpanStartOption) *Span {
	cfg := spanConfig{kind: SpanKindInternal}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.timestamp.IsZero() {
		cfg.timestamp = time.Now()
	}

	psc := parent.SpanContext()

	var sc SpanContext
	var parentID trace.SpanID
	if psc.IsValid() {
		sc.TraceID = psc.TraceID
		sc.Sampled = psc.Sampled
		parentID = psc.SpanID
	} else {
		sc.TraceID = t.ids.NewTraceID()
		sc.Sampled = t.sampler.ShouldSample(sc.TraceID)
	}
	sc.SpanID = t.ids.NewSpanID()

	span := &Span{
		spanContext: sc,
		parentID:    parentID,
		tracer:      t,
		recording:   sc.Sampled,
		name:        name,
		kind:        cfg.kind,
		startTime:   cfg.timestamp,
	}
	if span.recording {
		span.setAttributes(cfg.attrs)
	}
	return span
}

// StartContext starts a span under the telemetry context carried by ctx and
// returns ctx updated to hold the new span.
func (t *Tracer) StartContext(ctx context.Context, name string, opts ...SpanStartOption) (context.Context, *Span) {
	parent := FromContext(ctx)
	span := t.Start(parent, name, opts...)
	return ContextWith(ctx, parent.WithSpan(span)), span
}

// Name returns the tracer's instrumentation name.
func (t *Tracer) Name() string {
	return t.name
}

// Shutdown stops exporting and shuts down every exporter.
func (t *Tracer) Shutdown(ctx context.Context) error {
	t.exportMu.Lock()
	defer t.exportMu.Unlock()
	if t.shutdown {
		return nil
	}
	t.shutdown = true

	var errs []error
	for _, e := range t.exporters {
		if err := e.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// exportLocked fans a finished span out to every exporter. Failures are
// logged; the span's owner never sees them. The caller holds t.exportMu.
func (t *Tracer) exportLocked(data SpanData) {
	if t.shutdown {
		return
	}

	batch := []SpanData{data}
	for _, e := range t.exporters {
		if err := e.Export(context.Background(), batch); err != nil {
			t.logger.Warn("span export failed",
				"tracer", t.name,
				"trace_id", data.TraceID.String(),
				"span_id", data.SpanID.String(),
				"error", err,
			)
		}
	}
}
