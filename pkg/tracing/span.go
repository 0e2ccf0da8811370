package tracing

import (
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SpanStatus represents the status of a span.
type SpanStatus int

const (
	// StatusUnset is the default status.
	StatusUnset SpanStatus = iota
	// StatusOK indicates the operation completed successfully.
	StatusOK
	// StatusError indicates the operation failed.
	StatusError
)

// String returns the string representation of the status.
func (s SpanStatus) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusError:
		return "ERROR"
	default:
		return "UNSET"
	}
}

// SpanKind describes the relationship between the Span, its parents and children.
// Values match trace.SpanKind.
type SpanKind int

const (
	// SpanKindUnspecified is the default, unspecified span kind.
	SpanKindUnspecified SpanKind = 0
	// SpanKindInternal indicates an internal operation.
	SpanKindInternal SpanKind = 1
	// SpanKindServer indicates a server-side handling of an RPC or HTTP request.
	SpanKindServer SpanKind = 2
	// SpanKindClient indicates a client-side RPC or HTTP request.
	SpanKindClient SpanKind = 3
	// SpanKindProducer indicates a message producer.
	SpanKindProducer SpanKind = 4
	// SpanKindConsumer indicates a message consumer.
	SpanKindConsumer SpanKind = 5
)

// String returns the lowercase kind name.
func (k SpanKind) String() string {
	return trace.SpanKind(k).String()
}

// SpanContext holds the identity of a span for propagation.
type SpanContext struct {
	TraceID trace.TraceID
	SpanID  trace.SpanID
	Sampled bool
	// Remote is set on span contexts decoded from a carrier.
	Remote bool
}

// IsValid returns true if the span context has valid trace and span IDs.
func (sc SpanContext) IsValid() bool {
	return sc.TraceID.IsValid() && sc.SpanID.IsValid()
}

// SpanEvent represents an event that occurred during a span.
type SpanEvent struct {
	Name      string               `json:"name"`
	Timestamp time.Time            `json:"timestamp"`
	Attrs     []attribute.KeyValue `json:"attributes,omitempty"`
}

// SpanData is the immutable snapshot of a finished span handed to exporters.
type SpanData struct {
	TraceID       trace.TraceID        `json:"traceId"`
	SpanID        trace.SpanID         `json:"spanId"`
	ParentID      trace.SpanID         `json:"parentId"`
	Sampled       bool                 `json:"sampled"`
	Name          string               `json:"name"`
	Kind          SpanKind             `json:"kind,omitempty"`
	StartTime     time.Time            `json:"startTime"`
	EndTime       time.Time            `json:"endTime"`
	Status        SpanStatus           `json:"status"`
	StatusMessage string               `json:"statusMessage,omitempty"`
	Attributes    []attribute.KeyValue `json:"attributes,omitempty"`
	Events        []SpanEvent          `json:"events,omitempty"`
	TracerName    string               `json:"tracerName,omitempty"`
	TracerVersion string               `json:"tracerVersion,omitempty"`
}

// SpanContext returns the identity of the snapshot.
func (d SpanData) SpanContext() SpanContext {
	return SpanContext{TraceID: d.TraceID, SpanID: d.SpanID, Sampled: d.Sampled}
}

// HasParent reports whether the span was started under another span.
func (d SpanData) HasParent() bool {
	return d.ParentID.IsValid()
}

// Attribute returns the value recorded for key.
func (d SpanData) Attribute(key string) (attribute.Value, bool) {
	for _, kv := range d.Attributes {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

// Span represents a single operation within a trace.
//
// A span is owned by the code that started it. It is mutable until End, after
// which every mutator returns ErrSpanEnded and the snapshot is exported.
//
// Every method accepts a nil *Span, so the result of SpanFromContext can be
// used without a check: accessors return zero values and mutators do
// nothing.
type Span struct {
	spanContext SpanContext
	parentID    trace.SpanID
	tracer      *Tracer
	recording   bool

	mu            sync.Mutex
	name          string
	kind          SpanKind
	startTime     time.Time
	endTime       time.Time
	status        SpanStatus
	statusMessage string
	attrs         []attribute.KeyValue
	attrIndex     map[attribute.Key]int
	events        []SpanEvent
	ended         bool
}

// newRemoteSpan wraps a decoded span context in a non-recording span.
func newRemoteSpan(sc SpanContext) *Span {
	sc.Remote = true
	return &Span{spanContext: sc}
}

// NonRecordingSpan returns a span that only carries sc. It can be placed in a
// Context to act as a parent but never records or exports anything.
func NonRecordingSpan(sc SpanContext) *Span {
	return &Span{spanContext: sc}
}

// SpanContext returns the span's identity. It never changes.
func (s *Span) SpanContext() SpanContext {
	if s == nil {
		return SpanContext{}
	}
	return s.spanContext
}

// ParentSpanID returns the span id of the parent, or an invalid id for roots.
func (s *Span) ParentSpanID() trace.SpanID {
	if s == nil {
		return trace.SpanID{}
	}
	return s.parentID
}

// Name returns the span name.
func (s *Span) Name() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// IsRecording returns true if the span is sampled, local and not yet ended.
func (s *Span) IsRecording() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording && !s.ended
}

// Ended reports whether End has been called.
func (s *Span) Ended() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// SetAttributes sets attributes on the span. An existing key is overwritten in
// place.
func (s *Span) SetAttributes(attrs ...attribute.KeyValue) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrSpanEnded
	}
	if !s.recording {
		return nil
	}
	s.setAttributes(attrs)
	return nil
}

// setAttributes upserts attrs. The caller holds s.mu.
func (s *Span) setAttributes(attrs []attribute.KeyValue) {
	if s.attrIndex == nil {
		s.attrIndex = make(map[attribute.Key]int, len(attrs))
	}
	for _, a := range attrs {
		if !a.Valid() {
			continue
		}
		if i, ok := s.attrIndex[a.Key]; ok {
			s.attrs[i] = a
			continue
		}
		s.attrIndex[a.Key] = len(s.attrs)
		s.attrs = append(s.attrs, a)
	}
}

// AddEvent adds a timestamped event to the span.
func (s *Span) AddEvent(name string, opts ...EventOption) error {
	if s == nil {
		return nil
	}
	cfg := eventConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.timestamp.IsZero() {
		cfg.timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrSpanEnded
	}
	if !s.recording {
		return nil
	}

	s.events = append(s.events, SpanEvent{
		Name:      name,
		Timestamp: cfg.timestamp,
		Attrs:     append([]attribute.KeyValue(nil), cfg.attrs...),
	})
	return nil
}

// SetStatus sets the status of the span.
func (s *Span) SetStatus(status SpanStatus, message string) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrSpanEnded
	}
	if !s.recording {
		return nil
	}
	s.status = status
	s.statusMessage = message
	return nil
}

// End marks the span as ended and hands its snapshot to the tracer's
// exporters. Calling End again is a no-op.
//
// The end time is taken under the tracer's export lock, so every exporter of
// one tracer sees spans in end-time order. An explicit WithEndTimestamp is
// used as given.
func (s *Span) End(opts ...EndOption) {
	if s == nil {
		return
	}
	cfg := endConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if s.recording && s.tracer != nil {
		s.tracer.exportMu.Lock()
		defer s.tracer.exportMu.Unlock()
	}

	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	if cfg.timestamp.IsZero() {
		s.endTime = time.Now()
	} else {
		s.endTime = cfg.timestamp
	}
	export := s.recording && s.tracer != nil
	var data SpanData
	if export {
		data = s.snapshot()
	}
	s.mu.Unlock()

	if export {
		s.tracer.exportLocked(data)
	}
}

// Snapshot returns the current state of the span as SpanData.
func (s *Span) Snapshot() SpanData {
	if s == nil {
		return SpanData{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// snapshot copies the span state. The caller holds s.mu.
func (s *Span) snapshot() SpanData {
	d := SpanData{
		TraceID:       s.spanContext.TraceID,
		SpanID:        s.spanContext.SpanID,
		ParentID:      s.parentID,
		Sampled:       s.spanContext.Sampled,
		Name:          s.name,
		Kind:          s.kind,
		StartTime:     s.startTime,
		EndTime:       s.endTime,
		Status:        s.status,
		StatusMessage: s.statusMessage,
	}
	if len(s.attrs) > 0 {
		d.Attributes = append([]attribute.KeyValue(nil), s.attrs...)
	}
	if len(s.events) > 0 {
		d.Events = make([]SpanEvent, len(s.events))
		copy(d.Events, s.events)
	}
	if s.tracer != nil {
		d.TracerName = s.tracer.name
		d.TracerVersion = s.tracer.version
	}
	return d
}

// EventOption configures an event added with AddEvent.
type EventOption func(*eventConfig)

type eventConfig struct {
	timestamp time.Time
	attrs     []attribute.KeyValue
}

// WithEventAttributes attaches attributes to the event.
func WithEventAttributes(attrs ...attribute.KeyValue) EventOption {
	return func(c *eventConfig) {
		c.attrs = append(c.attrs, attrs...)
	}
}

// WithEventTimestamp overrides the event time.
func WithEventTimestamp(t time.Time) EventOption {
	return func(c *eventConfig) {
		c.timestamp = t
	}
}

// EndOption configures End.
type EndOption func(*endConfig)

type endConfig struct {
	timestamp time.Time
}

// WithEndTimestamp overrides the end time.
func WithEndTimestamp(t time.Time) EndOption {
	return func(c *endConfig) {
		c.timestamp = t
	}
}
