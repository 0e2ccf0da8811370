package tracing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/getmockd/hellotel/pkg/logging"
)

// Exporter receives finished spans.
//
// The tracer calls Export with spans in the order they ended and never calls
// it concurrently for the same tracer.
type Exporter interface {
	// Export sends spans to the backend.
	Export(ctx context.Context, spans []SpanData) error
	// Shutdown gracefully shuts down the exporter.
	Shutdown(ctx context.Context) error
}

// ============================================================================
// InMemoryExporter - keeps finished spans for inspection
// ============================================================================

// InMemoryExporter stores every exported span in memory.
type InMemoryExporter struct {
	mu    sync.Mutex
	spans []SpanData
}

// NewInMemoryExporter creates an empty in-memory exporter.
func NewInMemoryExporter() *InMemoryExporter {
	return &InMemoryExporter{}
}

// Export appends spans.
func (e *InMemoryExporter) Export(_ context.Context, spans []SpanData) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.spans = append(e.spans, spans...)
	return nil
}

// FinishedSpans returns a copy of the spans exported so far, in end order.
func (e *InMemoryExporter) FinishedSpans() []SpanData {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]SpanData, len(e.spans))
	copy(out, e.spans)
	return out
}

// Reset drops all stored spans.
func (e *InMemoryExporter) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.spans = nil
}

// Shutdown is a no-op; stored spans stay readable.
func (e *InMemoryExporter) Shutdown(context.Context) error {
	return nil
}

// ============================================================================
// StdoutExporter - prints spans as JSON (for dev/debug)
// ============================================================================

// StdoutExporter writes spans to stdout as JSON.
type StdoutExporter struct {
	mu     sync.Mutex
	writer io.Writer
	pretty bool
}

// StdoutOption configures a StdoutExporter.
type StdoutOption func(*StdoutExporter)

// WithWriter sets the output writer for the exporter.
func WithWriter(w io.Writer) StdoutOption {
	return func(e *StdoutExporter) {
		e.writer = w
	}
}

// WithPrettyPrint enables pretty-printed JSON output.
func WithPrettyPrint() StdoutOption {
	return func(e *StdoutExporter) {
		e.pretty = true
	}
}

// NewStdoutExporter creates a new stdout exporter.
func NewStdoutExporter(opts ...StdoutOption) *StdoutExporter {
	e := &StdoutExporter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export writes spans as JSON, one document per span.
func (e *StdoutExporter) Export(_ context.Context, spans []SpanData) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, span := range spans {
		output := spanToOutput(span)
		var data []byte
		var err error
		if e.pretty {
			data, err = json.MarshalIndent(output, "", "  ")
		} else {
			data, err = json.Marshal(output)
		}
		if err != nil {
			return fmt.Errorf("failed to marshal span: %w", err)
		}
		if _, err := fmt.Fprintln(e.writer, string(data)); err != nil {
			return fmt.Errorf("failed to write span: %w", err)
		}
	}
	return nil
}

// Shutdown is a no-op for the stdout exporter.
func (e *StdoutExporter) Shutdown(context.Context) error {
	return nil
}

// spanOutput is the JSON structure for stdout output.
type spanOutput struct {
	TraceID       string         `json:"traceId"`
	SpanID        string         `json:"spanId"`
	ParentID      string         `json:"parentId,omitempty"`
	Name          string         `json:"name"`
	Kind          string         `json:"kind"`
	Sampled       bool           `json:"sampled"`
	StartTime     string         `json:"startTime"`
	EndTime       string         `json:"endTime"`
	Duration      string         `json:"duration"`
	Status        string         `json:"status"`
	StatusMessage string         `json:"statusMessage,omitempty"`
	Attributes    map[string]any `json:"attributes,omitempty"`
	Events        []eventOutput  `json:"events,omitempty"`
}

type eventOutput struct {
	Name       string         `json:"name"`
	Timestamp  string         `json:"timestamp"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

func spanToOutput(span SpanData) spanOutput {
	output := spanOutput{
		TraceID:       span.TraceID.String(),
		SpanID:        span.SpanID.String(),
		Name:          span.Name,
		Kind:          span.Kind.String(),
		Sampled:       span.Sampled,
		StartTime:     span.StartTime.Format(time.RFC3339Nano),
		EndTime:       span.EndTime.Format(time.RFC3339Nano),
		Duration:      span.EndTime.Sub(span.StartTime).String(),
		Status:        span.Status.String(),
		StatusMessage: span.StatusMessage,
		Attributes:    attrMap(span.Attributes),
	}
	if span.HasParent() {
		output.ParentID = span.ParentID.String()
	}

	if len(span.Events) > 0 {
		output.Events = make([]eventOutput, len(span.Events))
		for i, e := range span.Events {
			output.Events[i] = eventOutput{
				Name:       e.Name,
				Timestamp:  e.Timestamp.Format(time.RFC3339Nano),
				Attributes: attrMap(e.Attrs),
			}
		}
	}

	return output
}

func attrMap(kvs []attribute.KeyValue) map[string]any {
	if len(kvs) == 0 {
		return nil
	}
	m := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value.AsInterface()
	}
	return m
}

// ============================================================================
// LogExporter - writes one structured log record per span
// ============================================================================

// LogExporter logs finished spans through slog.
type LogExporter struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogExporter creates an exporter logging at level. A nil logger discards.
func NewLogExporter(logger *slog.Logger, level slog.Level) *LogExporter {
	if logger == nil {
		logger = logging.Nop()
	}
	return &LogExporter{logger: logger, level: level}
}

// Export logs each span.
func (e *LogExporter) Export(ctx context.Context, spans []SpanData) error {
	for _, span := range spans {
		attrs := []slog.Attr{
			slog.String("trace_id", span.TraceID.String()),
			slog.String("span_id", span.SpanID.String()),
			slog.String("kind", span.Kind.String()),
			slog.Duration("duration", span.EndTime.Sub(span.StartTime)),
			slog.String("status", span.Status.String()),
		}
		if span.HasParent() {
			attrs = append(attrs, slog.String("parent_id", span.ParentID.String()))
		}
		if len(span.Attributes) > 0 {
			attrs = append(attrs, slog.Any("attributes", attrMap(span.Attributes)))
		}
		if len(span.Events) > 0 {
			names := make([]string, len(span.Events))
			for i, ev := range span.Events {
				names[i] = ev.Name
			}
			attrs = append(attrs, slog.Any("events", names))
		}
		e.logger.LogAttrs(ctx, e.level, "span "+span.Name, attrs...)
	}
	return nil
}

// Shutdown is a no-op for the log exporter.
func (e *LogExporter) Shutdown(context.Context) error {
	return nil
}

// ============================================================================
// NoopExporter - does nothing (for testing/disabled tracing)
// ============================================================================

// NoopExporter is an exporter that does nothing.
type NoopExporter struct{}

// NewNoopExporter creates a new noop exporter.
func NewNoopExporter() *NoopExporter {
	return &NoopExporter{}
}

// Export does nothing and returns nil.
func (e *NoopExporter) Export(context.Context, []SpanData) error {
	return nil
}

// Shutdown does nothing and returns nil.
func (e *NoopExporter) Shutdown(context.Context) error {
	return nil
}
