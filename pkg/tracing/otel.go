package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/instrumentation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// SDKExporter adapts any OpenTelemetry SDK span exporter (OTLP, stdouttrace,
// tracetest) to Exporter.
type SDKExporter struct {
	exporter sdktrace.SpanExporter
	resource *resource.Resource
}

// NewSDKExporter wraps exp. Spans are reported under a resource carrying
// service.name.
func NewSDKExporter(exp sdktrace.SpanExporter, serviceName string) *SDKExporter {
	return &SDKExporter{
		exporter: exp,
		resource: resource.NewSchemaless(attribute.String("service.name", serviceName)),
	}
}

// NewOTLPHTTPExporter creates an SDKExporter sending OTLP/HTTP protobuf to
// endpoint (host:port, no scheme).
func NewOTLPHTTPExporter(ctx context.Context, endpoint, serviceName string, insecure bool) (*SDKExporter, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	if insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}
	return NewSDKExporter(exp, serviceName), nil
}

// Export converts spans to SDK read-only spans and forwards them.
func (e *SDKExporter) Export(ctx context.Context, spans []SpanData) error {
	if len(spans) == 0 {
		return nil
	}
	ro := make([]sdktrace.ReadOnlySpan, len(spans))
	for i, s := range spans {
		ro[i] = e.toReadOnly(s)
	}
	return e.exporter.ExportSpans(ctx, ro)
}

// Shutdown shuts down the wrapped exporter.
func (e *SDKExporter) Shutdown(ctx context.Context) error {
	return e.exporter.Shutdown(ctx)
}

func (e *SDKExporter) toReadOnly(s SpanData) sdktrace.ReadOnlySpan {
	stub := tracetest.SpanStub{
		Name:        s.Name,
		SpanContext: otelSpanContext(s.TraceID, s.SpanID, s.Sampled, false),
		SpanKind:    trace.SpanKind(s.Kind),
		StartTime:   s.StartTime,
		EndTime:     s.EndTime,
		Attributes:  s.Attributes,
		Status:      sdktrace.Status{Code: otelCode(s.Status), Description: s.StatusMessage},
		Resource:    e.resource,
		InstrumentationScope: instrumentation.Scope{
			Name:    s.TracerName,
			Version: s.TracerVersion,
		},
	}
	if s.HasParent() {
		stub.Parent = otelSpanContext(s.TraceID, s.ParentID, s.Sampled, false)
	}
	for _, ev := range s.Events {
		stub.Events = append(stub.Events, sdktrace.Event{
			Name:       ev.Name,
			Attributes: ev.Attrs,
			Time:       ev.Timestamp,
		})
	}
	return stub.Snapshot()
}

func otelSpanContext(tid trace.TraceID, sid trace.SpanID, sampled, remote bool) trace.SpanContext {
	var flags trace.TraceFlags
	if sampled {
		flags = trace.FlagsSampled
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tid,
		SpanID:     sid,
		TraceFlags: flags,
		Remote:     remote,
	})
}

func otelCode(s SpanStatus) codes.Code {
	switch s {
	case StatusOK:
		return codes.Ok
	case StatusError:
		return codes.Error
	default:
		return codes.Unset
	}
}
