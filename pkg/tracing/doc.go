// Package tracing provides spans, flow-local telemetry contexts and Jaeger
// wire propagation.
//
// A Context is an immutable pair of the active span and the current baggage.
// Deriving a Context with WithSpan or WithBaggage never changes the original.
// A Flow holds the current Context for one goroutine or handler chain;
// Activate pushes a Context and the returned Scope pops it again, strictly in
// LIFO order.
//
// Key features:
//   - Jaeger propagation (uber-trace-id and uberctx-* headers)
//   - W3C Trace Context propagation (traceparent header)
//   - Trace and span ids using the OpenTelemetry trace types
//   - Exporters: in-memory, stdout JSON, slog, and any OpenTelemetry SDK
//     span exporter (OTLP HTTP included)
//   - Thread-safe span operations
//
// Usage:
//
//	exp := tracing.NewInMemoryExporter()
//	tracer := tracing.NewTracer("checkin", tracing.WithExporter(exp))
//
//	root := tracing.Background().
//	    WithBaggage(baggage.New("user.id", "321", "user.name", "jack"))
//	span := tracer.Start(root, "A Test Span", tracing.WithKind(tracing.SpanKindClient))
//	defer span.End()
//
//	flow := tracing.NewFlow()
//	err := flow.Within(root.WithSpan(span), func(c tracing.Context) error {
//	    tracing.NewJaegerPropagator().Inject(c, tracing.HeaderCarrier(req.Header))
//	    return nil
//	})
//
// Wire format:
//
//	uber-trace-id: {trace-id}:{span-id}:0:{1|0}
//	uberctx-{key}: {value}
//
// Example: uber-trace-id: 8d828d3c7c8663418b067492675bef12:dae708107c50eb0f:0:1
package tracing
