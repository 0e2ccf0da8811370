package app

import (
	"go.opentelemetry.io/otel/attribute"

	"github.com/getmockd/hellotel/pkg/baggage"
	"github.com/getmockd/hellotel/pkg/coldlaunch"
	"github.com/getmockd/hellotel/pkg/tracing"
)

// Span, event and attribute names of the cold-launch span.
const (
	SpanColdLaunch       = "cold_launch_started"
	EventColdLaunchStart = "cold_launch_started"
	EventColdLaunchEnd   = "cold_launch_ended"
	AttrColdLaunchID     = "attr_cold_launch_id"
	AttrLaunchTimeMs     = "attr_launch_id_time_ms"

	EventAttrColdLaunchID = "event_attr_cold_launch_id"
	EventAttrLaunchTimeMs = "event_attr_cold_launch_id_time_ms"
)

// coldLaunchAttrs are set on the span at start and again before it ends.
func coldLaunchAttrs(id coldlaunch.Identity) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrColdLaunchID, id.ID.String()),
		attribute.Int64(AttrLaunchTimeMs, id.CreatedAtMs),
	}
}

// coldLaunchEventAttrs are carried by both the start and end events.
func coldLaunchEventAttrs(id coldlaunch.Identity) tracing.EventOption {
	return tracing.WithEventAttributes(
		attribute.String(EventAttrColdLaunchID, id.ID.String()),
		attribute.Int64(EventAttrLaunchTimeMs, id.CreatedAtMs),
	)
}

// ColdLaunch returns the identity of this launch, creating it on first use.
func (a *App) ColdLaunch() coldlaunch.Identity {
	return a.cell.GetOrInit()
}

// RootContext returns the application-scope context: the cold-launch span
// and baggage seeded from the launch identity. The span is started on the
// first call and the same Context is returned afterwards.
func (a *App) RootContext() tracing.Context {
	a.rootOnce.Do(func() {
		id := a.ColdLaunch()
		base := tracing.Background().WithBaggage(id.Baggage(baggage.Empty()))

		span := a.tracer.Start(base, SpanColdLaunch,
			tracing.WithTimestamp(id.CreatedAt()),
			tracing.WithAttributes(coldLaunchAttrs(id)...),
		)
		_ = span.AddEvent(EventColdLaunchStart,
			tracing.WithEventTimestamp(id.CreatedAt()),
			coldLaunchEventAttrs(id),
		)

		a.root = base.WithSpan(span)
		a.rootStarted.Store(true)
		a.log.Info("cold launch",
			"cold_launch_id", id.ID.String(),
			"trace_id", span.SpanContext().TraceID.String(),
		)
	})
	return a.root
}

// EndColdLaunch records the cold_launch_ended event and ends the cold-launch
// span. Only the first call has an effect.
func (a *App) EndColdLaunch() {
	a.endOnce.Do(func() {
		span := a.RootContext().Span()
		id := a.ColdLaunch()
		_ = span.SetAttributes(coldLaunchAttrs(id)...)
		_ = span.AddEvent(EventColdLaunchEnd, coldLaunchEventAttrs(id))
		span.End()
	})
}
