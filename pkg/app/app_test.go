package app

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/hellotel/pkg/coldlaunch"
	"github.com/getmockd/hellotel/pkg/config"
	"github.com/getmockd/hellotel/pkg/logging"
	"github.com/getmockd/hellotel/pkg/mockserver"
	"github.com/getmockd/hellotel/pkg/requestlog"
	"github.com/getmockd/hellotel/pkg/restapi"
	"github.com/getmockd/hellotel/pkg/tracing"
)

var (
	fixedUUID = uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e")
	fixedTime = time.UnixMilli(1700000000000)
)

type harness struct {
	app    *App
	server *mockserver.Server
}

func newHarness(t *testing.T, mutate ...func(*config.Config)) *harness {
	t.Helper()
	cfg := config.Default()
	srv := mockserver.New(cfg.Server, cfg.Routes)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	cfg.Client.BaseURL = ts.URL + "/rt/v1/"
	cfg.Tracing.Exporters = []string{config.ExporterMemory}
	for _, m := range mutate {
		m(cfg)
	}

	clock := func() time.Time { return fixedTime }
	a, err := New(context.Background(), cfg,
		WithLogger(logging.Nop()),
		WithClock(clock),
		WithCell(coldlaunch.NewCell(
			coldlaunch.WithClock(clock),
			coldlaunch.WithUUIDSource(func() uuid.UUID { return fixedUUID }),
		)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return &harness{app: a, server: srv}
}

func (h *harness) next(t *testing.T) *requestlog.Entry {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	e, err := h.server.Requests().Next(ctx)
	require.NoError(t, err)
	return e
}

func spanNamed(t *testing.T, spans []tracing.SpanData, name string) tracing.SpanData {
	t.Helper()
	for _, s := range spans {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("no span named %q", name)
	return tracing.SpanData{}
}

func TestApp_RootContextMemoized(t *testing.T) {
	h := newHarness(t)

	root := h.app.RootContext()
	again := h.app.RootContext()
	assert.Same(t, root.Span(), again.Span())
	assert.True(t, root.Span().IsRecording())

	id, ok := root.Baggage().Get(coldlaunch.BaggageKeyID)
	require.True(t, ok)
	assert.Equal(t, fixedUUID.String(), id)
	ms, ok := root.Baggage().Get(coldlaunch.BaggageKeyTimeMs)
	require.True(t, ok)
	assert.Equal(t, "1700000000000", ms)

	assert.Equal(t, h.app.ColdLaunch(), h.app.ColdLaunch())

	snap := root.Span().Snapshot()
	require.Len(t, snap.Events, 1)
	assertColdLaunchEvent(t, snap.Events[0], EventColdLaunchStart)
	assert.Equal(t, fixedTime, snap.Events[0].Timestamp)
}

func assertColdLaunchEvent(t *testing.T, ev tracing.SpanEvent, name string) {
	t.Helper()
	assert.Equal(t, name, ev.Name)
	attrs := make(map[string]any, len(ev.Attrs))
	for _, kv := range ev.Attrs {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, map[string]any{
		EventAttrColdLaunchID: fixedUUID.String(),
		EventAttrLaunchTimeMs: int64(1700000000000),
	}, attrs)
}

func TestApp_EndColdLaunchOnce(t *testing.T) {
	h := newHarness(t)
	h.app.RootContext()

	h.app.EndColdLaunch()
	h.app.EndColdLaunch()

	spans := h.app.FinishedSpans()
	require.Len(t, spans, 1)
	s := spans[0]
	assert.Equal(t, SpanColdLaunch, s.Name)
	assert.Equal(t, fixedTime, s.StartTime)

	v, ok := s.Attribute(AttrColdLaunchID)
	require.True(t, ok)
	assert.Equal(t, fixedUUID.String(), v.AsString())
	v, ok = s.Attribute(AttrLaunchTimeMs)
	require.True(t, ok)
	assert.Equal(t, int64(1700000000000), v.AsInt64())

	require.Len(t, s.Events, 2)
	assertColdLaunchEvent(t, s.Events[0], EventColdLaunchStart)
	assertColdLaunchEvent(t, s.Events[1], EventColdLaunchEnd)
	assert.Len(t, s.Attributes, 2)
}

func TestApp_NotifyAppLaunch(t *testing.T) {
	h := newHarness(t)

	res, err := h.app.NotifyAppLaunch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "acknowledged", res.Status)

	e := h.next(t)
	root := h.app.RootContext().SpanContext()
	assert.Equal(t, root.TraceID.String(), e.TraceID)
	assert.Equal(t, map[string]string{
		coldlaunch.BaggageKeyID:     fixedUUID.String(),
		coldlaunch.BaggageKeyTimeMs: "1700000000000",
		KeySendingNetwork:           "1700000000000",
	}, e.Baggage)
	assert.JSONEq(t, `{"cold_launch_uuid":"0f8fad5b-d9cb-469f-a165-70867728950e","time_ms":1700000000000}`, e.Body)

	// The root's own baggage is untouched.
	_, ok := h.app.RootContext().Baggage().Get(KeySendingNetwork)
	assert.False(t, ok)

	client := spanNamed(t, h.app.FinishedSpans(), "POST app_launch")
	assert.Equal(t, root.SpanID, client.ParentID)
}

func TestApp_NotifyBecomingInteractive(t *testing.T) {
	h := newHarness(t)

	_, err := h.app.NotifyBecomingInteractive(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "false", h.next(t).Baggage[KeyActivityRestored])

	_, err = h.app.NotifyBecomingInteractive(context.Background(), map[string]string{KeyInteractiveSession: "abc"})
	require.NoError(t, err)
	e := h.next(t)
	assert.Equal(t, "true", e.Baggage[KeyActivityRestored])
	assert.Contains(t, e.Body, `"saved_bundle":{"interactive_session_uuid":"abc"}`)
}

func TestApp_AuthStoresToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.app.Auth(ctx, false)
	require.ErrorIs(t, err, restapi.ErrUnexpectedStatus)
	assert.Empty(t, h.app.Token())
	assert.Equal(t, fixedAuthToken, h.next(t).Baggage[KeyAuthToken])

	tok, err := h.app.Auth(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, "1234", tok.Token)
	assert.Equal(t, "1234", h.app.Token())
	assert.Equal(t, "1", h.next(t).Header("X-Bypass"))

	_, err = h.app.NotifyAppLaunch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1234", h.next(t).Header("X-Token"))

	out, err := h.app.LogOut(ctx)
	require.NoError(t, err)
	assert.True(t, out.LoggedOut)
	assert.Empty(t, h.app.Token())
}

func TestApp_CheckIn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.app.Auth(ctx, true)
	require.NoError(t, err)
	h.next(t)

	res, err := h.app.CheckIn(ctx, "check_in_button_clicked",
		restapi.LocationModel{List: []restapi.LocationEntity{{Lat: 37.4, Lng: -122.1}}})
	require.NoError(t, err)
	assert.Equal(t, "Checked In", res.Status)

	e := h.next(t)
	assert.Equal(t, "1234", e.Baggage[KeyAuthToken])
	assert.Equal(t, "check_in_button_clicked", e.Baggage[KeyInteractionName])
	assert.NotEmpty(t, e.Baggage[KeyInteractionUUID])
	assert.Equal(t, "1700000000000", e.Baggage[KeyCheckInStarted])
	assert.Equal(t, "1700000000000", e.Baggage[KeyLocationFetched])
	assert.Equal(t, "1700000000000", e.Baggage[KeySendingNetwork])
	assert.Equal(t, fixedUUID.String(), e.Baggage[coldlaunch.BaggageKeyID])

	spans := h.app.FinishedSpans()
	checkIn := spanNamed(t, spans, SpanCheckIn)
	client := spanNamed(t, spans, "POST check_in")
	assert.Equal(t, h.app.RootContext().SpanContext().SpanID, checkIn.ParentID)
	assert.Equal(t, checkIn.SpanID, client.ParentID)
	assert.Equal(t, client.SpanID.String(), e.SpanID)

	require.Len(t, checkIn.Events, 2)
	assert.Equal(t, EventStartCheckingIn, checkIn.Events[0].Name)
	assert.Equal(t, EventFinishedCheckIn, checkIn.Events[1].Name)
}

func TestApp_CheckOut(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.app.CheckOut(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, "Checked Out", res.Status)
	assert.Equal(t, map[string]string{KeySessionID: checkOutSessionID}, h.next(t).Baggage)

	_, err = h.app.CheckOut(ctx, false)
	require.NoError(t, err)
	e := h.next(t)
	assert.Nil(t, e.Baggage)
	assert.True(t, e.HasTrace())
}

func TestApp_DeviceRebooted(t *testing.T) {
	h := newHarness(t)

	res, err := h.app.DeviceRebooted(context.Background(), "boot_completed")
	require.NoError(t, err)
	assert.Equal(t, "tracked", res.Status)

	e := h.next(t)
	_, err = uuid.Parse(e.Baggage[KeyDeviceRebootedUUID])
	assert.NoError(t, err)
	assert.Contains(t, e.Body, `"action":"boot_completed"`)
	assert.Contains(t, e.Body, `"reboot_time_ms":1700000000000`)
}

func TestApp_ShutdownEndsRootOnce(t *testing.T) {
	h := newHarness(t)
	h.app.RootContext()

	require.NoError(t, h.app.Shutdown(context.Background()))
	require.NoError(t, h.app.Shutdown(context.Background()))

	spans := h.app.FinishedSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, SpanColdLaunch, spans[0].Name)
}

func TestApp_ShutdownWithoutRoot(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.app.Shutdown(context.Background()))
	assert.Empty(t, h.app.FinishedSpans())
}

func TestApp_UnsampledStillPropagates(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Tracing.SampleRatio = 0 })

	_, err := h.app.NotifyAppLaunch(context.Background())
	require.NoError(t, err)
	h.app.EndColdLaunch()

	e := h.next(t)
	assert.True(t, e.HasTrace())
	assert.False(t, e.Sampled)
	assert.Equal(t, fixedUUID.String(), e.Baggage[coldlaunch.BaggageKeyID])
	assert.Empty(t, h.app.FinishedSpans())
}

func TestApp_StdoutExporter(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default()
	cfg.Tracing.Exporters = []string{config.ExporterStdout, config.ExporterNone}

	a, err := New(context.Background(), cfg, WithLogger(logging.Nop()), WithStdout(&buf))
	require.NoError(t, err)
	a.RootContext()
	require.NoError(t, a.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), `"name":"cold_launch_started"`)
	assert.Nil(t, a.FinishedSpans())
}

func TestApp_ExtraExporter(t *testing.T) {
	extra := tracing.NewInMemoryExporter()
	cfg := config.Default()
	cfg.Tracing.Exporters = nil

	a, err := New(context.Background(), cfg, WithLogger(logging.Nop()), WithExporter(extra))
	require.NoError(t, err)
	a.RootContext()
	a.EndColdLaunch()

	assert.Len(t, extra.FinishedSpans(), 1)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Tracing.Propagators = []string{"b3"}

	_, err := New(context.Background(), cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestNewLogger_AddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(config.LogConfig{Level: "debug", Format: "json"}, &buf)

	tracer := tracing.NewTracer("log-test")
	ctx, span := tracer.StartContext(context.Background(), "op")
	log.InfoContext(ctx, "hello")
	span.End()

	assert.Contains(t, buf.String(), `"trace_id":"`+span.SpanContext().TraceID.String()+`"`)
	assert.Contains(t, buf.String(), `"span_id":"`+span.SpanContext().SpanID.String()+`"`)
}
