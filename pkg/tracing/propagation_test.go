package tracing

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/hellotel/pkg/baggage"
	"github.com/getmockd/hellotel/pkg/logging"
)

func fixtureContext(t *testing.T, sampled bool) Context {
	t.Helper()
	sc := SpanContext{
		TraceID: mustTraceID(t, fixtureTraceID),
		SpanID:  mustSpanID(t, fixtureSpanID),
		Sampled: sampled,
	}
	return Background().WithSpan(NonRecordingSpan(sc)).WithBaggage(testBaggage())
}

func TestJaegerInject(t *testing.T) {
	p := NewJaegerPropagator()

	t.Run("fixture", func(t *testing.T) {
		carrier := MapCarrier{}
		p.Inject(fixtureContext(t, true), carrier)

		assert.Equal(t, MapCarrier{
			"uber-trace-id":     "8d828d3c7c8663418b067492675bef12:dae708107c50eb0f:0:1",
			"uberctx-user.id":   "321",
			"uberctx-user.name": "jack",
		}, carrier)
	})

	t.Run("unsampled", func(t *testing.T) {
		carrier := MapCarrier{}
		p.Inject(fixtureContext(t, false), carrier)
		assert.Equal(t, "8d828d3c7c8663418b067492675bef12:dae708107c50eb0f:0:0", carrier[UberTraceIDHeader])
	})

	t.Run("no active span writes nothing", func(t *testing.T) {
		carrier := MapCarrier{}
		p.Inject(Background().WithBaggage(testBaggage()), carrier)
		assert.Empty(t, carrier)
	})

	t.Run("span from tracer", func(t *testing.T) {
		ids := newSequenceIDs(t, fixtureTraceID)
		tracer := NewTracer("test-service", WithIDGenerator(ids))
		span := tracer.Start(Background(), "A Test Span", WithKind(SpanKindClient))
		defer span.End()

		h := http.Header{}
		p.Inject(Background().WithSpan(span), HeaderCarrier(h))
		assert.Equal(t, fixtureTraceID+":0000000000000001:0:1", h.Get("uber-trace-id"))
	})

	t.Run("metadata is not carried", func(t *testing.T) {
		c := fixtureContext(t, true).WithBaggage(baggage.Empty().PutWithMetadata("tenant", "acme", "ttl=60"))
		carrier := MapCarrier{}
		p.Inject(c, carrier)
		assert.Equal(t, "acme", carrier["uberctx-tenant"])
	})

	t.Run("values are escaped for the transport", func(t *testing.T) {
		c := fixtureContext(t, true).WithBaggage(baggage.New("greeting", "hello world"))
		carrier := MapCarrier{}
		p.Inject(c, carrier)
		assert.Equal(t, "hello%20world", carrier["uberctx-greeting"])
	})
}

func TestJaegerInject_SkipsKeysInvalidAsHeaders(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Config{Level: logging.LevelDebug, Output: &buf})
	p := NewJaegerPropagator(WithPropagatorLogger(logger))
	c := fixtureContext(t, true).WithBaggage(baggage.New("bad key", "x", "bad\nkey", "y", "session_id", "abc"))

	carrier := MapCarrier{}
	p.Inject(c, carrier)
	assert.Equal(t, MapCarrier{
		"uber-trace-id":      "8d828d3c7c8663418b067492675bef12:dae708107c50eb0f:0:1",
		"uberctx-session_id": "abc",
	}, carrier)
	assert.Contains(t, buf.String(), "skipping baggage key")

	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	p.Inject(c, HeaderCarrier(req.Header))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "abc", got.Get("uberctx-session_id"))
}

func TestJaegerRoundTrip(t *testing.T) {
	p := NewJaegerPropagator()
	orig := fixtureContext(t, true)

	h := http.Header{}
	p.Inject(orig, HeaderCarrier(h))

	got := p.Extract(Background(), HeaderCarrier(h))
	require.True(t, got.HasSpan())
	sc := got.SpanContext()
	assert.Equal(t, fixtureTraceID, sc.TraceID.String())
	assert.Equal(t, fixtureSpanID, sc.SpanID.String())
	assert.True(t, sc.Sampled)
	assert.True(t, sc.Remote)
	assert.False(t, got.Span().IsRecording())
	assert.Equal(t, map[string]string{"user.id": "321", "user.name": "jack"}, got.Baggage().ToMap())
}

func TestJaegerRoundTrip_EscapedValue(t *testing.T) {
	p := NewJaegerPropagator()
	c := fixtureContext(t, true).WithBaggage(baggage.New("greeting", "hello world", "path", "/rt/v1"))

	carrier := MapCarrier{}
	p.Inject(c, carrier)
	got := p.Extract(Background(), carrier)

	assert.Equal(t, map[string]string{"greeting": "hello world", "path": "/rt/v1"}, got.Baggage().ToMap())
}

func TestJaegerExtract_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"garbage", "garbage"},
		{"too few fields", "8d828d3c7c8663418b067492675bef12:dae708107c50eb0f:0"},
		{"too many fields", "8d828d3c7c8663418b067492675bef12:dae708107c50eb0f:0:1:1"},
		{"non-hex trace id", "zz828d3c7c8663418b067492675bef12:dae708107c50eb0f:0:1"},
		{"non-hex span id", "8d828d3c7c8663418b067492675bef12:xyz708107c50eb0f:0:1"},
		{"trace id too long", "08d828d3c7c8663418b067492675bef12:dae708107c50eb0f:0:1"},
		{"span id too long", "8d828d3c7c8663418b067492675bef12:0dae708107c50eb0f:0:1"},
		{"empty trace id", ":dae708107c50eb0f:0:1"},
		{"zero trace id", "0:dae708107c50eb0f:0:1"},
		{"zero span id", "8d828d3c7c8663418b067492675bef12:0:0:1"},
		{"bad flags", "8d828d3c7c8663418b067492675bef12:dae708107c50eb0f:0:x"},
	}

	p := NewJaegerPropagator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parent := Background().WithBaggage(testBaggage())
			var got Context
			assert.NotPanics(t, func() {
				got = p.Extract(parent, MapCarrier{UberTraceIDHeader: tt.value})
			})
			assert.False(t, got.HasSpan())
			assert.Equal(t, parent.Baggage(), got.Baggage(), "no baggage headers keeps the parent's baggage")

			_, err := parseUberTraceID(tt.value)
			assert.ErrorIs(t, err, ErrMalformedHeader)
		})
	}
}

func TestJaegerExtract_LogsMalformedAtDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Config{Level: logging.LevelDebug, Output: &buf})
	p := NewJaegerPropagator(WithPropagatorLogger(logger))

	p.Extract(Background(), MapCarrier{UberTraceIDHeader: "garbage"})
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "ignoring uber-trace-id")
}

func TestJaegerExtract_Lenient(t *testing.T) {
	p := NewJaegerPropagator()

	t.Run("short ids are left padded", func(t *testing.T) {
		got := p.Extract(Background(), MapCarrier{UberTraceIDHeader: "abc:def:0:1"})
		require.True(t, got.HasSpan())
		assert.Equal(t, "00000000000000000000000000000abc", got.SpanContext().TraceID.String())
		assert.Equal(t, "0000000000000def", got.SpanContext().SpanID.String())
	})

	t.Run("64-bit trace id", func(t *testing.T) {
		got := p.Extract(Background(), MapCarrier{UberTraceIDHeader: "8b067492675bef12:dae708107c50eb0f:0:1"})
		require.True(t, got.HasSpan())
		assert.Equal(t, "00000000000000008b067492675bef12", got.SpanContext().TraceID.String())
	})

	t.Run("url encoded", func(t *testing.T) {
		v := "8d828d3c7c8663418b067492675bef12%3Adae708107c50eb0f%3A0%3A1"
		got := p.Extract(Background(), MapCarrier{UberTraceIDHeader: v})
		require.True(t, got.HasSpan())
		assert.Equal(t, fixtureSpanID, got.SpanContext().SpanID.String())
	})

	t.Run("uppercase hex", func(t *testing.T) {
		got := p.Extract(Background(), MapCarrier{UberTraceIDHeader: "8D828D3C7C8663418B067492675BEF12:DAE708107C50EB0F:0:1"})
		require.True(t, got.HasSpan())
		assert.Equal(t, fixtureTraceID, got.SpanContext().TraceID.String())
	})

	t.Run("flags are hex bits", func(t *testing.T) {
		sampled := p.Extract(Background(), MapCarrier{UberTraceIDHeader: fixtureTraceID + ":" + fixtureSpanID + ":0:3"})
		assert.True(t, sampled.SpanContext().Sampled)

		debugOnly := p.Extract(Background(), MapCarrier{UberTraceIDHeader: fixtureTraceID + ":" + fixtureSpanID + ":0:2"})
		require.True(t, debugOnly.HasSpan())
		assert.False(t, debugOnly.SpanContext().Sampled)
	})
}

func TestJaegerExtract_Baggage(t *testing.T) {
	p := NewJaegerPropagator()

	t.Run("baggage headers replace parent baggage", func(t *testing.T) {
		parent := Background().WithBaggage(baggage.New("stale", "yes"))
		got := p.Extract(parent, MapCarrier{"uberctx-session_id": "s-42"})
		assert.Equal(t, map[string]string{"session_id": "s-42"}, got.Baggage().ToMap())
		assert.False(t, got.HasSpan())
	})

	t.Run("baggage survives a malformed trace id", func(t *testing.T) {
		got := p.Extract(Background(), MapCarrier{
			UberTraceIDHeader: "garbage",
			"uberctx-user.id": "321",
		})
		assert.False(t, got.HasSpan())
		v, ok := got.Baggage().Get("user.id")
		require.True(t, ok)
		assert.Equal(t, "321", v)
	})

	t.Run("jaeger-baggage header", func(t *testing.T) {
		got := p.Extract(Background(), MapCarrier{
			JaegerBaggageHeader: "k1=v1, k2=v2,broken",
			"uberctx-k3":        "v3",
		})
		assert.Equal(t, map[string]string{"k1": "v1", "k2": "v2", "k3": "v3"}, got.Baggage().ToMap())
	})

	t.Run("http header keys arrive lowercased", func(t *testing.T) {
		h := http.Header{}
		h.Set("Uberctx-Check_In_Started", "true")
		got := p.Extract(Background(), HeaderCarrier(h))
		v, ok := got.Baggage().Get("check_in_started")
		require.True(t, ok)
		assert.Equal(t, "true", v)
	})

	t.Run("empty key is ignored", func(t *testing.T) {
		got := p.Extract(Background(), MapCarrier{"uberctx-": "x"})
		assert.Equal(t, 0, got.Baggage().Len())
	})
}

func TestJaegerFields(t *testing.T) {
	assert.Equal(t, []string{"uber-trace-id"}, NewJaegerPropagator().Fields())
}

func TestW3CTraceContext(t *testing.T) {
	p := NewW3CTraceContextPropagator()

	t.Run("inject", func(t *testing.T) {
		carrier := MapCarrier{}
		p.Inject(fixtureContext(t, true), carrier)
		assert.Equal(t, "00-"+fixtureTraceID+"-"+fixtureSpanID+"-01", carrier[TraceparentHeader])

		empty := MapCarrier{}
		p.Inject(Background(), empty)
		assert.Empty(t, empty)
	})

	t.Run("extract", func(t *testing.T) {
		parent := Background().WithBaggage(testBaggage())
		got := p.Extract(parent, MapCarrier{TraceparentHeader: "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-00"})
		require.True(t, got.HasSpan())
		assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", got.SpanContext().TraceID.String())
		assert.Equal(t, "b7ad6b7169203331", got.SpanContext().SpanID.String())
		assert.False(t, got.SpanContext().Sampled)
		assert.True(t, got.SpanContext().Remote)
		assert.Equal(t, parent.Baggage(), got.Baggage(), "traceparent carries no baggage")
	})

	invalid := []string{
		"",
		"garbage",
		"00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331",
		"00-00000000000000000000000000000000-b7ad6b7169203331-01",
		"00-0af7651916cd43dd8448eb211c80319c-0000000000000000-01",
		"00-0af7651916cd43dd8448eb211c80319c-b7ad6b71692033-01",
		"ff-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01",
		"00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-zz",
	}
	for _, v := range invalid {
		t.Run("invalid "+v, func(t *testing.T) {
			got := p.Extract(Background(), MapCarrier{TraceparentHeader: v})
			assert.False(t, got.HasSpan())
		})
	}
}

func TestCompositePropagator(t *testing.T) {
	p := NewCompositePropagator(NewJaegerPropagator(), NewW3CTraceContextPropagator())
	assert.Equal(t, []string{UberTraceIDHeader, TraceparentHeader}, p.Fields())

	carrier := MapCarrier{}
	p.Inject(fixtureContext(t, true), carrier)
	assert.Contains(t, carrier, UberTraceIDHeader)
	assert.Contains(t, carrier, TraceparentHeader)
	assert.Contains(t, carrier, "uberctx-user.id")

	got := p.Extract(Background(), carrier)
	require.True(t, got.HasSpan())
	assert.Equal(t, fixtureSpanID, got.SpanContext().SpanID.String())
	assert.Equal(t, "jack", got.Baggage().ToMap()["user.name"])

	dup := NewCompositePropagator(NewJaegerPropagator(), NewJaegerPropagator())
	assert.Equal(t, []string{UberTraceIDHeader}, dup.Fields())
}

func TestPropagatorByName(t *testing.T) {
	p, err := PropagatorByName(nil)
	require.NoError(t, err)
	assert.IsType(t, &JaegerPropagator{}, p)

	p, err = PropagatorByName(nil, "tracecontext")
	require.NoError(t, err)
	assert.IsType(t, &W3CTraceContextPropagator{}, p)

	p, err = PropagatorByName(logging.Nop(), "Jaeger", " w3c ", "")
	require.NoError(t, err)
	assert.IsType(t, CompositePropagator{}, p)
	assert.Len(t, p.(CompositePropagator), 2)

	_, err = PropagatorByName(nil, "b3")
	assert.Error(t, err)
}

func TestCarriers(t *testing.T) {
	t.Run("header carrier", func(t *testing.T) {
		h := http.Header{}
		c := HeaderCarrier(h)
		c.Set("uber-trace-id", "x")
		c.Set("Uberctx-User.Id", "321")
		assert.Equal(t, "x", c.Get("Uber-Trace-Id"))
		assert.Equal(t, []string{"uber-trace-id", "uberctx-user.id"}, c.Keys())
	})

	t.Run("map carrier", func(t *testing.T) {
		c := MapCarrier{}
		c.Set("b", "2")
		c.Set("a", "1")
		assert.Equal(t, "1", c.Get("a"))
		assert.Empty(t, c.Get("missing"))
		assert.Equal(t, []string{"a", "b"}, c.Keys())
	})
}
