package carrier

import (
	"testing"

	"github.com/nats-io/nats.go"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel/trace"

	"github.com/getmockd/hellotel/pkg/baggage"
	"github.com/getmockd/hellotel/pkg/tracing"
)

func fixture(t *testing.T) tracing.Context {
	t.Helper()
	tid, err := trace.TraceIDFromHex("8d828d3c7c8663418b067492675bef12")
	require.NoError(t, err)
	sid, err := trace.SpanIDFromHex("dae708107c50eb0f")
	require.NoError(t, err)

	span := tracing.NonRecordingSpan(tracing.SpanContext{TraceID: tid, SpanID: sid, Sampled: true})
	return tracing.Background().
		WithSpan(span).
		WithBaggage(baggage.New("user.id", "321", "user.name", "jack"))
}

func assertRoundTrip(t *testing.T, c tracing.Carrier) {
	t.Helper()
	p := tracing.NewJaegerPropagator()
	orig := fixture(t)

	p.Inject(orig, c)
	assert.Equal(t, "8d828d3c7c8663418b067492675bef12:dae708107c50eb0f:0:1", c.Get("uber-trace-id"))

	got := p.Extract(tracing.Background(), c)
	require.True(t, got.HasSpan())
	assert.Equal(t, orig.SpanContext().TraceID, got.SpanContext().TraceID)
	assert.Equal(t, orig.SpanContext().SpanID, got.SpanContext().SpanID)
	assert.Equal(t, orig.Baggage().ToMap(), got.Baggage().ToMap())
}

func TestNATS(t *testing.T) {
	msg := nats.NewMsg("hellotel.check_in")
	msg.Header = nil
	c := NATSMsg(msg)
	require.NotNil(t, msg.Header)

	assertRoundTrip(t, c)
	assert.Equal(t, "321", msg.Header.Get("uberctx-user.id"))
	assert.Equal(t, []string{"uber-trace-id", "uberctx-user.id", "uberctx-user.name"}, c.Keys())

	c.Set("uber-trace-id", "replaced")
	assert.Len(t, msg.Header["uber-trace-id"], 1)
}

func TestKafka(t *testing.T) {
	rec := &kgo.Record{Topic: "check_in"}
	c := KafkaRecord{Record: rec}

	assertRoundTrip(t, c)
	assert.Len(t, rec.Headers, 3)

	t.Run("repeated keys", func(t *testing.T) {
		rec := &kgo.Record{Headers: []kgo.RecordHeader{
			{Key: "a", Value: []byte("1")},
			{Key: "b", Value: []byte("x")},
			{Key: "a", Value: []byte("2")},
		}}
		c := KafkaRecord{Record: rec}
		assert.Equal(t, "2", c.Get("a"))
		assert.Equal(t, []string{"a", "b"}, c.Keys())
		assert.Empty(t, c.Get("missing"))

		c.Set("a", "3")
		assert.Equal(t, []kgo.RecordHeader{
			{Key: "b", Value: []byte("x")},
			{Key: "a", Value: []byte("3")},
		}, rec.Headers)
	})
}

func TestAMQP(t *testing.T) {
	pub := amqp.Publishing{Body: []byte(`{"session_id":"s-1"}`)}
	c := AMQPPublishing(&pub)
	require.NotNil(t, pub.Headers)

	assertRoundTrip(t, c)

	d := amqp.Delivery{Headers: pub.Headers}
	got := tracing.NewJaegerPropagator().Extract(tracing.Background(), AMQPDelivery(&d))
	assert.Equal(t, "jack", got.Baggage().ToMap()["user.name"])

	t.Run("field types", func(t *testing.T) {
		tbl := AMQPTable{"s": "v", "b": []byte("bytes"), "n": int32(7)}
		assert.Equal(t, "v", tbl.Get("s"))
		assert.Equal(t, "bytes", tbl.Get("b"))
		assert.Empty(t, tbl.Get("n"))
		assert.Equal(t, []string{"b", "n", "s"}, tbl.Keys())
	})
}

func TestNew(t *testing.T) {
	for _, transport := range []string{TransportNATS, "Kafka", " amqp "} {
		t.Run(transport, func(t *testing.T) {
			c, err := New(transport)
			require.NoError(t, err)
			assert.Empty(t, c.Keys())
			assertRoundTrip(t, c)
		})
	}

	_, err := New("http")
	assert.ErrorIs(t, err, ErrUnknownTransport)
}
