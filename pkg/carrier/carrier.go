// Package carrier adapts message-broker headers to tracing.Carrier so the
// same propagators used for HTTP work on NATS, Kafka and AMQP messages.
package carrier

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nats-io/nats.go"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/getmockd/hellotel/pkg/tracing"
)

// ErrUnknownTransport is returned by New for an unsupported transport name.
var ErrUnknownTransport = errors.New("unknown transport")

// Transport names accepted by New.
const (
	TransportNATS  = "nats"
	TransportKafka = "kafka"
	TransportAMQP  = "amqp"
)

// New returns an empty header carrier for the named message transport.
func New(transport string) (tracing.Carrier, error) {
	switch strings.ToLower(strings.TrimSpace(transport)) {
	case TransportNATS:
		return NATSHeader(nats.Header{}), nil
	case TransportKafka:
		return KafkaRecord{Record: &kgo.Record{}}, nil
	case TransportAMQP:
		return AMQPTable(amqp.Table{}), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, transport)
	}
}

var (
	_ tracing.Carrier = NATSHeader(nil)
	_ tracing.Carrier = KafkaRecord{}
	_ tracing.Carrier = AMQPTable(nil)
)

// NATSHeader adapts nats.Header. NATS header names are case-sensitive.
type NATSHeader nats.Header

// NATSMsg returns the header carrier of msg, allocating it if needed.
func NATSMsg(msg *nats.Msg) NATSHeader {
	if msg.Header == nil {
		msg.Header = nats.Header{}
	}
	return NATSHeader(msg.Header)
}

// Get returns the first value for key.
func (h NATSHeader) Get(key string) string {
	return nats.Header(h).Get(key)
}

// Set replaces the values for key.
func (h NATSHeader) Set(key, value string) {
	nats.Header(h).Set(key, value)
}

// Keys returns the header names in sorted order.
func (h NATSHeader) Keys() []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// KafkaRecord adapts the headers of a franz-go record. Kafka allows repeated
// keys; Get returns the last one and Set replaces every occurrence.
type KafkaRecord struct {
	Record *kgo.Record
}

// Get returns the last value for key.
func (r KafkaRecord) Get(key string) string {
	for i := len(r.Record.Headers) - 1; i >= 0; i-- {
		if r.Record.Headers[i].Key == key {
			return string(r.Record.Headers[i].Value)
		}
	}
	return ""
}

// Set replaces the value for key.
func (r KafkaRecord) Set(key, value string) {
	kept := r.Record.Headers[:0]
	for _, h := range r.Record.Headers {
		if h.Key != key {
			kept = append(kept, h)
		}
	}
	r.Record.Headers = append(kept, kgo.RecordHeader{Key: key, Value: []byte(value)})
}

// Keys returns the distinct header keys in record order.
func (r KafkaRecord) Keys() []string {
	seen := make(map[string]bool, len(r.Record.Headers))
	keys := make([]string, 0, len(r.Record.Headers))
	for _, h := range r.Record.Headers {
		if !seen[h.Key] {
			seen[h.Key] = true
			keys = append(keys, h.Key)
		}
	}
	return keys
}

// AMQPTable adapts an amqp091 header table.
type AMQPTable amqp.Table

// AMQPPublishing returns the header carrier of p, allocating it if needed.
func AMQPPublishing(p *amqp.Publishing) AMQPTable {
	if p.Headers == nil {
		p.Headers = amqp.Table{}
	}
	return AMQPTable(p.Headers)
}

// AMQPDelivery returns the header carrier of a received message.
func AMQPDelivery(d *amqp.Delivery) AMQPTable {
	return AMQPTable(d.Headers)
}

// Get returns the value for key. Byte slices are converted; other field
// types are not propagation data and read as empty.
func (t AMQPTable) Get(key string) string {
	switch v := t[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

// Set stores value as a string field.
func (t AMQPTable) Set(key, value string) {
	t[key] = value
}

// Keys returns the table keys in sorted order.
func (t AMQPTable) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
