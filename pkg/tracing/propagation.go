package tracing

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/getmockd/hellotel/pkg/logging"
)

// Propagator defines how a Context is propagated across process boundaries.
type Propagator interface {
	// Inject writes the Context into carrier.
	Inject(c Context, carrier Carrier)
	// Extract reads carrier and returns c enriched with what it found.
	// Extract never fails: unusable input leaves c unchanged.
	Extract(c Context, carrier Carrier) Context
	// Fields returns the fixed header names the propagator writes.
	Fields() []string
}

// Carrier is an interface for reading and writing propagation data.
type Carrier interface {
	Get(key string) string
	Set(key, value string)
	// Keys lists the keys present in the carrier.
	Keys() []string
}

// HeaderCarrier adapts http.Header to the Carrier interface.
// Keys are reported in lowercase since HTTP header names are case-insensitive.
type HeaderCarrier http.Header

// Get returns the value for a key.
func (hc HeaderCarrier) Get(key string) string {
	return http.Header(hc).Get(key)
}

// Set sets a key-value pair.
func (hc HeaderCarrier) Set(key, value string) {
	http.Header(hc).Set(key, value)
}

// Keys returns the lowercase header names.
func (hc HeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(hc))
	for k := range hc {
		keys = append(keys, strings.ToLower(k))
	}
	sort.Strings(keys)
	return keys
}

// MapCarrier adapts a map[string]string to the Carrier interface.
type MapCarrier map[string]string

// Get returns the value for a key.
func (mc MapCarrier) Get(key string) string {
	return mc[key]
}

// Set sets a key-value pair.
func (mc MapCarrier) Set(key, value string) {
	mc[key] = value
}

// Keys returns the map keys in sorted order.
func (mc MapCarrier) Keys() []string {
	keys := make([]string, 0, len(mc))
	for k := range mc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CompositePropagator runs several propagators in order. On Extract each
// propagator sees the Context produced by the previous one.
type CompositePropagator []Propagator

// NewCompositePropagator returns a propagator running ps in order.
func NewCompositePropagator(ps ...Propagator) CompositePropagator {
	return CompositePropagator(ps)
}

// Inject injects with every propagator.
func (cp CompositePropagator) Inject(c Context, carrier Carrier) {
	for _, p := range cp {
		p.Inject(c, carrier)
	}
}

// Extract extracts with every propagator.
func (cp CompositePropagator) Extract(c Context, carrier Carrier) Context {
	for _, p := range cp {
		c = p.Extract(c, carrier)
	}
	return c
}

// Fields returns the union of all fields.
func (cp CompositePropagator) Fields() []string {
	var fields []string
	seen := make(map[string]bool)
	for _, p := range cp {
		for _, f := range p.Fields() {
			if !seen[f] {
				seen[f] = true
				fields = append(fields, f)
			}
		}
	}
	return fields
}

// Propagator names accepted by PropagatorByName.
const (
	PropagatorJaeger       = "jaeger"
	PropagatorTraceContext = "tracecontext"
)

// PropagatorByName builds a propagator from configuration names. Several names
// produce a CompositePropagator.
func PropagatorByName(logger *slog.Logger, names ...string) (Propagator, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	var ps []Propagator
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case PropagatorJaeger:
			ps = append(ps, NewJaegerPropagator(WithPropagatorLogger(logger)))
		case PropagatorTraceContext, "w3c":
			ps = append(ps, NewW3CTraceContextPropagator())
		case "":
			continue
		default:
			return nil, fmt.Errorf("unknown propagator %q", n)
		}
	}
	switch len(ps) {
	case 0:
		return NewJaegerPropagator(WithPropagatorLogger(logger)), nil
	case 1:
		return ps[0], nil
	default:
		return NewCompositePropagator(ps...), nil
	}
}

// isValidHex returns true if the string contains only valid hex characters.
func isValidHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
