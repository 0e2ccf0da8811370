package tracing

import "errors"

var (
	// ErrSpanEnded is returned when a span is mutated after End.
	ErrSpanEnded = errors.New("span already ended")

	// ErrScopeOrder is returned when a scope is closed while a scope activated
	// after it is still open.
	ErrScopeOrder = errors.New("scope closed out of order")

	// ErrScopeClosed is returned when a scope is closed more than once.
	ErrScopeClosed = errors.New("scope already closed")

	// ErrMalformedHeader reports an unparseable propagation header.
	// Extract never returns it; it is logged and the header is ignored.
	ErrMalformedHeader = errors.New("malformed propagation header")
)
