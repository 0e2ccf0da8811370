package requestlog

import "context"

// Logger is the minimal interface for logging request entries.
type Logger interface {
	Log(entry *Entry)
}

// Store defines the interface for request history storage.
// Store embeds Logger, so any Store implementation can be used where Logger is expected.
type Store interface {
	Logger

	// Get retrieves a log entry by ID.
	Get(id string) *Entry

	// List returns log entries, newest first, optionally filtered.
	List(filter *Filter) []*Entry

	// Clear removes all log entries.
	Clear()

	// Count returns the number of log entries.
	Count() int
}

// Filter defines criteria for filtering request logs.
type Filter struct {
	// Method filters by HTTP method.
	Method string

	// Path filters by path prefix.
	Path string

	// MatchedRoute filters by route name.
	MatchedRoute string

	// StatusCode filters by response status code.
	StatusCode int

	// HasError filters by error presence.
	HasError *bool

	// TraceID filters by propagated trace id.
	TraceID string

	// BaggageKey keeps entries that carried this baggage key.
	BaggageKey string

	// Limit is the maximum number of entries to return.
	Limit int

	// Offset is the number of entries to skip.
	Offset int
}

// Subscriber is a channel that receives new log entries.
type Subscriber chan *Entry

// SubscribableStore extends Store with subscription support for real-time updates.
type SubscribableStore interface {
	Store

	// Subscribe registers a subscriber to receive new log entries.
	// Returns a channel that will receive entries and an unsubscribe function.
	Subscribe() (Subscriber, func())
}

// Queue hands out recorded entries one at a time in arrival order.
type Queue interface {
	// Next blocks until an entry not yet taken is available or ctx is done.
	Next(ctx context.Context) (*Entry, error)
}
