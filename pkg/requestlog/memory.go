package requestlog

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	_ SubscribableStore = (*MemoryStore)(nil)
	_ Queue             = (*MemoryStore)(nil)
)

// MemoryStore keeps entries in a capped in-memory FIFO buffer.
type MemoryStore struct {
	entries    []*Entry
	maxEntries int
	mu         sync.RWMutex

	// pending are entries not yet returned by Next.
	pending []*Entry
	arrived chan struct{}

	subscribers map[Subscriber]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a store holding at most maxEntries entries.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &MemoryStore{
		entries:     make([]*Entry, 0, maxEntries),
		maxEntries:  maxEntries,
		arrived:     make(chan struct{}),
		subscribers: make(map[Subscriber]struct{}),
	}
}

// Log records an entry, filling in ID and Timestamp if unset.
func (s *MemoryStore) Log(entry *Entry) {
	if entry == nil {
		return
	}

	s.mu.Lock()
	if entry.ID == "" {
		entry.ID = "req-" + uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	// FIFO eviction: remove oldest if at capacity
	if len(s.entries) >= s.maxEntries {
		s.entries = s.entries[1:]
	}
	s.entries = append(s.entries, entry)

	if len(s.pending) >= s.maxEntries {
		s.pending = s.pending[1:]
	}
	s.pending = append(s.pending, entry)
	close(s.arrived)
	s.arrived = make(chan struct{})
	s.mu.Unlock()

	// Notify subscribers (non-blocking)
	s.subMu.RLock()
	for sub := range s.subscribers {
		select {
		case sub <- entry:
		default:
			// Drop if subscriber is slow
		}
	}
	s.subMu.RUnlock()
}

// Next returns the oldest entry not yet taken, waiting for one if needed.
func (s *MemoryStore) Next(ctx context.Context) (*Entry, error) {
	for {
		s.mu.Lock()
		if len(s.pending) > 0 {
			e := s.pending[0]
			s.pending[0] = nil
			s.pending = s.pending[1:]
			s.mu.Unlock()
			return e, nil
		}
		arrived := s.arrived
		s.mu.Unlock()

		select {
		case <-arrived:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Get retrieves a log entry by ID.
func (s *MemoryStore) Get(id string) *Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, entry := range s.entries {
		if entry.ID == id {
			return entry
		}
	}
	return nil
}

// List returns entries newest first, optionally filtered.
func (s *MemoryStore) List(filter *Filter) []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Entry, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		entry := s.entries[i]
		if filter != nil && !matchesFilter(entry, filter) {
			continue
		}
		result = append(result, entry)
	}

	if filter != nil {
		if filter.Offset > 0 {
			if filter.Offset >= len(result) {
				return []*Entry{}
			}
			result = result[filter.Offset:]
		}
		if filter.Limit > 0 && filter.Limit < len(result) {
			result = result[:filter.Limit]
		}
	}

	return result
}

func matchesFilter(entry *Entry, filter *Filter) bool {
	if filter.Method != "" && !strings.EqualFold(entry.Method, filter.Method) {
		return false
	}
	if filter.Path != "" && !strings.HasPrefix(entry.Path, filter.Path) {
		return false
	}
	if filter.MatchedRoute != "" && entry.MatchedRoute != filter.MatchedRoute {
		return false
	}
	if filter.StatusCode != 0 && entry.ResponseStatus != filter.StatusCode {
		return false
	}
	if filter.HasError != nil {
		hasError := entry.Error != ""
		if *filter.HasError != hasError {
			return false
		}
	}
	if filter.TraceID != "" && entry.TraceID != filter.TraceID {
		return false
	}
	if filter.BaggageKey != "" {
		if _, ok := entry.Baggage[filter.BaggageKey]; !ok {
			return false
		}
	}
	return true
}

// Clear removes all log entries, including those not yet taken by Next.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make([]*Entry, 0, s.maxEntries)
	s.pending = nil
}

// Count returns the number of log entries.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Subscribe registers a subscriber to receive new log entries.
// Returns a channel that will receive entries and an unsubscribe function.
func (s *MemoryStore) Subscribe() (Subscriber, func()) {
	ch := make(Subscriber, 100)

	s.subMu.Lock()
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subscribers, ch)
			s.subMu.Unlock()
			close(ch)
		})
	}

	return ch, unsubscribe
}
