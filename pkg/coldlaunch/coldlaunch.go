// Package coldlaunch holds the identity of the current process launch.
//
// The identity is created on first use and never changes afterwards, no
// matter how many goroutines race for it.
package coldlaunch

import (
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/getmockd/hellotel/pkg/baggage"
)

// Baggage keys seeded from an Identity.
const (
	BaggageKeyID     = "cold_launch_id"
	BaggageKeyTimeMs = "cold_launch_time_ms"
)

// Identity identifies one process launch.
type Identity struct {
	ID          uuid.UUID `json:"cold_launch_uuid"`
	CreatedAtMs int64     `json:"time_ms"`
}

// CreatedAt returns the creation time.
func (i Identity) CreatedAt() time.Time {
	return time.UnixMilli(i.CreatedAtMs)
}

// IsZero reports whether i was never initialized.
func (i Identity) IsZero() bool {
	return i.ID == uuid.Nil && i.CreatedAtMs == 0
}

// Baggage returns b with the launch id and creation time added.
func (i Identity) Baggage(b baggage.Baggage) baggage.Baggage {
	return b.
		Put(BaggageKeyID, i.ID.String()).
		Put(BaggageKeyTimeMs, strconv.FormatInt(i.CreatedAtMs, 10))
}

// Cell lazily creates an Identity exactly once.
type Cell struct {
	once  sync.Once
	id    Identity
	now   func() time.Time
	newID func() uuid.UUID
}

// Option configures a Cell.
type Option func(*Cell)

// WithClock sets the time source used for CreatedAtMs.
func WithClock(now func() time.Time) Option {
	return func(c *Cell) {
		if now != nil {
			c.now = now
		}
	}
}

// WithUUIDSource sets the id generator.
func WithUUIDSource(newID func() uuid.UUID) Option {
	return func(c *Cell) {
		if newID != nil {
			c.newID = newID
		}
	}
}

// NewCell creates an uninitialized cell.
func NewCell(opts ...Option) *Cell {
	c := &Cell{
		now:   time.Now,
		newID: uuid.New,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrInit returns the identity, creating it on the first call. Concurrent
// first calls block until the winner has finished and all see its value.
func (c *Cell) GetOrInit() Identity {
	c.once.Do(func() {
		c.id = Identity{
			ID:          c.newID(),
			CreatedAtMs: c.now().UnixMilli(),
		}
	})
	return c.id
}
