package coldlaunch

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/hellotel/pkg/baggage"
)

func TestGetOrInit_Stable(t *testing.T) {
	cell := NewCell()
	first := cell.GetOrInit()

	require.False(t, first.IsZero())
	assert.NotEqual(t, uuid.Nil, first.ID)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, cell.GetOrInit())
	}
}

func TestGetOrInit_ConcurrentFirstAccess(t *testing.T) {
	var generated atomic.Int32
	cell := NewCell(WithUUIDSource(func() uuid.UUID {
		generated.Add(1)
		// Widen the race window.
		time.Sleep(5 * time.Millisecond)
		return uuid.New()
	}))

	const n = 64
	results := make([]Identity, n)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i] = cell.GetOrInit()
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), generated.Load())
	for _, r := range results {
		assert.Equal(t, results[0], r)
	}
}

func TestOptions(t *testing.T) {
	fixed := uuid.MustParse("6f1c2a4e-8a9b-4c1d-9e2f-0a1b2c3d4e5f")
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	id := NewCell(
		WithClock(func() time.Time { return at }),
		WithUUIDSource(func() uuid.UUID { return fixed }),
		WithClock(nil),
	).GetOrInit()

	assert.Equal(t, fixed, id.ID)
	assert.Equal(t, at.UnixMilli(), id.CreatedAtMs)
	assert.True(t, id.CreatedAt().Equal(at))
}

func TestSeparateCellsDiffer(t *testing.T) {
	assert.NotEqual(t, NewCell().GetOrInit().ID, NewCell().GetOrInit().ID)
}

func TestIdentityBaggage(t *testing.T) {
	id := Identity{
		ID:          uuid.MustParse("6f1c2a4e-8a9b-4c1d-9e2f-0a1b2c3d4e5f"),
		CreatedAtMs: 1709294400000,
	}
	root := baggage.New("user.name", "jack")

	b := id.Baggage(root)
	assert.Equal(t, map[string]string{
		"user.name":           "jack",
		"cold_launch_id":      "6f1c2a4e-8a9b-4c1d-9e2f-0a1b2c3d4e5f",
		"cold_launch_time_ms": "1709294400000",
	}, b.ToMap())
	assert.Equal(t, 1, root.Len(), "input baggage is untouched")
}

func TestIdentityZero(t *testing.T) {
	assert.True(t, Identity{}.IsZero())
}
