package requestlog

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_LogAssignsIDAndTimestamp(t *testing.T) {
	s := NewMemoryStore(10)
	e := &Entry{Method: "GET", Path: "/rt/v1/log_out"}
	s.Log(e)

	assert.NotEmpty(t, e.ID)
	assert.Contains(t, e.ID, "req-")
	assert.False(t, e.Timestamp.IsZero())
	assert.Same(t, e, s.Get(e.ID))
	assert.Nil(t, s.Get("missing"))
	assert.Equal(t, 1, s.Count())
}

func TestMemoryStore_LogNilIgnored(t *testing.T) {
	s := NewMemoryStore(10)
	s.Log(nil)
	assert.Equal(t, 0, s.Count())
}

func TestMemoryStore_FIFOEviction(t *testing.T) {
	s := NewMemoryStore(3)
	for i := 0; i < 5; i++ {
		s.Log(&Entry{ID: fmt.Sprintf("e%d", i)})
	}

	assert.Equal(t, 3, s.Count())
	assert.Nil(t, s.Get("e0"))
	assert.Nil(t, s.Get("e1"))
	assert.NotNil(t, s.Get("e4"))
}

func TestMemoryStore_ListNewestFirst(t *testing.T) {
	s := NewMemoryStore(10)
	for i := 0; i < 4; i++ {
		s.Log(&Entry{ID: fmt.Sprintf("e%d", i)})
	}

	got := s.List(nil)
	require.Len(t, got, 4)
	assert.Equal(t, "e3", got[0].ID)
	assert.Equal(t, "e0", got[3].ID)

	page := s.List(&Filter{Offset: 1, Limit: 2})
	require.Len(t, page, 2)
	assert.Equal(t, "e2", page[0].ID)
	assert.Equal(t, "e1", page[1].ID)

	assert.Empty(t, s.List(&Filter{Offset: 10}))
}

func TestMemoryStore_ListFilter(t *testing.T) {
	s := NewMemoryStore(10)
	s.Log(&Entry{ID: "a", Method: "POST", Path: "/rt/v1/check_in", MatchedRoute: "check_in", ResponseStatus: 200,
		TraceID: "8d828d3c7c8663418b067492675bef12", Baggage: map[string]string{"session_id": "s1"}})
	s.Log(&Entry{ID: "b", Method: "GET", Path: "/rt/v1/check_out", MatchedRoute: "check_out", ResponseStatus: 200})
	s.Log(&Entry{ID: "c", Method: "GET", Path: "/other", ResponseStatus: 404, Error: "no route"})

	ids := func(entries []*Entry) []string {
		out := make([]string, len(entries))
		for i, e := range entries {
			out[i] = e.ID
		}
		return out
	}

	hasErr := true
	noErr := false
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"method case-insensitive", Filter{Method: "get"}, []string{"c", "b"}},
		{"path prefix", Filter{Path: "/rt/v1/"}, []string{"b", "a"}},
		{"route", Filter{MatchedRoute: "check_out"}, []string{"b"}},
		{"status", Filter{StatusCode: 404}, []string{"c"}},
		{"has error", Filter{HasError: &hasErr}, []string{"c"}},
		{"no error", Filter{HasError: &noErr}, []string{"b", "a"}},
		{"trace id", Filter{TraceID: "8d828d3c7c8663418b067492675bef12"}, []string{"a"}},
		{"baggage key", Filter{BaggageKey: "session_id"}, []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.filter
			assert.Equal(t, tt.want, ids(s.List(&f)))
		})
	}
}

func TestMemoryStore_Clear(t *testing.T) {
	s := NewMemoryStore(10)
	s.Log(&Entry{})
	s.Log(&Entry{})
	s.Clear()

	assert.Equal(t, 0, s.Count())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryStore_NextInArrivalOrder(t *testing.T) {
	s := NewMemoryStore(10)
	s.Log(&Entry{ID: "first"})
	s.Log(&Entry{ID: "second"})

	ctx := context.Background()
	e, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", e.ID)

	e, err = s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", e.ID)

	// Taking entries does not remove them from history.
	assert.Equal(t, 2, s.Count())
}

func TestMemoryStore_NextWaitsForEntry(t *testing.T) {
	s := NewMemoryStore(10)

	got := make(chan *Entry, 1)
	go func() {
		e, err := s.Next(context.Background())
		if err == nil {
			got <- e
		}
	}()

	time.Sleep(10 * time.Millisecond)
	s.Log(&Entry{ID: "late"})

	select {
	case e := <-got:
		assert.Equal(t, "late", e.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not return after Log")
	}
}

func TestMemoryStore_NextCanceled(t *testing.T) {
	s := NewMemoryStore(10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e, err := s.Next(ctx)
	assert.Nil(t, e)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStore_Subscribe(t *testing.T) {
	s := NewMemoryStore(10)
	sub, unsubscribe := s.Subscribe()

	s.Log(&Entry{ID: "x"})

	select {
	case e := <-sub:
		assert.Equal(t, "x", e.ID)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive entry")
	}

	unsubscribe()
	unsubscribe()

	_, open := <-sub
	assert.False(t, open)

	// Logging after unsubscribe must not panic.
	s.Log(&Entry{ID: "y"})
}

func TestMemoryStore_ConcurrentLog(t *testing.T) {
	s := NewMemoryStore(1000)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				s.Log(&Entry{Method: "GET"})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 500, s.Count())
	seen := make(map[string]bool)
	for _, e := range s.List(nil) {
		assert.False(t, seen[e.ID], "duplicate id %s", e.ID)
		seen[e.ID] = true
	}
}

func TestEntry_Helpers(t *testing.T) {
	e := &Entry{Headers: map[string][]string{"X-Token": {"1234", "5678"}}}
	assert.Equal(t, "1234", e.Header("X-Token"))
	assert.Empty(t, e.Header("X-Missing"))
	assert.False(t, e.HasTrace())

	e.TraceID = "abc"
	assert.True(t, e.HasTrace())
}
