package baggage

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmpty(t *testing.T) {
	b := Empty()
	assert.Equal(t, 0, b.Len())
	assert.Nil(t, b.Entries())
	_, ok := b.Get("anything")
	assert.False(t, ok)

	var zero Baggage
	assert.Equal(t, b, zero)
}

func TestPut_LeavesReceiverUnchanged(t *testing.T) {
	b := Empty().Put("user.name", "jack")
	b2 := b.Put("user.id", "321")

	_, ok := b.Get("user.id")
	assert.False(t, ok, "original baggage must not see the new key")

	v, ok := b2.Get("user.id")
	require.True(t, ok)
	assert.Equal(t, "321", v)

	// Both stay usable independently.
	b3 := b.Put("user.id", "999")
	v, _ = b2.Get("user.id")
	assert.Equal(t, "321", v)
	v, _ = b3.Get("user.id")
	assert.Equal(t, "999", v)
}

func TestPut_ExistingKeyUpdatedInPlace(t *testing.T) {
	b := New("a", "1", "b", "2", "c", "3")
	updated := b.Put("b", "20")

	assert.Equal(t, []Entry{
		{Key: "a", Value: "1"},
		{Key: "b", Value: "20"},
		{Key: "c", Value: "3"},
	}, updated.Entries())

	v, _ := b.Get("b")
	assert.Equal(t, "2", v)
}

func TestPut_NewKeyAppended(t *testing.T) {
	b := New("a", "1").Put("z", "26").Put("m", "13")
	keys := make([]string, 0, b.Len())
	for _, e := range b.Entries() {
		keys = append(keys, e.Key)
	}
	assert.Equal(t, []string{"a", "z", "m"}, keys)
}

func TestPut_ClearsMetadata(t *testing.T) {
	b := Empty().PutWithMetadata("k", "v", "ttl=60")
	e, ok := b.Entry("k")
	require.True(t, ok)
	assert.Equal(t, "ttl=60", e.Metadata)

	b2 := b.Put("k", "v2")
	e, _ = b2.Entry("k")
	assert.Equal(t, "", e.Metadata)

	e, _ = b.Entry("k")
	assert.Equal(t, "ttl=60", e.Metadata)
}

func TestEntries_ReturnsCopy(t *testing.T) {
	b := New("a", "1")
	entries := b.Entries()
	entries[0].Value = "mutated"

	v, _ := b.Get("a")
	assert.Equal(t, "1", v)
}

func TestRemove(t *testing.T) {
	b := New("a", "1", "b", "2", "c", "3")
	removed := b.Remove("b")

	assert.Equal(t, 2, removed.Len())
	_, ok := removed.Get("b")
	assert.False(t, ok)
	assert.Equal(t, 3, b.Len())

	assert.Equal(t, b, b.Remove("missing"))
}

func TestMerge(t *testing.T) {
	left := New("a", "1", "b", "2")
	right := New("b", "20", "c", "3")

	merged := left.Merge(right)
	assert.Equal(t, map[string]string{"a": "1", "b": "20", "c": "3"}, merged.ToMap())
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, left.ToMap())

	t.Run("empty is identity", func(t *testing.T) {
		assert.Equal(t, left, left.Merge(Empty()))
		assert.Equal(t, left, Empty().Merge(left))
	})
}

func TestNew_IgnoresDanglingKey(t *testing.T) {
	b := New("a", "1", "b")
	assert.Equal(t, 1, b.Len())
}

func TestFromMap_SortedKeys(t *testing.T) {
	b := FromMap(map[string]string{"user.name": "jack", "user.id": "321"})
	assert.Equal(t, []Entry{
		{Key: "user.id", Value: "321"},
		{Key: "user.name", Value: "jack"},
	}, b.Entries())
}

func TestString(t *testing.T) {
	b := New("user.name", "jack").PutWithMetadata("user.id", "321", "p=1")
	assert.Equal(t, "user.name=jack,user.id=321;p=1", b.String())
	assert.Equal(t, "", Empty().String())
}

func TestConcurrentReaders(t *testing.T) {
	b := New("a", "1", "b", "2")

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			derived := b.Put("c", "3")
			v, ok := derived.Get("a")
			assert.True(t, ok)
			assert.Equal(t, "1", v)
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, b.Len())
}
