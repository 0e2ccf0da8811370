package baggage

import (
	"sort"
	"strings"
)

// Entry is a single baggage member.
type Entry struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Metadata string `json:"metadata,omitempty"`
}

// Baggage is an immutable ordered mapping of keys to entries.
// The zero value is empty and ready to use.
type Baggage struct {
	entries []Entry
}

// Empty returns a Baggage with no entries.
func Empty() Baggage {
	return Baggage{}
}

// New builds a Baggage from alternating key, value arguments.
// A trailing key without a value is ignored.
func New(pairs ...string) Baggage {
	b := Empty()
	for i := 0; i+1 < len(pairs); i += 2 {
		b = b.Put(pairs[i], pairs[i+1])
	}
	return b
}

// FromMap builds a Baggage from m. Keys are added in sorted order so the
// result does not depend on map iteration.
func FromMap(m map[string]string) Baggage {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, Entry{Key: k, Value: m[k]})
	}
	return Baggage{entries: entries}
}

// Put returns a copy of b with key set to value. Any metadata previously
// attached to key is cleared.
func (b Baggage) Put(key, value string) Baggage {
	return b.put(Entry{Key: key, Value: value})
}

// PutWithMetadata returns a copy of b with key set to value and metadata.
func (b Baggage) PutWithMetadata(key, value, metadata string) Baggage {
	return b.put(Entry{Key: key, Value: value, Metadata: metadata})
}

func (b Baggage) put(e Entry) Baggage {
	entries := make([]Entry, len(b.entries), len(b.entries)+1)
	copy(entries, b.entries)

	if i := b.index(e.Key); i >= 0 {
		entries[i] = e
	} else {
		entries = append(entries, e)
	}
	return Baggage{entries: entries}
}

// Remove returns a copy of b without key. If key is absent b is returned as is.
func (b Baggage) Remove(key string) Baggage {
	i := b.index(key)
	if i < 0 {
		return b
	}
	entries := make([]Entry, 0, len(b.entries)-1)
	entries = append(entries, b.entries[:i]...)
	entries = append(entries, b.entries[i+1:]...)
	return Baggage{entries: entries}
}

// Merge returns b with every entry of other put on top of it, in other's order.
// Merging with Empty() in either position yields the other operand.
func (b Baggage) Merge(other Baggage) Baggage {
	if len(other.entries) == 0 {
		return b
	}
	if len(b.entries) == 0 {
		return other
	}
	out := b
	for _, e := range other.entries {
		out = out.put(e)
	}
	return out
}

// Get returns the value stored for key.
func (b Baggage) Get(key string) (string, bool) {
	if i := b.index(key); i >= 0 {
		return b.entries[i].Value, true
	}
	return "", false
}

// Entry returns the full entry stored for key, including metadata.
func (b Baggage) Entry(key string) (Entry, bool) {
	if i := b.index(key); i >= 0 {
		return b.entries[i], true
	}
	return Entry{}, false
}

// Entries returns a copy of the entries in insertion order.
func (b Baggage) Entries() []Entry {
	if len(b.entries) == 0 {
		return nil
	}
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Len returns the number of entries.
func (b Baggage) Len() int {
	return len(b.entries)
}

// ToMap returns the key to value mapping. Metadata is not included.
func (b Baggage) ToMap() map[string]string {
	m := make(map[string]string, len(b.entries))
	for _, e := range b.entries {
		m[e.Key] = e.Value
	}
	return m
}

// String renders b as comma separated key=value members, with metadata
// appended after a semicolon.
func (b Baggage) String() string {
	var sb strings.Builder
	for i, e := range b.entries {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(e.Key)
		sb.WriteByte('=')
		sb.WriteString(e.Value)
		if e.Metadata != "" {
			sb.WriteByte(';')
			sb.WriteString(e.Metadata)
		}
	}
	return sb.String()
}

func (b Baggage) index(key string) int {
	for i, e := range b.entries {
		if e.Key == key {
			return i
		}
	}
	return -1
}
