// Package baggage provides an immutable, ordered set of propagated key-value
// annotations.
//
// A Baggage value is never modified in place. Every mutating method returns a
// new Baggage and leaves the receiver untouched, so a Baggage can be shared
// freely between goroutines and held by any number of contexts.
//
// # Ordering
//
// Entries keep insertion order. Putting a key that already exists replaces the
// value in place; putting a new key appends it at the end. Entries therefore
// iterates deterministically for a given Baggage value.
//
// # Usage
//
//	b := baggage.Empty().
//	    Put("user.name", "jack").
//	    Put("user.id", "321")
//
//	restored := b.Put("activity_restored", "true")
//	v, ok := b.Get("activity_restored") // "", false: b is unchanged
//
// Metadata is carried in-process only. Wire propagators may drop it.
package baggage
