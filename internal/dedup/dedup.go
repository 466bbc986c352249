// Package dedup provides a lookup-or-insert table for content-addressed
// stores.
//
// Keys are digests, so distinct contents may share a key. Every key holds a
// short list of values and the caller's match function picks the one whose
// content is equal. Concurrent callers inserting the same content observe a
// single creation and receive the same value.
package dedup

import "sync"

// Stats contains table statistics.
type Stats struct {
	// Len is the current number of values.
	Len int
	// Hits is the number of lookups that found an existing value.
	Hits uint64
	// Misses is the number of lookups that created a value.
	Misses uint64
	// Collisions is the number of values stored under a key that already
	// held a different value.
	Collisions uint64
}

// Table maps digest keys to values.
//
// Table is safe for concurrent use.
// Table must not be copied after creation (has mutex).
type Table[K comparable, V any] struct {
	mu         sync.Mutex
	entries    map[K][]V
	n          int
	hits       uint64
	misses     uint64
	collisions uint64
}

// New creates an empty table.
func New[K comparable, V any]() *Table[K, V] {
	return &Table[K, V]{entries: make(map[K][]V)}
}

// GetOrCreate returns the first value under key that match accepts, or calls
// create and stores its result under key.
//
// match and create run under the table lock, so at most one creation happens
// per content. A match or create error is returned and nothing is stored.
// found reports whether the value already existed.
func (t *Table[K, V]) GetOrCreate(key K, match func(V) (bool, error), create func() (V, error)) (v V, found bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero V
	bucket := t.entries[key]
	for _, c := range bucket {
		ok, err := match(c)
		if err != nil {
			return zero, false, err
		}
		if ok {
			t.hits++
			return c, true, nil
		}
	}

	v, err = create()
	if err != nil {
		return zero, false, err
	}

	if len(bucket) > 0 {
		t.collisions++
	}
	t.misses++
	t.n++
	t.entries[key] = append(bucket, v)
	return v, false, nil
}

// Len returns the number of values.
func (t *Table[K, V]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.n
}

// Stats returns table statistics.
func (t *Table[K, V]) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Stats{
		Len:        t.n,
		Hits:       t.hits,
		Misses:     t.misses,
		Collisions: t.collisions,
	}
}
