// internal/engine/dedup.go
package engine

import "sync"

const defaultDedupLimit = 10000

// dedupSet is a bounded set of already-matched signal ids. When it grows past
// its limit it is cleared wholesale, trading exact dedup for bounded memory;
// signal TTLs are short enough that a rare re-match is harmless.
type dedupSet struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	limit int
}

func newDedupSet(limit int) *dedupSet {
	if limit <= 0 {
		limit = defaultDedupLimit
	}
	return &dedupSet{
		seen:  make(map[string]struct{}),
		limit: limit,
	}
}

// Contains reports whether id has been recorded since the last clear.
func (d *dedupSet) Contains(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.seen[id]
	return ok
}

// Add records an id, clearing the whole set first if it is at capacity.
func (d *dedupSet) Add(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.seen) >= d.limit {
		d.seen = make(map[string]struct{})
	}
	d.seen[id] = struct{}{}
}

// Len returns the current number of recorded ids.
func (d *dedupSet) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
