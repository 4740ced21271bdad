// Package dedup suppresses reprocessing of redelivered webhook events.
//
// The messaging platform delivers events at least once, so the same event
// ID can arrive more than once within a short window. Guard keeps a bounded
// in-memory set of recently seen IDs; a hit means the event was already
// handled and must be dropped silently.
package dedup

import "sync"

// DefaultCapacity matches the platform's practical redelivery window.
const DefaultCapacity = 1000

// Guard is a bounded set of recently seen event IDs.
//
// When the set reaches capacity it is cleared in full before the next
// insert. This trades perfect suppression (a duplicate arriving right
// after a reset slips through) for constant memory and no eviction
// bookkeeping. A false negative causes a duplicate reply, not a failure.
//
// Guard is safe for concurrent use. It is process-local: behind multiple
// replicas, suppression is best effort only.
type Guard struct {
	mu       sync.Mutex
	capacity int
	seen     map[string]struct{}
}

// New creates a Guard holding at most capacity IDs.
// A non-positive capacity falls back to DefaultCapacity.
func New(capacity int) *Guard {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Guard{
		capacity: capacity,
		seen:     make(map[string]struct{}, capacity),
	}
}

// Seen reports whether the event ID has been marked since the last reset.
func (g *Guard) Seen(eventID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.seen[eventID]
	return ok
}

// Mark records the event ID. If the set is at capacity it is cleared
// first, then the ID is inserted.
func (g *Guard) Mark(eventID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.seen) >= g.capacity {
		g.seen = make(map[string]struct{}, g.capacity)
	}
	g.seen[eventID] = struct{}{}
}

// Len returns the number of IDs currently held.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}
