// SPDX-License-Identifier: MIT
package audio

import "sync"

// Ring is a fixed-capacity chunk queue between the hardware callback and the
// frame loop: one producer, one consumer. When full, Push evicts the oldest
// chunk first. Eviction is backpressure policy, not an error; fresh audio
// always wins over buffered audio.
type Ring struct {
	mu    sync.Mutex
	slots []*Chunk
	head  int // index of next write position
	size  int // number of occupied slots
}

// NewRing creates a ring with the given number of chunk slots.
func NewRing(capacity int) *Ring {
	return &Ring{slots: make([]*Chunk, capacity)}
}

// Push inserts a chunk, evicting the oldest when full. It returns false if
// an eviction happened. Push never blocks and never fails; the only work
// under the lock is pointer bookkeeping.
func (r *Ring) Push(c *Chunk) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := r.size == len(r.slots)
	r.slots[r.head] = c
	r.head = (r.head + 1) % len(r.slots)
	if !evicted {
		r.size++
	}
	return !evicted
}

// Pop removes and returns the oldest chunk, or (nil, false) when empty.
// Pop never blocks.
func (r *Ring) Pop() (*Chunk, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == 0 {
		return nil, false
	}
	tail := (r.head - r.size + len(r.slots)) % len(r.slots)
	c := r.slots[tail]
	r.slots[tail] = nil
	r.size--
	return c, true
}

// Len returns the number of buffered chunks. Advisory only: the value can be
// stale by the time the caller acts on it.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Cap returns the fixed slot count.
func (r *Ring) Cap() int {
	return len(r.slots)
}

// Full reports whether the next Push would evict. Advisory only.
func (r *Ring) Full() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size == len(r.slots)
}

// Empty reports whether a Pop would return nothing. Advisory only.
func (r *Ring) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size == 0
}
