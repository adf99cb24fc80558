// SPDX-License-Identifier: MIT
package audio

import (
	"sync"
	"testing"
	"time"
)

func chunkWithID(id int) *Chunk {
	return &Chunk{
		Samples:    []float32{float32(id)},
		SampleRate: 44100,
		Channels:   1,
		Timestamp:  time.Now(),
	}
}

func TestRingPushPop(t *testing.T) {
	r := NewRing(4)

	if !r.Empty() {
		t.Error("new ring should be empty")
	}
	if r.Cap() != 4 {
		t.Errorf("Cap() = %d, want 4", r.Cap())
	}

	if !r.Push(chunkWithID(1)) {
		t.Error("push into empty ring reported eviction")
	}
	c, ok := r.Pop()
	if !ok || c.Samples[0] != 1 {
		t.Errorf("Pop() = %v, %v; want chunk 1", c, ok)
	}
	if _, ok := r.Pop(); ok {
		t.Error("Pop on empty ring should report no chunk")
	}
}

func TestRingEvictOldest(t *testing.T) {
	const capacity = 4
	const extra = 3
	r := NewRing(capacity)

	// Push capacity+extra chunks; the first `extra` must be evicted.
	for i := range capacity + extra {
		inserted := r.Push(chunkWithID(i))
		if i < capacity && !inserted {
			t.Errorf("push %d reported eviction before ring was full", i)
		}
		if i >= capacity && inserted {
			t.Errorf("push %d into full ring did not report eviction", i)
		}
	}

	if r.Len() != capacity {
		t.Fatalf("Len() = %d, want %d", r.Len(), capacity)
	}

	// Draining yields exactly the last `capacity` chunks in FIFO order.
	for i := range capacity {
		c, ok := r.Pop()
		if !ok {
			t.Fatalf("Pop %d returned no chunk", i)
		}
		want := float32(extra + i)
		if c.Samples[0] != want {
			t.Errorf("Pop %d = chunk %.0f, want %.0f", i, c.Samples[0], want)
		}
	}
	if !r.Empty() {
		t.Error("ring should be empty after draining")
	}
}

func TestRingConcurrentPushPop(t *testing.T) {
	r := NewRing(8)
	const pushes = 10000

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := range pushes {
			r.Push(chunkWithID(i))
		}
	}()

	var popped int
	go func() {
		defer wg.Done()
		for range pushes {
			if _, ok := r.Pop(); ok {
				popped++
			}
		}
	}()

	wg.Wait()

	// Drain whatever is left; ordering across the race is not asserted,
	// only that nothing corrupted the ring.
	for {
		if _, ok := r.Pop(); !ok {
			break
		}
		popped++
	}
	if popped > pushes {
		t.Errorf("popped %d chunks from %d pushes", popped, pushes)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d after full drain", r.Len())
	}
}

func TestRingPushHotPath(t *testing.T) {
	r := NewRing(4)
	c := chunkWithID(0)

	allocs := testing.AllocsPerRun(100, func() {
		r.Push(c)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Push hot path, got %.1f", allocs)
	}
}

func BenchmarkRingPushPop(b *testing.B) {
	r := NewRing(8)
	c := chunkWithID(0)

	b.ReportAllocs()
	for b.Loop() {
		r.Push(c)
		r.Pop()
	}
}
