// Package buffer provides ring buffer implementation for outbound frame queuing.
package buffer

import (
	"sync"
)

type entry struct {
	frame  []byte
	pinned bool
}

// RingBuffer is a thread-safe circular queue of frames. At most capacity
// droppable frames are held; when that bound is reached the oldest droppable
// frame is discarded to make room for the new one. Pinned frames are never
// discarded and do not count against the capacity; the ring grows to hold
// them. Frames keep their push order regardless of class.
//
// This is used as the per-connection mailbox so that a slow reader loses stale
// cursor and typing frames instead of blocking broadcasters, while presence
// frames always arrive.
type RingBuffer struct {
	entries   []entry
	head      int
	size      int
	capacity  int
	droppable int
	dropped   uint64
	mu        sync.Mutex
}

// NewRingBuffer creates a new RingBuffer with the specified capacity.
// The capacity must be greater than 0; if not, it defaults to 1.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &RingBuffer{
		entries:  make([]entry, capacity),
		capacity: capacity,
	}
}

// Push appends a droppable frame to the tail. It returns true when the oldest
// droppable frame had to be discarded to make room.
func (rb *RingBuffer) Push(frame []byte) bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	evicted := false
	if rb.droppable == rb.capacity {
		rb.evictOldestDroppable()
		rb.dropped++
		evicted = true
	}
	rb.append(entry{frame: frame})
	rb.droppable++
	return evicted
}

// PushPinned appends a frame that is never discarded.
func (rb *RingBuffer) PushPinned(frame []byte) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.append(entry{frame: frame, pinned: true})
}

func (rb *RingBuffer) append(e entry) {
	if rb.size == len(rb.entries) {
		grown := make([]entry, 2*len(rb.entries))
		for i := 0; i < rb.size; i++ {
			grown[i] = rb.entries[(rb.head+i)%len(rb.entries)]
		}
		rb.entries = grown
		rb.head = 0
	}
	rb.entries[(rb.head+rb.size)%len(rb.entries)] = e
	rb.size++
}

// evictOldestDroppable removes the first droppable entry from the head and
// shifts the pinned entries queued before it up by one slot.
func (rb *RingBuffer) evictOldestDroppable() {
	n := len(rb.entries)
	for i := 0; i < rb.size; i++ {
		if rb.entries[(rb.head+i)%n].pinned {
			continue
		}
		for j := i; j > 0; j-- {
			rb.entries[(rb.head+j)%n] = rb.entries[(rb.head+j-1)%n]
		}
		rb.entries[rb.head] = entry{}
		rb.head = (rb.head + 1) % n
		rb.size--
		rb.droppable--
		return
	}
}

// DrainAll removes and returns every queued frame, oldest first.
func (rb *RingBuffer) DrainAll() [][]byte {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.size == 0 {
		return nil
	}

	n := len(rb.entries)
	result := make([][]byte, rb.size)
	for i := 0; i < rb.size; i++ {
		idx := (rb.head + i) % n
		result[i] = rb.entries[idx].frame
		rb.entries[idx] = entry{}
	}
	rb.head = 0
	rb.size = 0
	rb.droppable = 0
	return result
}

// Clear removes all frames from the buffer.
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	for i := range rb.entries {
		rb.entries[i] = entry{}
	}
	rb.head = 0
	rb.size = 0
	rb.droppable = 0
}

// Len returns the current number of queued frames.
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	return rb.size
}

// Dropped returns how many frames have been discarded on overflow.
func (rb *RingBuffer) Dropped() uint64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	return rb.dropped
}

// Cap returns the maximum number of droppable frames held at once.
func (rb *RingBuffer) Cap() int {
	return rb.capacity
}
