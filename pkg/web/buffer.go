package web

import (
	"sync"
)

// DefaultBufferSize is the default number of events kept for late-joining dashboard clients.
const DefaultBufferSize = 500

// Buffer is a thread-safe in-memory ring of recent events, indexed by event type.
// history is lost on restart.
type Buffer struct {
	mu       sync.RWMutex
	events   []Event
	maxSize  int
	writePos int // next position to write (wraps around)
	count    int // total events written (for full detection)

	typeIndex map[EventType][]int // positions of events by type, oldest first
}

// NewBuffer creates a new ring buffer with the specified max size.
// if maxSize is 0, DefaultBufferSize is used.
func NewBuffer(maxSize int) *Buffer {
	if maxSize <= 0 {
		maxSize = DefaultBufferSize
	}
	return &Buffer{
		events:    make([]Event, maxSize),
		maxSize:   maxSize,
		typeIndex: make(map[EventType][]int),
	}
}

// Add appends an event to the buffer, overwriting oldest if full.
func (b *Buffer) Add(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count >= b.maxSize {
		b.dropIndex(b.writePos)
	}

	b.events[b.writePos] = e
	b.typeIndex[e.Type] = append(b.typeIndex[e.Type], b.writePos)

	b.writePos = (b.writePos + 1) % b.maxSize
	b.count++
}

// dropIndex removes the index entry for the position about to be overwritten.
// the overwritten event is always the oldest of its type, so it sits at the head of its index.
// must be called with lock held.
func (b *Buffer) dropIndex(pos int) {
	typ := b.events[pos].Type
	indices := b.typeIndex[typ]
	if len(indices) > 0 && indices[0] == pos {
		indices = indices[1:]
	}
	if len(indices) == 0 {
		delete(b.typeIndex, typ)
		return
	}
	b.typeIndex[typ] = indices
}

// All returns all events in chronological order.
func (b *Buffer) All() []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.count == 0 {
		return nil
	}

	if b.count <= b.maxSize {
		result := make([]Event, b.count)
		copy(result, b.events[:b.count])
		return result
	}

	// buffer wrapped, read from writePos to end, then start to writePos
	result := make([]Event, b.maxSize)
	tailLen := b.maxSize - b.writePos
	copy(result[:tailLen], b.events[b.writePos:])
	copy(result[tailLen:], b.events[:b.writePos])
	return result
}

// ByType returns all events of the given type in chronological order.
func (b *Buffer) ByType(typ EventType) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	indices := b.typeIndex[typ]
	if len(indices) == 0 {
		return nil
	}

	result := make([]Event, len(indices))
	for i, idx := range indices {
		result[i] = b.events[idx]
	}
	return result
}

// Last returns the most recent event of the given type.
func (b *Buffer) Last(typ EventType) (Event, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	indices := b.typeIndex[typ]
	if len(indices) == 0 {
		return Event{}, false
	}
	return b.events[indices[len(indices)-1]], true
}

// Count returns the total number of events currently in the buffer.
func (b *Buffer) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return min(b.count, b.maxSize)
}

// Clear removes all events from the buffer.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = make([]Event, b.maxSize)
	b.writePos = 0
	b.count = 0
	b.typeIndex = make(map[EventType][]int)
}
