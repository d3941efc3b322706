package driver

// Buffer is a preallocated port buffer. Events must be added in
// non-decreasing time order; Reserve and Put never allocate.
type Buffer struct {
	events []Event
	arena  []byte
	used   int
	lost   int
}

// NewBuffer allocates a buffer for up to maxEvents events holding maxBytes
// bytes of payload in total.
func NewBuffer(maxEvents, maxBytes int) *Buffer {
	if maxEvents <= 0 {
		maxEvents = maxPortEvents
	}
	if maxBytes <= 0 {
		maxBytes = maxPortBytes
	}
	return &Buffer{
		events: make([]Event, 0, maxEvents),
		arena:  make([]byte, maxBytes),
	}
}

// Clear drops all events of the current period.
func (b *Buffer) Clear() {
	b.events = b.events[:0]
	b.used = 0
}

// Reserve appends an event of size bytes at offset and returns its payload
// for the caller to fill. It returns nil when the buffer is full or offset
// precedes the last event.
func (b *Buffer) Reserve(offset uint32, size int) []byte {
	if size <= 0 || len(b.events) == cap(b.events) || b.used+size > len(b.arena) {
		b.lost++
		return nil
	}
	if n := len(b.events); n > 0 && b.events[n-1].Time > offset {
		b.lost++
		return nil
	}
	data := b.arena[b.used : b.used+size : b.used+size]
	b.used += size
	b.events = append(b.events, Event{Time: offset, Data: data})
	return data
}

// Put copies payload into a new event at offset.
func (b *Buffer) Put(offset uint32, payload []byte) bool {
	dst := b.Reserve(offset, len(payload))
	if dst == nil {
		return false
	}
	copy(dst, payload)
	return true
}

// Events returns the events of the current period. The slice is only valid
// until the next Clear.
func (b *Buffer) Events() []Event {
	return b.events
}

// Len returns the number of events in the buffer.
func (b *Buffer) Len() int {
	return len(b.events)
}

// Lost returns how many reservations failed since the buffer was created.
func (b *Buffer) Lost() int {
	return b.lost
}
