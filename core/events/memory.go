package events

import "sync"

// MemoryEmitter buffers emitted events in order of arrival. It backs the
// node's event feed and doubles as a capture target in tests.
type MemoryEmitter struct {
	mu     sync.RWMutex
	events []Event
	limit  int
}

// NewMemoryEmitter constructs a buffering emitter retaining at most limit
// events. A non-positive limit keeps every event.
func NewMemoryEmitter(limit int) *MemoryEmitter {
	return &MemoryEmitter{limit: limit}
}

// Emit implements the Emitter interface.
func (m *MemoryEmitter) Emit(evt Event) {
	if m == nil || evt == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	if m.limit > 0 && len(m.events) > m.limit {
		m.events = m.events[len(m.events)-m.limit:]
	}
}

// Events returns a copy of the buffered events in emission order.
func (m *MemoryEmitter) Events() []Event {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}
