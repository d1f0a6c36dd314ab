package playground

import (
	"sync"
	"time"
)

// EventType names what changed in a session.
type EventType string

const (
	EventCode       EventType = "code"
	EventHint       EventType = "hint"
	EventOutput     EventType = "output"
	EventTestResult EventType = "test_result"
	EventTestsDone  EventType = "tests_done"
	EventTestCases  EventType = "test_cases"
	EventComplexity EventType = "complexity"
	EventClosed     EventType = "closed"
)

// Event is one UI-visible change of a session.
type Event struct {
	SessionID string    `json:"sessionId"`
	Type      EventType `json:"type"`
	Data      any       `json:"data"`
	CreatedAt time.Time `json:"createdAt"`
}

// EventBus provides pub/sub for session events.
type EventBus struct {
	mu   sync.RWMutex
	subs map[string][]chan *Event
}

// NewEventBus creates a new EventBus.
func NewEventBus() *EventBus {
	return &EventBus{
		subs: make(map[string][]chan *Event),
	}
}

// Subscribe creates a channel that receives events for a session.
func (b *EventBus) Subscribe(sessionID string) chan *Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *Event, 64)
	b.subs[sessionID] = append(b.subs[sessionID], ch)
	return ch
}

// Unsubscribe removes a channel from the session's subscribers and closes it.
// Channels already closed by CloseSession are ignored.
func (b *EventBus) Unsubscribe(sessionID string, ch chan *Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[sessionID]
	for i, s := range subs {
		if s == ch {
			b.subs[sessionID] = append(subs[:i], subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// CloseSession closes and removes every subscriber of a session.
func (b *EventBus) CloseSession(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs[sessionID] {
		close(ch)
	}
	delete(b.subs, sessionID)
}

// Publish sends an event to all subscribers for a session.
func (b *EventBus) Publish(sessionID string, event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[sessionID] {
		select {
		case ch <- event:
		default:
			// Drop event if subscriber is too slow.
		}
	}
}
