package cron

import (
	"sync"
	"time"
)

// SystemEvent is a one-line note queued against a session, collapsed by
// contextKey so repeated notices about the same fact (e.g. "incident X
// still firing") don't pile up before the next heartbeat drains them.
type SystemEvent struct {
	SessionKey string
	ContextKey string
	Message    string
	At         time.Time
}

// EventQueue implements spec.md §4.7's system-event queue: keyed by
// (sessionKey, contextKey), duplicate contextKeys within the pending
// window collapse to the last message rather than accumulating.
type EventQueue struct {
	mu     sync.Mutex
	events map[string]map[string]SystemEvent // sessionKey -> contextKey -> event
}

func NewEventQueue() *EventQueue {
	return &EventQueue{events: make(map[string]map[string]SystemEvent)}
}

// Enqueue adds or replaces the pending event for (sessionKey, contextKey).
func (q *EventQueue) Enqueue(sessionKey, contextKey, message string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	bucket, ok := q.events[sessionKey]
	if !ok {
		bucket = make(map[string]SystemEvent)
		q.events[sessionKey] = bucket
	}
	bucket[contextKey] = SystemEvent{
		SessionKey: sessionKey,
		ContextKey: contextKey,
		Message:    message,
		At:         time.Now().UTC(),
	}
}

// Drain removes and returns all pending events for sessionKey, in no
// particular order (callers fold them into one synthesized prompt).
func (q *EventQueue) Drain(sessionKey string) []SystemEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	bucket, ok := q.events[sessionKey]
	if !ok || len(bucket) == 0 {
		return nil
	}
	out := make([]SystemEvent, 0, len(bucket))
	for _, ev := range bucket {
		out = append(out, ev)
	}
	delete(q.events, sessionKey)
	return out
}

// QueueSize reports how many pending events (one per distinct contextKey)
// sessionKey currently holds.
func (q *EventQueue) QueueSize(sessionKey string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events[sessionKey])
}
