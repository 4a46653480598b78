package bus

import (
	"context"
	"sync"
)

// MessageBus is the in-process implementation of EventPublisher and
// MessageRouter: buffered channels carry inbound/outbound chat traffic
// between channel adapters and the agent runtime, and a subscriber map
// fans broadcast events out to every registered listener (dashboards,
// cache-invalidation hooks, streaming relays).
type MessageBus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage

	mu       sync.RWMutex
	handlers map[string]EventHandler
}

const defaultQueueSize = 256

// New creates a MessageBus with a default-sized inbound/outbound queue.
func New() *MessageBus {
	return NewWithQueueSize(defaultQueueSize)
}

func NewWithQueueSize(size int) *MessageBus {
	if size <= 0 {
		size = defaultQueueSize
	}
	return &MessageBus{
		inbound:  make(chan InboundMessage, size),
		outbound: make(chan OutboundMessage, size),
		handlers: make(map[string]EventHandler),
	}
}

// Subscribe registers a broadcast event handler under id, replacing any
// existing handler registered with the same id.
func (b *MessageBus) Subscribe(id string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[id] = handler
}

func (b *MessageBus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, id)
}

// Broadcast fans the event out to every subscriber synchronously. Handlers
// run on the caller's goroutine, matching the teacher's in-process event
// dispatch — callers that need async delivery spawn their own goroutine.
func (b *MessageBus) Broadcast(event Event) {
	b.mu.RLock()
	handlers := make([]EventHandler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}

// PublishInbound enqueues a message from a channel adapter for the agent
// runtime to consume. It never blocks: if the queue is saturated it drops
// the oldest queued message to make room for this one —
// channel adapters should size their own backpressure upstream of this call.
func (b *MessageBus) PublishInbound(msg InboundMessage) {
	select {
	case b.inbound <- msg:
	default:
		// Queue full: drop oldest to make room rather than stall the
		// producing channel adapter.
		select {
		case <-b.inbound:
		default:
		}
		select {
		case b.inbound <- msg:
		default:
		}
	}
}

func (b *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	select {
	case msg := <-b.inbound:
		return msg, true
	case <-ctx.Done():
		return InboundMessage{}, false
	}
}

func (b *MessageBus) PublishOutbound(msg OutboundMessage) {
	select {
	case b.outbound <- msg:
	default:
		select {
		case <-b.outbound:
		default:
		}
		select {
		case b.outbound <- msg:
		default:
		}
	}
}

func (b *MessageBus) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	select {
	case msg := <-b.outbound:
		return msg, true
	case <-ctx.Done():
		return OutboundMessage{}, false
	}
}
