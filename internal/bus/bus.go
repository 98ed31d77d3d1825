package bus

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// ---------------------------------------------------------------------------
// Scan Event Bus — in-process, synchronous publish/subscribe
// Handlers for a topic run in subscription order; delivery is in-memory only.
// ---------------------------------------------------------------------------

// Handler processes a published event. Handlers run synchronously on the
// publisher's goroutine, so they must not block.
type Handler func(event Event)

// UnsubscribeFunc removes exactly one registration. Idempotent.
type UnsubscribeFunc func()

type subscription struct {
	id      uint64
	topic   Topic
	handler Handler
}

// Bus is an in-process event bus.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Topic][]*subscription
	nextID uint64
	closed bool

	published atomic.Int64
	delivered atomic.Int64
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[Topic][]*subscription)}
}

// Subscribe registers a handler for a topic. The returned UnsubscribeFunc
// removes exactly that registration and may be called more than once.
func (b *Bus) Subscribe(topic Topic, handler Handler) UnsubscribeFunc {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &subscription{id: b.nextID, topic: topic, handler: handler}
	b.subs[topic] = append(b.subs[topic], sub)

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(sub) })
	}
}

func (b *Bus) remove(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[sub.topic]
	for i, s := range list {
		if s.id == sub.id {
			b.subs[sub.topic] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Publish delivers the event to every handler subscribed to its topic,
// in subscription order, on the caller's goroutine.
func (b *Bus) Publish(event Event) {
	topic := event.EventTopic()

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	handlers := make([]Handler, 0, len(b.subs[topic]))
	for _, s := range b.subs[topic] {
		handlers = append(handlers, s.handler)
	}
	b.mu.RUnlock()

	b.published.Add(1)
	for _, h := range handlers {
		h(event)
		b.delivered.Add(1)
	}

	log.Debug().
		Str("topic", string(topic)).
		Int("handlers", len(handlers)).
		Msg("bus: published")
}

// SubscriberCount returns the number of live registrations for a topic.
func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Close drops all subscriptions and rejects further publishes.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[Topic][]*subscription)
}

// Stats returns cumulative publish/delivery counts.
func (b *Bus) Stats() (published, delivered int64) {
	return b.published.Load(), b.delivered.Load()
}
