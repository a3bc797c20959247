// Package event provides the pub/sub bus that fans context changes
// out to connection broadcasters, the watcher, and anything else that
// cares, using watermill.
package event

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/ctxhub-ai/ctxhub/pkg/types"
)

// Subscriber is a function that receives context events.
type Subscriber func(evt types.ContextEvent)

type subscriberEntry struct {
	id uint64
	fn Subscriber
}

// Bus manages pub/sub for context events. It wraps watermill's
// gochannel for infrastructure while keeping direct typed callbacks,
// so subscribers never round-trip through serialization. A Bus is
// always injected; there is no package-level instance.
type Bus struct {
	mu sync.RWMutex

	pubsub *gochannel.GoChannel

	subscribers map[types.EventType][]subscriberEntry
	global      []subscriberEntry

	nextID uint64
	closed bool
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: 100,
				Persistent:          false,
			},
			watermill.NopLogger{},
		),
		subscribers: make(map[types.EventType][]subscriberEntry),
	}
}

// New builds a ContextEvent stamped with the current time.
func New(t types.EventType, sourceID string, sourceType types.SourceType, data map[string]any) types.ContextEvent {
	return types.ContextEvent{
		Type:       t,
		SourceID:   sourceID,
		SourceType: sourceType,
		Timestamp:  time.Now().UTC(),
		Data:       data,
	}
}

func (b *Bus) newID() uint64 {
	return atomic.AddUint64(&b.nextID, 1)
}

// Subscribe registers fn for one event type and returns an
// unsubscribe function.
func (b *Bus) Subscribe(eventType types.EventType, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := b.newID()
	b.subscribers[eventType] = append(b.subscribers[eventType], subscriberEntry{id: id, fn: fn})

	return func() {
		b.unsubscribe(eventType, id)
	}
}

// SubscribeAll registers fn for every event type and returns an
// unsubscribe function.
func (b *Bus) SubscribeAll(fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := b.newID()
	b.global = append(b.global, subscriberEntry{id: id, fn: fn})

	return func() {
		b.unsubscribeGlobal(id)
	}
}

func (b *Bus) unsubscribe(eventType types.EventType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[eventType]
	for i, entry := range subs {
		if entry.id == id {
			b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

func (b *Bus) unsubscribeGlobal(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, entry := range b.global {
		if entry.id == id {
			b.global = append(b.global[:i], b.global[i+1:]...)
			break
		}
	}
}

// collect gathers the subscribers for an event under the read lock.
func (b *Bus) collect(t types.EventType) []Subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil
	}

	subs := make([]Subscriber, 0, len(b.subscribers[t])+len(b.global))
	for _, entry := range b.subscribers[t] {
		subs = append(subs, entry.fn)
	}
	for _, entry := range b.global {
		subs = append(subs, entry.fn)
	}
	return subs
}

// Publish delivers evt to every subscriber, each in its own
// goroutine. Publishers never block on slow subscribers.
func (b *Bus) Publish(evt types.ContextEvent) {
	for _, sub := range b.collect(evt.Type) {
		go sub(evt)
	}
}

// PublishSync delivers evt to every subscriber in the calling
// goroutine before returning.
func (b *Bus) PublishSync(evt types.ContextEvent) {
	for _, sub := range b.collect(evt.Type) {
		sub(evt)
	}
}

// Close drops all subscribers and shuts down the underlying pubsub.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.subscribers = make(map[types.EventType][]subscriberEntry)
	b.global = nil
	b.mu.Unlock()

	return b.pubsub.Close()
}

// PubSub exposes the watermill GoChannel for middleware or a future
// distributed backend.
func (b *Bus) PubSub() *gochannel.GoChannel {
	return b.pubsub
}
