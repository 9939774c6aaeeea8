package sensors

import (
	"sync"

	"github.com/google/uuid"
)

// subscriberBuffer is the per-subscriber channel capacity. Publishing never
// blocks: a subscriber that falls this far behind starts losing samples,
// which matches the best-effort delivery contract of the producers.
const subscriberBuffer = 16

// Bus is a publish/subscribe multiplexer for one sample stream. Producers
// publish into it; any number of consumers subscribe and unsubscribe
// independently. Within one bus, each subscriber observes samples in
// publication order.
type Bus[T any] struct {
	mu          sync.Mutex
	subscribers map[string]chan T
}

// NewBus creates an empty Bus.
func NewBus[T any]() *Bus[T] {
	return &Bus[T]{
		subscribers: make(map[string]chan T),
	}
}

// Subscribe creates a new channel for receiving samples. The returned id
// identifies the subscription when unsubscribing.
func (b *Bus[T]) Subscribe() (string, <-chan T) {
	id := uuid.NewString()
	ch := make(chan T, subscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscription. Samples published after Unsubscribe
// returns are no longer delivered to its channel; samples already buffered
// remain readable. Unknown ids are ignored.
func (b *Bus[T]) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, id)
}

// Publish delivers a sample to every current subscriber without blocking.
// Subscribers with a full buffer miss the sample.
func (b *Bus[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- v:
		default:
		}
	}
}

// Subscribers reports the current number of subscriptions.
func (b *Bus[T]) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
