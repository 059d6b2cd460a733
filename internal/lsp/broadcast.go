package lsp

import (
	"sync"
	"sync/atomic"
)

// DefaultEventBuffer is the per-subscriber event buffer size.
const DefaultEventBuffer = 1000

// Subscription is one subscriber's view of the broadcaster. Events arrive on
// Events() in send order; events published while the buffer is full are
// dropped for this subscriber only.
type Subscription struct {
	id      int
	ch      chan Event
	b       *Broadcaster
	dropped atomic.Uint64
}

// Events returns the subscriber's channel. It is closed when the
// subscription is canceled or the broadcaster closes.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Dropped returns how many events were dropped for this subscriber.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Cancel removes the subscription and closes its channel. Safe to call more
// than once.
func (s *Subscription) Cancel() {
	s.b.remove(s.id)
}

// Broadcaster fans lifecycle events out to any number of subscribers. Sends
// never block: a subscriber that falls behind its buffer silently loses
// events. Sending with zero subscribers is a no-op.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[int]*Subscription
	nextID int
	buffer int
	closed bool
}

// NewBroadcaster creates a broadcaster with the given per-subscriber buffer
// size. Non-positive sizes fall back to DefaultEventBuffer.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	return &Broadcaster{
		subs:   make(map[int]*Subscription),
		buffer: buffer,
	}
}

// Subscribe registers a new subscriber. Subscribing to a closed broadcaster
// returns a subscription whose channel is already closed.
func (b *Broadcaster) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription{
		id: b.nextID,
		ch: make(chan Event, b.buffer),
		b:  b,
	}
	b.nextID++

	if b.closed {
		close(sub.ch)
		return sub
	}

	b.subs[sub.id] = sub
	return sub
}

// Send delivers an event to every subscriber without blocking.
func (b *Broadcaster) Send(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			// Subscriber buffer full, drop for this subscriber.
			sub.dropped.Add(1)
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscriber channel. Further sends are no-ops.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
}

// remove drops one subscription; Send holds the read lock, so closing the
// channel here cannot race a send.
func (b *Broadcaster) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	close(sub.ch)
}
