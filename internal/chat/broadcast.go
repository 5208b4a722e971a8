// Package chat implements the fan-out broadcaster that carries chat lines from
// publishers to every live subscription.
package chat

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// DefaultBroadcastCapacity is the per-subscriber backlog.
const DefaultBroadcastCapacity = 10

// Broadcaster is a multi-producer, multi-consumer distribution point for chat
// lines. Every subscription owns a buffered channel of capacity lines; a
// subscription only observes lines published after it was created.
//
// A subscriber whose buffer is full when a line is published is evicted: its
// channel is closed and, once the lines already buffered are drained, Recv
// returns ErrLagged. Publish never blocks on a slow reader and memory per
// subscriber stays bounded.
type Broadcaster struct {
	mu       sync.Mutex
	subs     map[uint64]*Subscription
	nextID   uint64
	capacity int
	closed   bool
}

// NewBroadcaster creates a broadcaster with the given per-subscriber capacity.
// A capacity of zero or less uses DefaultBroadcastCapacity.
func NewBroadcaster(capacity int) *Broadcaster {
	if capacity <= 0 {
		capacity = DefaultBroadcastCapacity
	}
	return &Broadcaster{
		subs:     make(map[uint64]*Subscription),
		capacity: capacity,
	}
}

// Subscribe registers a new subscription. It fails with ErrSubscriptionClosed
// once the broadcaster is closed.
func (b *Broadcaster) Subscribe() (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrSubscriptionClosed
	}

	b.nextID++
	sub := &Subscription{
		id: b.nextID,
		ch: make(chan string, b.capacity),
		b:  b,
	}
	b.subs[sub.id] = sub
	return sub, nil
}

// Publish delivers line to every current subscriber and returns how many
// accepted it. Lagging subscribers are evicted instead of blocking.
func (b *Broadcaster) Publish(line string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	delivered := 0
	for id, sub := range b.subs {
		select {
		case sub.ch <- line:
			delivered++
		default:
			log.Warn().
				Str("component", "broadcast").
				Uint64("subscription", id).
				Int("capacity", b.capacity).
				Msg("Subscriber buffer full; closing lagging subscription")
			b.removeLocked(sub, ErrLagged)
		}
	}
	return delivered
}

// Len returns the number of live subscriptions.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every subscription with ErrSubscriptionClosed and rejects new
// ones. It is safe to call more than once.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		b.removeLocked(sub, ErrSubscriptionClosed)
	}
}

// removeLocked records why the subscription ended before closing its channel,
// so a receiver that observes the close also observes the reason.
func (b *Broadcaster) removeLocked(sub *Subscription, reason error) {
	if _, ok := b.subs[sub.id]; !ok {
		return
	}
	delete(b.subs, sub.id)
	sub.reason = reason
	close(sub.ch)
}

// Subscription is a receive handle on a Broadcaster.
type Subscription struct {
	id     uint64
	ch     chan string
	b      *Broadcaster
	reason error
}

// Recv returns the next line in publish order. It returns ctx.Err() when ctx
// is done, and ErrLagged or ErrSubscriptionClosed once the subscription has
// ended and its buffer is drained.
func (s *Subscription) Recv(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-s.ch:
		if !ok {
			return "", s.reason
		}
		return line, nil
	}
}

// Close detaches the subscription from its broadcaster. Lines still buffered
// can be drained; after that Recv returns ErrSubscriptionClosed.
func (s *Subscription) Close() {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	s.b.removeLocked(s, ErrSubscriptionClosed)
}
