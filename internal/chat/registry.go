// Package chat coordinates name ownership and broadcast for the chat room via
// the Registry type.
package chat

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Registry is the process-wide shared state of the room: the set of claimed
// names and the broadcaster. It owns no per-connection I/O. Construct one per
// process with NewRegistry and hand the pointer to every session.
//
// A name is in the set if and only if exactly one active session holds it.
// Check-and-insert runs in a single critical section.
type Registry struct {
	mu     sync.Mutex
	names  map[string]struct{}
	closed bool
	hub    *Broadcaster
}

// NewRegistry creates an empty registry whose broadcaster buffers capacity
// lines per subscriber.
func NewRegistry(capacity int) *Registry {
	return &Registry{
		names: make(map[string]struct{}),
		hub:   NewBroadcaster(capacity),
	}
}

// TryClaim inserts name if no session holds it and reports whether the claim
// succeeded. The error is non-nil only when the registry no longer accepts
// claims.
func (r *Registry) TryClaim(name string) (bool, error) {
	claimed := false
	err := r.locked(func() error {
		if r.closed {
			return ErrRegistryClosed
		}
		if _, taken := r.names[name]; taken {
			return nil
		}
		r.names[name] = struct{}{}
		claimed = true
		return nil
	})
	return claimed, err
}

// Claim claims name for id. A claim that cannot be recorded on the identity is
// rolled back so the set never holds a name no session owns.
func (r *Registry) Claim(id *Identity, name string) (bool, error) {
	ok, err := r.TryClaim(name)
	if err != nil || !ok {
		return false, err
	}
	if err := id.assign(name); err != nil {
		r.Release(name)
		return false, err
	}
	return true, nil
}

// Release removes name. Releasing an absent name is a no-op, and Release keeps
// working after Close.
func (r *Registry) Release(name string) {
	if err := r.locked(func() error {
		delete(r.names, name)
		return nil
	}); err != nil {
		log.Error().Err(err).Str("component", "registry").Str("name", name).Msg("Release failed")
	}
}

// Has reports whether name is currently claimed.
func (r *Registry) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.names[name]
	return ok
}

// Names returns the claimed names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.names))
	for name := range r.names {
		names = append(names, name)
	}
	r.mu.Unlock()

	sort.Strings(names)
	return names
}

// Len returns the number of claimed names.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.names)
}

// Publish broadcasts line to every current subscriber and returns the number
// of receivers. With no subscribers the line is dropped.
func (r *Registry) Publish(line string) int {
	return r.hub.Publish(line)
}

// Subscribe returns a subscription that observes every line published after
// it returns.
func (r *Registry) Subscribe() (*Subscription, error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return nil, ErrRegistryClosed
	}

	sub, err := r.hub.Subscribe()
	if err != nil {
		return nil, errors.Wrap(ErrRegistryClosed, "broadcaster closed")
	}
	return sub, nil
}

// Subscribers returns the number of live subscriptions.
func (r *Registry) Subscribers() int {
	return r.hub.Len()
}

// Close stops accepting claims and subscriptions and ends every live
// subscription. Names still held can be released afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.hub.Close()
}

// Closed reports whether the registry rejects claims.
func (r *Registry) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// locked runs fn under the registry mutex. A panic inside fn leaves the name
// set in an unknown state, so the registry is marked closed and every later
// claim is rejected.
func (r *Registry) locked(fn func() error) (err error) {
	r.mu.Lock()
	defer func() {
		rec := recover()
		if rec != nil {
			r.closed = true
			err = errors.Wrap(ErrRegistryClosed, fmt.Sprintf("panic in critical section: %v", rec))
		}
		r.mu.Unlock()
		if rec != nil {
			log.Error().Err(err).Str("component", "registry").Msg("Registry poisoned; rejecting further claims")
			r.hub.Close()
		}
	}()
	return fn()
}
