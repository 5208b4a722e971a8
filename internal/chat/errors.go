// Package chat defines the sentinel errors shared by the registry, the
// broadcaster and sessions.
package chat

import "github.com/pkg/errors"

var (
	// ErrNameTaken reports that another session currently holds the name.
	ErrNameTaken = errors.New("name already taken")
	// ErrInvalidName reports a name that can never be claimed.
	ErrInvalidName = errors.New("invalid name")
	// ErrAlreadyNamed reports a second naming attempt on one identity.
	ErrAlreadyNamed = errors.New("identity already named")
	// ErrRegistryClosed is returned by registry operations after Close or after a
	// critical section panicked.
	ErrRegistryClosed = errors.New("registry closed")
	// ErrLagged closes a subscription whose buffer overflowed.
	ErrLagged = errors.New("subscription lagged behind broadcast")
	// ErrSubscriptionClosed is returned by Recv once the subscription or the
	// broadcaster has been closed.
	ErrSubscriptionClosed = errors.New("subscription closed")
	// ErrStreamClosed is the root of every peer-side stream termination.
	ErrStreamClosed = errors.New("stream closed")
)
