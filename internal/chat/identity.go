package chat

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// DefaultMaxNameLength bounds display names, in runes.
const DefaultMaxNameLength = 32

// Identity is the per-connection record: an immutable id assigned at
// acceptance plus a display name that is claimed at most once.
//
// The name is set from the session goroutine during negotiation, before the
// relay goroutines start, so reads from the relays need no locking.
type Identity struct {
	id    uuid.UUID
	addr  string
	name  string
	named bool
}

// NewIdentity returns an anonymous identity for the connection at addr.
func NewIdentity(addr string) *Identity {
	return &Identity{id: uuid.New(), addr: addr}
}

// ID returns the process-unique connection id.
func (i *Identity) ID() uuid.UUID { return i.id }

// Addr returns the remote address the identity was created for.
func (i *Identity) Addr() string { return i.addr }

// Name returns the claimed name and whether one has been claimed.
func (i *Identity) Name() (string, bool) { return i.name, i.named }

// Named reports whether the identity holds a name.
func (i *Identity) Named() bool { return i.named }

func (i *Identity) String() string {
	if i.named {
		return i.name + "@" + i.id.String()
	}
	return "anonymous@" + i.id.String()
}

// assign is reachable only through Registry.Claim.
func (i *Identity) assign(name string) error {
	if i.named {
		return errors.Wrapf(ErrAlreadyNamed, "identity %s holds %q", i.id, i.name)
	}
	i.name = name
	i.named = true
	return nil
}

// ValidateName rejects names that are blank, longer than maxLen runes or that
// contain control characters. A maxLen of zero or less uses
// DefaultMaxNameLength.
func ValidateName(name string, maxLen int) error {
	if maxLen <= 0 {
		maxLen = DefaultMaxNameLength
	}
	if strings.TrimSpace(name) == "" {
		return errors.Wrap(ErrInvalidName, "name is blank")
	}
	if !utf8.ValidString(name) {
		return errors.Wrap(ErrInvalidName, "name is not valid UTF-8")
	}
	if n := utf8.RuneCountInString(name); n > maxLen {
		return errors.Wrapf(ErrInvalidName, "name has %d runes, limit is %d", n, maxLen)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return errors.Wrap(ErrInvalidName, "name contains control characters")
		}
	}
	return nil
}
