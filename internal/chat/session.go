// Package chat drives one connection through name negotiation, message relay
// and teardown via the Session type.
package chat

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Notices sent to a peer whose requested name cannot be claimed.
const (
	NoticeNameTaken   = "Username already taken"
	NoticeNameInvalid = "Username is invalid"
)

// State is the lifecycle position of a Session. States only move forward.
type State int32

// Session states.
const (
	StateNegotiating State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNegotiating:
		return "negotiating"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var errRelayFinished = errors.New("relay finished")

// SessionOptions configures a Session.
type SessionOptions struct {
	// Addr is the remote address, used for the identity and for logging.
	Addr string
	// MaxNameLength bounds requested names in runes; zero uses
	// DefaultMaxNameLength.
	MaxNameLength int
	// Logger is the parent logger; nil uses the global zerolog logger.
	Logger *zerolog.Logger
}

// Session is the per-connection state machine: Negotiating, then Active with
// two relay loops, then Closed. Errors from the stream never leave the
// session; they only end it.
type Session struct {
	identity *Identity
	stream   Stream
	registry *Registry
	maxName  int
	log      zerolog.Logger

	// activeLog carries the claimed name; only the Run goroutine uses it.
	activeLog zerolog.Logger

	// mu orders inbound publishes against teardown; once relaying is cleared
	// no chat line goes out under the released name.
	mu       sync.Mutex
	relaying bool

	state        atomic.Int32
	closeOnce    sync.Once
	teardownOnce sync.Once
}

// NewSession prepares a session for stream. Nothing is read until Run.
func NewSession(stream Stream, registry *Registry, opts SessionOptions) *Session {
	identity := NewIdentity(opts.Addr)

	parent := log.Logger
	if opts.Logger != nil {
		parent = *opts.Logger
	}

	return &Session{
		identity: identity,
		stream:   stream,
		registry: registry,
		maxName:  opts.MaxNameLength,
		log: parent.With().
			Str("component", "session").
			Str("session_id", identity.ID().String()).
			Str("remote", opts.Addr).
			Logger(),
	}
}

// Serve runs a session for stream to completion. It is the entry point the
// acceptor calls once per accepted connection.
func Serve(ctx context.Context, stream Stream, registry *Registry, opts SessionOptions) {
	NewSession(stream, registry, opts).Run(ctx)
}

// Identity returns the identity of the connection.
func (s *Session) Identity() *Identity { return s.identity }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Run consumes the stream until the session ends. Cancelling ctx closes the
// stream and tears the session down. The stream is always closed on return.
func (s *Session) Run(ctx context.Context) {
	defer s.closeStream()
	stop := context.AfterFunc(ctx, s.closeStream)
	defer stop()

	name, err := s.negotiate()
	if err != nil {
		s.state.Store(int32(StateClosed))
		s.log.Debug().Err(err).Msg("Connection ended before a name was claimed")
		return
	}

	s.activeLog = s.log.With().Str("name", name).Logger()
	s.state.Store(int32(StateActive))
	s.active(ctx, name)
}

// negotiate reads frames until a name is claimed. Rejected names get a notice
// and another chance; only a stream failure or a closed registry ends it.
func (s *Session) negotiate() (string, error) {
	for {
		frame, err := s.stream.ReadFrame()
		if err != nil {
			return "", errors.Wrap(err, "read name")
		}
		if frame.Kind != FrameText {
			s.log.Debug().Stringer("kind", frame.Kind).Msg("Ignoring non-text frame during negotiation")
			continue
		}

		name := frame.Text
		if err := ValidateName(name, s.maxName); err != nil {
			s.log.Debug().Err(err).Msg("Rejected name")
			if err := s.stream.WriteText(NoticeNameInvalid); err != nil {
				return "", errors.Wrap(err, "write rejection")
			}
			continue
		}

		ok, err := s.registry.Claim(s.identity, name)
		if err != nil {
			return "", errors.Wrap(err, "claim name")
		}
		if ok {
			return name, nil
		}

		s.log.Debug().Str("requested", name).Msg("Name already taken")
		if err := s.stream.WriteText(NoticeNameTaken); err != nil {
			return "", errors.Wrap(err, "write rejection")
		}
	}
}

// active runs both relays until either ends, then tears down without waiting
// for the sibling to finish unwinding.
func (s *Session) active(ctx context.Context, name string) {
	if ctx.Err() != nil {
		s.teardown(name, false)
		return
	}

	sub, err := s.registry.Subscribe()
	if err != nil {
		s.activeLog.Warn().Err(err).Msg("Subscribe failed; releasing name")
		s.teardown(name, false)
		return
	}
	defer sub.Close()

	s.mu.Lock()
	s.relaying = true
	s.mu.Unlock()

	s.registry.Publish(joinedLine(name))
	s.activeLog.Info().Msg("Joined")

	g, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, s.closeStream)
	defer stop()

	g.Go(func() error { return relayEnded("outbound", s.outbound(gctx, sub)) })
	g.Go(func() error { return relayEnded("inbound", s.inbound(gctx, name)) })

	<-gctx.Done()
	sub.Close()
	s.teardown(name, true)

	s.logRelayExit(g.Wait())
}

// outbound writes every broadcast line to the peer.
func (s *Session) outbound(ctx context.Context, sub *Subscription) error {
	for {
		line, err := sub.Recv(ctx)
		if err != nil {
			return err
		}
		if err := s.stream.WriteText(line); err != nil {
			return err
		}
	}
}

// inbound publishes every text frame from the peer under its name.
func (s *Session) inbound(ctx context.Context, name string) error {
	for {
		frame, err := s.stream.ReadFrame()
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if frame.Kind != FrameText {
			continue
		}
		if !s.publishAsActive(chatLine(name, frame.Text)) {
			return nil
		}
	}
}

// publishAsActive publishes line unless teardown has started.
func (s *Session) publishAsActive(line string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.relaying {
		return false
	}
	s.registry.Publish(line)
	return true
}

// teardown announces the departure and releases the name exactly once.
func (s *Session) teardown(name string, announce bool) {
	s.teardownOnce.Do(func() {
		s.mu.Lock()
		s.relaying = false
		s.mu.Unlock()

		if announce {
			s.registry.Publish(leftLine(name))
			s.activeLog.Info().Msg("Left")
		}
		s.registry.Release(name)
		s.state.Store(int32(StateClosed))
	})
}

func (s *Session) closeStream() {
	s.closeOnce.Do(func() {
		if err := s.stream.Close(); err != nil {
			s.log.Debug().Err(err).Msg("Error closing stream")
		}
	})
}

func (s *Session) logRelayExit(err error) {
	switch {
	case err == nil:
	case errors.Is(err, ErrLagged):
		s.activeLog.Warn().Err(err).Msg("Disconnected lagging session")
	case errors.Is(err, errRelayFinished),
		errors.Is(err, ErrStreamClosed),
		errors.Is(err, ErrSubscriptionClosed),
		errors.Is(err, context.Canceled):
		s.activeLog.Debug().Err(err).Msg("Relay ended")
	default:
		s.activeLog.Warn().Err(err).Msg("Relay failed")
	}
}

func relayEnded(relay string, err error) error {
	if err == nil {
		return errors.Wrap(errRelayFinished, relay)
	}
	return errors.Wrapf(err, "%s relay", relay)
}

func joinedLine(name string) string { return name + " joined." }

func leftLine(name string) string { return name + " left." }

func chatLine(name, text string) string { return name + ": " + text }
