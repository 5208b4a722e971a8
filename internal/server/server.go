// Package server owns the chat registry for the process and accepts WebSocket
// connections into chat sessions.
package server

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Tyrowin/radon/internal/chat"
)

// Server is the acceptor in front of the chat core. It holds the single
// registry shared by every session and tracks live sessions for shutdown.
type Server struct {
	cfg      Config
	registry *chat.Registry
	upgrader websocket.Upgrader
	origins  originPolicy
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// New creates a Server from cfg. A nil cfg uses defaults.
func New(cfg *Config) *Server {
	if cfg == nil {
		cfg = NewConfig()
	}
	sanitized := cfg.Sanitize()
	logger := log.With().Str("component", "server").Logger()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		cfg:      sanitized,
		registry: chat.NewRegistry(sanitized.BroadcastCapacity),
		origins:  newOriginPolicy(sanitized.AllowedOrigins, logger),
		log:      logger,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.checkOrigin,
	}
	return s
}

// Registry returns the registry shared by all sessions of this server.
func (s *Server) Registry() *chat.Registry {
	return s.registry
}

// Config returns the sanitized configuration in use.
func (s *Server) Config() Config {
	return s.cfg
}

// track registers a session with the shutdown WaitGroup. It fails once
// shutdown has started.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.wg.Add(1)
	return true
}

// serve runs one chat session over conn in the calling goroutine.
func (s *Server) serve(conn *websocket.Conn, addr string) {
	defer s.wg.Done()

	connLog := s.log.With().Str("remote", addr).Logger()
	stream := newWSStream(conn, addr, s.cfg, connLog)
	chat.Serve(s.ctx, stream, s.registry, chat.SessionOptions{
		Addr:          addr,
		MaxNameLength: s.cfg.MaxNameLength,
		Logger:        &s.log,
	})
}
