// Package server constructs and starts the radon HTTP service with helpers
// that apply sensible production defaults.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// CreateServer returns an http.Server for addr and handler with header, read,
// write and idle timeouts set. Hijacked WebSocket connections are not subject
// to them.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// StartServer starts the HTTP server and begins listening for connections.
// It returns an error if the server fails to start.
func StartServer(server *http.Server) error {
	log.Info().Str("component", "http").Str("addr", server.Addr).Msg("Server listening")
	return server.ListenAndServe()
}

// ShutdownServer gracefully shuts down the HTTP server without interrupting active connections.
// It waits for active connections to close or until the timeout is reached.
func ShutdownServer(server *http.Server, timeout time.Duration) error {
	log.Info().Str("component", "http").Msg("Shutting down HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Str("component", "http").Msg("HTTP server shutdown error")
		return err
	}

	log.Info().Str("component", "http").Msg("HTTP server shutdown completed")
	return nil
}

// Shutdown stops the HTTP server (when given), ends every chat session and
// waits for their teardown, then closes the registry. It returns
// context.DeadlineExceeded if sessions are still unwinding after timeout.
func (s *Server) Shutdown(httpServer *http.Server, timeout time.Duration) error {
	if httpServer != nil {
		if err := ShutdownServer(httpServer, timeout); err != nil {
			return err
		}
	}

	s.log.Info().Int("online", s.registry.Len()).Msg("Ending chat sessions...")

	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	// The registry closes last so departing sessions can still announce.
	defer s.registry.Close()

	select {
	case <-done:
		s.log.Info().Msg("Chat shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		s.log.Warn().Msg("Chat shutdown timeout reached, some sessions may still be running")
		return context.DeadlineExceeded
	}
}
