// Package server exposes HTTP handlers, including WebSocket upgrades, health
// and status checks, and the built-in chat page.
package server

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
)

//go:embed static/chat.html
var chatPage []byte

// WebSocketHandler handles WebSocket upgrade requests. It validates that the
// request uses the GET method, upgrades the HTTP connection and runs the chat
// session for it until the connection ends.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	if !s.track() {
		http.Error(w, "Server is shutting down.", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.wg.Done()
		s.log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("WebSocket upgrade failed")
		return
	}

	s.serve(conn, r.RemoteAddr)
}

// HealthHandler is the liveness probe. It writes a fixed plain text line for
// any method and does not inspect the room.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "radon chat server is running!")
}

// StatusHandler reports who is in the room.
func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed.", http.StatusMethodNotAllowed)
		return
	}

	resp := StatusResponse{
		Online:      s.registry.Len(),
		Names:       s.registry.Names(),
		Subscribers: s.registry.Subscribers(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Warn().Err(err).Msg("Error writing status response")
	}
}

// ChatPageHandler serves the browser chat client. The first line typed is
// sent as the requested name.
func ChatPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(chatPage)
}
