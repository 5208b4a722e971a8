// Package server wires HTTP handlers into a ServeMux for the radon
// application via routing helpers.
package server

import "net/http"

// Routes configures and returns an HTTP ServeMux with all application routes.
// The WebSocket endpoint is mounted only when the configuration enables it.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", ChatPageHandler)
	mux.HandleFunc("/health", HealthHandler)
	mux.HandleFunc("/status", s.StatusHandler)
	if s.cfg.WebSocketEnabled {
		mux.HandleFunc("/ws", s.WebSocketHandler)
	}
	return mux
}
