// Package server defines shared response types and utility helpers that are
// reused across handlers and the WebSocket stream adapter.
package server

import "strings"

// StatusResponse is the JSON body of the status endpoint.
type StatusResponse struct {
	Online      int      `json:"online"`
	Names       []string `json:"names"`
	Subscribers int      `json:"subscribers"`
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset by peer")
}
