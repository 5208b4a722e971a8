// Package server implements the HTTP and WebSocket front end of the radon chat room.
//
// The implementation is organized into specialized files for configuration,
// origin checks, the WebSocket stream adapter, routing, and HTTP handlers. Chat
// semantics live in package chat; this package only accepts connections and
// hands each one to a chat session together with the shared registry.
package server
