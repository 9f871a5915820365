// Package cdp provides a minimal Chrome DevTools Protocol client that
// multiplexes commands, replies and events for any number of attached
// sessions over a single WebSocket connection.
package cdp

import (
	"context"

	"github.com/coder/websocket"
)

// Conn is the transport a Client runs on.
// *websocket.Conn satisfies it; tests substitute in-memory connections.
type Conn interface {
	// Read blocks until the next frame arrives or ctx is done.
	Read(ctx context.Context) (websocket.MessageType, []byte, error)

	// Write sends a single frame.
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error

	// Close closes the connection with a status code and reason.
	Close(code websocket.StatusCode, reason string) error
}
