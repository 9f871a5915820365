package cdp

import (
	"context"
	"encoding/json"
)

// Session scopes commands and event handlers to one attached target.
// It holds no state beyond the id; the remote side owns the session lifetime.
type Session struct {
	client *Client
	id     string
}

// Session returns a view of the client scoped to sessionID.
func (c *Client) Session(sessionID string) *Session {
	return &Session{client: c, id: sessionID}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Send sends a command within the session.
func (s *Session) Send(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return s.client.send(ctx, s.id, method, params)
}

// On registers a handler that only sees events carrying this session's id.
func (s *Session) On(method string, handler Handler) *Subscription {
	id := s.id
	return s.client.On(method, func(evt Event) {
		if evt.SessionID == id {
			handler(evt)
		}
	})
}
