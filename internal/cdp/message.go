package cdp

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Request is an outbound command frame.
type Request struct {
	ID        int64  `json:"id"`
	Method    string `json:"method"`
	Params    any    `json:"params"`
	SessionID string `json:"sessionId,omitempty"`
}

// Message is an inbound frame after decoding. It is either a *Response or an
// *Event; the dispatch loop switches on the concrete type.
type Message interface {
	isMessage()
}

// Response is the reply to a command.
type Response struct {
	ID        int64           `json:"id"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *Error          `json:"error,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
}

// Event is an unsolicited notification pushed by the remote side.
type Event struct {
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params"`
	SessionID string          `json:"sessionId,omitempty"`
}

func (*Response) isMessage() {}
func (*Event) isMessage()    {}

// Error is the error object of a failed command.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("cdp error %d: %s (%s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("cdp error %d: %s", e.Code, e.Message)
}

// errUnknownFormat is returned for frames that are neither replies nor events.
var errUnknownFormat = errors.New("unknown CDP message format")

// frame is the union of every field either message shape can carry.
// ID is a pointer so an explicit zero id is still recognised as a reply.
type frame struct {
	ID        *int64          `json:"id"`
	Method    string          `json:"method"`
	Result    json.RawMessage `json:"result"`
	Error     *Error          `json:"error"`
	Params    json.RawMessage `json:"params"`
	SessionID string          `json:"sessionId"`
}

// parseMessage decodes a raw frame. A frame carrying an id is a *Response,
// otherwise a frame carrying a method is an *Event. Anything else is an error.
func parseMessage(data []byte) (Message, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse CDP message: %w", err)
	}

	if f.ID != nil {
		return &Response{
			ID:        *f.ID,
			Result:    f.Result,
			Error:     f.Error,
			SessionID: f.SessionID,
		}, nil
	}

	if f.Method != "" {
		return &Event{
			Method:    f.Method,
			Params:    f.Params,
			SessionID: f.SessionID,
		}, nil
	}

	return nil, fmt.Errorf("%w: %s", errUnknownFormat, truncate(data, 200))
}

func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}
