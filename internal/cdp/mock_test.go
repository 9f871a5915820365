package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// mockConn delivers queued frames and records written ones.
type mockConn struct {
	mu      sync.Mutex
	readCh  chan []byte
	written [][]byte
	closed  bool
	closeCh chan struct{}
}

func newMockConn(messages ...[]byte) *mockConn {
	m := &mockConn{
		readCh:  make(chan []byte, len(messages)+10),
		closeCh: make(chan struct{}),
	}
	for _, msg := range messages {
		m.readCh <- msg
	}
	return m
}

func (m *mockConn) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	select {
	case msg, ok := <-m.readCh:
		if !ok {
			return 0, nil, errors.New("connection reset by peer")
		}
		return websocket.MessageText, msg, nil
	case <-m.closeCh:
		return 0, nil, errors.New("connection closed")
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (m *mockConn) Write(ctx context.Context, typ websocket.MessageType, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("connection closed")
	}
	m.written = append(m.written, data)
	return nil
}

func (m *mockConn) Close(code websocket.StatusCode, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.closeCh)
	}
	return nil
}

func (m *mockConn) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// echoMockConn answers every request with the configured result or error.
type echoMockConn struct {
	mockConn
	result   json.RawMessage
	cdpError *Error
}

func newEchoMockConn(result string) *echoMockConn {
	return &echoMockConn{
		mockConn: mockConn{readCh: make(chan []byte, 100), closeCh: make(chan struct{})},
		result:   json.RawMessage(result),
	}
}

func newEchoMockConnWithError(code int, message string) *echoMockConn {
	m := newEchoMockConn("")
	m.cdpError = &Error{Code: code, Message: message}
	return m
}

func (m *echoMockConn) Write(ctx context.Context, typ websocket.MessageType, data []byte) error {
	if err := m.mockConn.Write(ctx, typ, data); err != nil {
		return err
	}

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}

	resp := Response{ID: req.ID, Error: m.cdpError}
	if m.cdpError == nil {
		resp.Result = m.result
	}
	respData, _ := json.Marshal(resp)
	m.readCh <- respData
	return nil
}

// pipeConn hands written requests to the test, which answers them explicitly
// and in any order.
type pipeConn struct {
	mockConn
	out chan Request
}

func newPipeConn() *pipeConn {
	return &pipeConn{
		mockConn: mockConn{readCh: make(chan []byte, 100), closeCh: make(chan struct{})},
		out:      make(chan Request, 100),
	}
}

func (p *pipeConn) Write(ctx context.Context, typ websocket.MessageType, data []byte) error {
	if err := p.mockConn.Write(ctx, typ, data); err != nil {
		return err
	}
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}
	p.out <- req
	return nil
}

// next returns the next request written by the client.
func (p *pipeConn) next(t *testing.T) Request {
	t.Helper()
	select {
	case req := <-p.out:
		return req
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for request")
		return Request{}
	}
}

func (p *pipeConn) push(frame string) {
	p.readCh <- []byte(frame)
}

func (p *pipeConn) reply(id int64, result string) {
	p.push(fmt.Sprintf(`{"id":%d,"result":%s}`, id, result))
}

func (p *pipeConn) event(method, params, sessionID string) {
	if sessionID == "" {
		p.push(fmt.Sprintf(`{"method":%q,"params":%s}`, method, params))
		return
	}
	p.push(fmt.Sprintf(`{"method":%q,"params":%s,"sessionId":%q}`, method, params, sessionID))
}

// drop simulates the remote side going away.
func (p *pipeConn) drop() {
	close(p.readCh)
}

// sendAsync runs fn in a goroutine and returns a channel with its outcome.
type sendOutcome struct {
	result json.RawMessage
	err    error
}

func sendAsync(fn func() (json.RawMessage, error)) <-chan sendOutcome {
	ch := make(chan sendOutcome, 1)
	go func() {
		result, err := fn()
		ch <- sendOutcome{result: result, err: err}
	}()
	return ch
}

func waitOutcome(t *testing.T, ch <-chan sendOutcome) sendOutcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for send to return")
		return sendOutcome{}
	}
}
