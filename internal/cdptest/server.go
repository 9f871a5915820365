// Package cdptest provides an in-process debugging endpoint for tests: an
// HTTP discovery document plus a WebSocket that answers commands through
// registered handlers and can push events.
package cdptest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// DevToolsPath is the WebSocket path advertised by the discovery document.
const DevToolsPath = "/devtools/browser/cdptest"

// ErrNoReply makes a handler swallow the command instead of answering it.
var ErrNoReply = errors.New("cdptest: no reply")

// Call is a command received by the server.
type Call struct {
	ID        int64           `json:"id"`
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params"`
	SessionID string          `json:"sessionId,omitempty"`
}

// RemoteError is returned by handlers to answer with an error object.
type RemoteError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RemoteError) Error() string {
	return e.Message
}

// HandlerFunc answers a command. The returned value is marshalled as the
// reply's result; a nil value becomes an empty object.
type HandlerFunc func(Call) (any, error)

// Server is a fake debugging endpoint.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	handlers  map[string]HandlerFunc
	calls     []Call
	conns     map[*websocket.Conn]struct{}
	header    [2]string
	discovery string // overrides the discovery document when set

	connected chan struct{}
	connOnce  sync.Once
	wg        sync.WaitGroup
}

// NewServer starts a server. It is closed when the test ends.
func NewServer(t interface{ Cleanup(func()) }) *Server {
	s := &Server{
		handlers:  make(map[string]HandlerFunc),
		conns:     make(map[*websocket.Conn]struct{}),
		connected: make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/json/version", s.serveVersion)
	mux.HandleFunc(DevToolsPath, s.serveWebSocket)
	s.Server = httptest.NewServer(s.checkHeader(mux))

	t.Cleanup(s.Close)
	return s
}

// WebSocketURL returns the debugger URL of the server.
func (s *Server) WebSocketURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + DevToolsPath
}

// Handle registers fn as the answer to method.
func (s *Server) Handle(method string, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = fn
}

// RequireHeader rejects every HTTP request lacking the given header value.
func (s *Server) RequireHeader(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.header = [2]string{name, value}
}

// SetDiscoveryDocument replaces the /json/version body.
func (s *Server) SetDiscoveryDocument(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discovery = body
}

// Calls returns every command received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Emit pushes an event to every connected client. It waits briefly for the
// first client to connect.
func (s *Server) Emit(method string, params any, sessionID string) error {
	select {
	case <-s.connected:
	case <-time.After(5 * time.Second):
		return errors.New("cdptest: no client connected")
	}

	msg := map[string]any{"method": method, "params": params}
	if sessionID != "" {
		msg["sessionId"] = sessionID
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, c := range conns {
		if err := c.Write(ctx, websocket.MessageText, data); err != nil {
			return err
		}
	}
	return nil
}

// DropConnections closes every client connection from the server side.
func (s *Server) DropConnections() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close(websocket.StatusGoingAway, "server closing")
	}
}

// Close drops all connections and shuts the server down.
func (s *Server) Close() {
	s.DropConnections()
	s.wg.Wait()
	s.Server.Close()
}

func (s *Server) checkHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		name, value := s.header[0], s.header[1]
		s.mu.Unlock()

		if name != "" && r.Header.Get(name) != value {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) serveVersion(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	body := s.discovery
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if body != "" {
		w.Write([]byte(body))
		return
	}
	json.NewEncoder(w).Encode(map[string]string{
		"Browser":              "cdptest/1.0",
		"Protocol-Version":     "1.3",
		"webSocketDebuggerUrl": s.WebSocketURL(),
	})
}

func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(128 << 20)

	s.wg.Add(1)
	defer s.wg.Done()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	s.connOnce.Do(func() { close(s.connected) })

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.CloseNow()
	}()

	ctx := context.Background()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var call Call
		if err := json.Unmarshal(data, &call); err != nil {
			continue
		}

		s.mu.Lock()
		s.calls = append(s.calls, call)
		fn := s.handlers[call.Method]
		s.mu.Unlock()

		resp, ok := answer(call, fn)
		if !ok {
			continue
		}
		if err := conn.Write(ctx, websocket.MessageText, resp); err != nil {
			return
		}
	}
}

// answer builds the reply frame for call. It reports false when no reply
// should be sent.
func answer(call Call, fn HandlerFunc) ([]byte, bool) {
	msg := map[string]any{"id": call.ID}
	if call.SessionID != "" {
		msg["sessionId"] = call.SessionID
	}

	if fn == nil {
		msg["error"] = &RemoteError{Code: -32601, Message: "'" + call.Method + "' wasn't found"}
	} else {
		result, err := fn(call)
		var remote *RemoteError
		switch {
		case errors.Is(err, ErrNoReply):
			return nil, false
		case errors.As(err, &remote):
			msg["error"] = remote
		case err != nil:
			msg["error"] = &RemoteError{Code: -32000, Message: err.Error()}
		case result == nil:
			msg["result"] = struct{}{}
		default:
			msg["result"] = result
		}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, false
	}
	return data, true
}
