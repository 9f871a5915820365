package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout is the default timeout for CDP commands.
const DefaultTimeout = 30 * time.Second

// Client is a CDP protocol client.
type Client struct {
	conn    Conn
	writeMu sync.Mutex
	log     logrus.FieldLogger
	timeout time.Duration

	calls  *correlator
	bus    *eventBus
	events *eventQueue

	// closed is set once by Close or by the read loop on transport failure
	closed   atomic.Bool
	closeMu  sync.Mutex
	closeErr error

	// stop tells the event pump to exit
	stop chan struct{}

	// readDone and pumpDone signal that the goroutines have exited
	readDone chan struct{}
	pumpDone chan struct{}
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for debug tracing.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithCommandTimeout sets the timeout applied to every command. A caller's
// context deadline that expires earlier still wins. Zero disables it.
func WithCommandTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// NewClient creates a new CDP client with the given connection and starts
// reading from it.
func NewClient(conn Conn, opts ...Option) *Client {
	c := &Client{
		conn:     conn,
		log:      discardLogger(),
		timeout:  DefaultTimeout,
		calls:    newCorrelator(),
		bus:      newEventBus(),
		events:   newEventQueue(),
		stop:     make(chan struct{}),
		readDone: make(chan struct{}),
		pumpDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.readLoop()
	go c.pumpEvents()
	return c
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Send sends a CDP command and waits for the response.
// Uses the client's command timeout.
func (c *Client) Send(method string, params any) (json.RawMessage, error) {
	return c.send(context.Background(), "", method, params)
}

// SendContext sends a CDP command with a context for cancellation.
func (c *Client) SendContext(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return c.send(ctx, "", method, params)
}

// SendToSession sends a command scoped to an attached session.
func (c *Client) SendToSession(ctx context.Context, sessionID, method string, params any) (json.RawMessage, error) {
	return c.send(ctx, sessionID, method, params)
}

// SendWithTimeout sends a command that fails with a *TimeoutError if no
// reply arrives within timeout. The timeout replaces the client's command
// timeout for this call. An empty sessionID targets the browser.
func (c *Client) SendWithTimeout(sessionID, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	return c.call(context.Background(), sessionID, method, params, timeout)
}

// SendOptional sends a command whose failure is not an error for the caller,
// such as enabling a domain that may already be enabled. It reports whether
// the command succeeded.
func (c *Client) SendOptional(ctx context.Context, sessionID, method string, params any) bool {
	if _, err := c.send(ctx, sessionID, method, params); err != nil {
		c.log.WithError(err).WithField("method", method).Debug("optional command failed")
		return false
	}
	return true
}

func (c *Client) send(ctx context.Context, sessionID, method string, params any) (json.RawMessage, error) {
	return c.call(ctx, sessionID, method, params, c.timeout)
}

// call sends one command and waits for its reply. A positive timeout is
// armed on top of ctx; whichever deadline comes first ends the wait.
func (c *Client) call(ctx context.Context, sessionID, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	var waited time.Duration
	if deadline, ok := ctx.Deadline(); ok {
		waited = time.Until(deadline)
	}

	if params == nil {
		params = struct{}{}
	}

	id, ch, err := c.calls.register(method)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(Request{
		ID:        id,
		Method:    method,
		Params:    params,
		SessionID: sessionID,
	})
	if err != nil {
		c.calls.abandon(id)
		return nil, fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	c.log.WithFields(logrus.Fields{
		"id":        id,
		"method":    method,
		"sessionId": sessionID,
	}).Debug("send")

	c.writeMu.Lock()
	err = c.conn.Write(ctx, websocket.MessageText, data)
	c.writeMu.Unlock()
	if err != nil {
		if c.calls.abandon(id) {
			return nil, fmt.Errorf("failed to send %s: %w", method, err)
		}
		return settle(method, <-ch)
	}

	select {
	case r := <-ch:
		return settle(method, r)
	case <-ctx.Done():
		// A reply that already claimed the entry wins over the deadline.
		if !c.calls.abandon(id) {
			return settle(method, <-ch)
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &TimeoutError{Method: method, Timeout: waited.Round(time.Millisecond)}
		}
		return nil, fmt.Errorf("%s: %w", method, ctx.Err())
	}
}

func settle(method string, r reply) (json.RawMessage, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.resp.Error != nil {
		return nil, fmt.Errorf("%s: %w", method, r.resp.Error)
	}
	return r.resp.Result, nil
}

// On registers a handler for events with the given method. Multiple handlers
// may be registered for the same method; each is invoked once per event.
func (c *Client) On(method string, handler Handler) *Subscription {
	return c.bus.add(method, handler)
}

// Off removes a handler registered with On.
func (c *Client) Off(sub *Subscription) {
	sub.Unsubscribe()
}

// Close closes the client connection, fails every outstanding command with
// ErrClosed and stops the read loop. It must not be called from an event
// handler, since it waits for handlers to return.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		<-c.readDone
		<-c.pumpDone
		return nil
	}

	err := c.conn.Close(websocket.StatusNormalClosure, "client closing")

	// Wait for read loop and event pump to exit
	<-c.readDone
	<-c.pumpDone

	return err
}

// Done is closed once the read loop has exited.
func (c *Client) Done() <-chan struct{} {
	return c.readDone
}

// Err returns the transport error that closed the client, if any.
// It is nil after a local Close.
func (c *Client) Err() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return c.closeErr
}

// readLoop reads frames from the connection and dispatches them.
func (c *Client) readLoop() {
	defer close(c.readDone)

	ctx := context.Background()
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			cause := ErrClosed
			if !c.closed.Swap(true) {
				c.closeMu.Lock()
				c.closeErr = err
				c.closeMu.Unlock()
				cause = fmt.Errorf("%w: %v", ErrClosed, err)
				c.log.WithError(err).Debug("connection lost")
				_ = c.conn.Close(websocket.StatusInternalError, "read failed")
			}
			c.calls.close(cause)
			close(c.stop)
			return
		}
		c.dispatch(data)
	}
}

// dispatch routes one frame to the correlator or the event queue.
func (c *Client) dispatch(data []byte) {
	msg, err := parseMessage(data)
	if err != nil {
		c.log.WithError(err).Debug("dropping malformed frame")
		return
	}

	switch m := msg.(type) {
	case *Response:
		if !c.calls.resolve(m) {
			c.log.WithField("id", m.ID).Debug("dropping reply with no pending command")
		}
	case *Event:
		c.events.push(m)
	}
}

// pumpEvents delivers queued events to handlers in arrival order.
func (c *Client) pumpEvents() {
	defer close(c.pumpDone)

	for {
		select {
		case <-c.events.notify:
			for _, evt := range c.events.drain() {
				c.emit(evt)
			}
		case <-c.stop:
			return
		}
	}
}

func (c *Client) emit(evt *Event) {
	for _, h := range c.bus.snapshot(evt.Method) {
		c.invoke(h, evt)
	}
}

// invoke runs one handler, containing any panic so the remaining handlers
// and later events are still delivered.
func (c *Client) invoke(h Handler, evt *Event) {
	defer func() {
		if r := recover(); r != nil {
			c.log.WithFields(logrus.Fields{
				"method": evt.Method,
				"panic":  r,
			}).Warn("event handler panicked")
		}
	}()
	h(*evt)
}
