package cdp

import (
	"sync"
)

// reply is what a pending command is settled with.
type reply struct {
	resp *Response
	err  error
}

// pendingCall is a command awaiting its reply.
type pendingCall struct {
	method string
	ch     chan reply // buffered, receives exactly one value
}

// correlator allocates command ids and matches replies to waiting callers.
// An entry is settled by whoever removes it from the map first; every other
// settle attempt for that id is a no-op.
type correlator struct {
	mu      sync.Mutex
	nextID  int64
	pending map[int64]*pendingCall
	closed  error
}

func newCorrelator() *correlator {
	return &correlator{pending: make(map[int64]*pendingCall)}
}

// register allocates a fresh id and records a pending call for it.
// It fails with the close cause once the correlator has been shut down.
func (c *correlator) register(method string) (int64, <-chan reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed != nil {
		return 0, nil, c.closed
	}

	c.nextID++
	id := c.nextID
	call := &pendingCall{method: method, ch: make(chan reply, 1)}
	c.pending[id] = call
	return id, call.ch, nil
}

// resolve settles the pending call for resp.ID. It returns false when no
// such call exists, i.e. the reply is late or unsolicited.
func (c *correlator) resolve(resp *Response) bool {
	call := c.take(resp.ID)
	if call == nil {
		return false
	}
	call.ch <- reply{resp: resp}
	return true
}

// abandon removes the pending call for id without settling it. It returns
// false if the call was already settled.
func (c *correlator) abandon(id int64) bool {
	return c.take(id) != nil
}

func (c *correlator) take(id int64) *pendingCall {
	c.mu.Lock()
	defer c.mu.Unlock()

	call, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	return call
}

// close fails every pending call with err and rejects future registrations.
func (c *correlator) close(err error) {
	c.mu.Lock()
	if c.closed != nil {
		c.mu.Unlock()
		return
	}
	c.closed = err
	calls := c.pending
	c.pending = make(map[int64]*pendingCall)
	c.mu.Unlock()

	for _, call := range calls {
		call.ch <- reply{err: err}
	}
}

// len returns the number of outstanding calls.
func (c *correlator) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
