package cdp

import (
	"sync"
)

// Handler receives events for the method it was registered for.
type Handler func(Event)

// Subscription identifies one registered handler.
type Subscription struct {
	bus    *eventBus
	method string
	id     uint64
}

// Method returns the event method the subscription listens to.
func (s *Subscription) Method() string {
	return s.method
}

// Unsubscribe removes the handler. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.remove(s.method, s.id)
}

// eventBus maps event methods to sets of handlers.
type eventBus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[string]map[uint64]Handler
}

func newEventBus() *eventBus {
	return &eventBus{handlers: make(map[string]map[uint64]Handler)}
}

func (b *eventBus) add(method string, h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	set, ok := b.handlers[method]
	if !ok {
		set = make(map[uint64]Handler)
		b.handlers[method] = set
	}
	set[b.nextID] = h
	return &Subscription{bus: b, method: method, id: b.nextID}
}

func (b *eventBus) remove(method string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.handlers[method]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(b.handlers, method)
	}
}

// snapshot copies the handlers for method so they can be invoked without
// holding the lock while on/off calls continue concurrently.
func (b *eventBus) snapshot(method string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	set := b.handlers[method]
	if len(set) == 0 {
		return nil
	}
	out := make([]Handler, 0, len(set))
	for _, h := range set {
		out = append(out, h)
	}
	return out
}

// count returns the number of handlers registered for method.
func (b *eventBus) count(method string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[method])
}

// eventQueue is an unbounded FIFO drained by the event pump goroutine, so
// the read loop never waits on handler execution.
type eventQueue struct {
	mu     sync.Mutex
	items  []*Event
	notify chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{notify: make(chan struct{}, 1)}
}

func (q *eventQueue) push(evt *Event) {
	q.mu.Lock()
	q.items = append(q.items, evt)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// drain returns and clears every queued event.
func (q *eventQueue) drain() []*Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}
