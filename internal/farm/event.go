package farm

import "sync"

// resetEvent is a manual-reset event: Set releases every current and future
// waiter until Reset arms it again. The farmer resets it at the top of each
// round and sets it when new items drop or a stop is requested.
type resetEvent struct {
	mu sync.Mutex
	ch chan struct{}
}

func newResetEvent() *resetEvent {
	return &resetEvent{ch: make(chan struct{})}
}

// Set signals the event. Idempotent while set.
func (e *resetEvent) Set() {
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-e.ch:
	default:
		close(e.ch)
	}
}

// Reset re-arms the event if it was set.
func (e *resetEvent) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-e.ch:
		e.ch = make(chan struct{})
	default:
	}
}

// Done returns a channel closed while the event is set.
func (e *resetEvent) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ch
}
