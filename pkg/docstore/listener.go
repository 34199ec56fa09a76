package docstore

import "sync"

// Listener delivers values on C until Stop is called. C holds at most one
// pending value: a newer value replaces one the receiver has not read yet,
// so a slow receiver always sees the latest state.
type Listener[T any] struct {
	C <-chan T

	mu      sync.Mutex
	c       chan T
	stopped bool
	onStop  func()
}

// NewListener returns a listener; onStop, if non-nil, runs once on Stop.
func NewListener[T any](onStop func()) *Listener[T] {
	c := make(chan T, 1)
	return &Listener[T]{C: c, c: c, onStop: onStop}
}

// Send delivers v, dropping any value still pending. It never blocks and is
// a no-op after Stop.
func (l *Listener[T]) Send(v T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	select {
	case <-l.c:
	default:
	}
	l.c <- v
}

// Stop closes C and releases the listener. It is safe to call more than once.
func (l *Listener[T]) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	close(l.c)
	onStop := l.onStop
	l.mu.Unlock()

	if onStop != nil {
		onStop()
	}
}

// Stopped reports whether Stop has been called.
func (l *Listener[T]) Stopped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped
}
