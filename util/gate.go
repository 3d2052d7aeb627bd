package util

import "context"

// A Gate limits concurrency. Every gate has a maximum number of goroutines to
// allow through at a time. Goroutines enter the gate by calling Enter(), and
// signal that they are done by calling Leave().
type Gate chan struct{}

// NewGate returns a Gate which accepts at most n entries at a time.
func NewGate(n int) Gate {
	return Gate(make(chan struct{}, n))
}

// Enter blocks the calling goroutine until there are less than n goroutines
// inside the gate, or until ctx is done. It returns false if ctx ended before
// the goroutine could enter, in which case Leave must not be called.
// It is safe to call this from multiple goroutines.
func (g Gate) Enter(ctx context.Context) bool {
	select {
	case g <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

// Leave marks a goroutine outside the critical section. Each successful call
// to Enter must be balanced with a call to Leave.
func (g Gate) Leave() {
	<-g
}
