package util

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestGateMaximum(t *testing.T) {
	// create 10 goroutines trying to enter a gate that can only hold 5
	g := NewGate(5)
	ctx, cancel := context.WithCancel(context.Background())
	var nenter, nerr int64
	done := make(chan struct{}, 10)
	for i := 0; i < 10; i++ {
		go func() {
			if g.Enter(ctx) {
				atomic.AddInt64(&nenter, 1)
			} else {
				atomic.AddInt64(&nerr, 1)
			}
			done <- struct{}{}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	if n := atomic.LoadInt64(&nenter); n != 5 {
		t.Errorf("Received %d enters, expected %d", n, 5)
	}

	// call leave a few times and see what happens
	g.Leave()
	g.Leave()
	time.Sleep(10 * time.Millisecond)
	if n := atomic.LoadInt64(&nenter); n != 7 {
		t.Errorf("Received %d enters, expected %d", n, 7)
	}

	// the three still waiting should give up
	cancel()
	for i := 0; i < 10; i++ {
		<-done
	}
	if n := atomic.LoadInt64(&nenter); n != 7 {
		t.Errorf("Received %d enters, expected %d", n, 7)
	}
	if n := atomic.LoadInt64(&nerr); n != 3 {
		t.Errorf("Received %d errors, expected %d", n, 3)
	}
}
