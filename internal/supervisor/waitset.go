package supervisor

import (
	"context"
	"sync"
)

// Stop is a one-way cancellation token: written once (by a signal handler
// or by the shutdown path), read by any number of waiters.
type Stop struct {
	once sync.Once
	ch   chan struct{}
}

func NewStop() *Stop { return &Stop{ch: make(chan struct{})} }

// Trigger sets the token. Safe to call more than once.
func (s *Stop) Trigger() { s.once.Do(func() { close(s.ch) }) }

// Done returns a channel closed once the token is set.
func (s *Stop) Done() <-chan struct{} { return s.ch }

// Requested reports whether the token has been set.
func (s *Stop) Requested() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// WaitSet is a wait-any fan-in over named conditions, each represented by a
// channel that closes when the condition fires. Conditions that have already
// fired are picked up immediately; waiting on an empty set blocks on ctx.
type WaitSet struct {
	names []string
	chans []<-chan struct{}
}

func (w *WaitSet) Add(name string, ch <-chan struct{}) {
	w.names = append(w.names, name)
	w.chans = append(w.chans, ch)
}

func (w *WaitSet) Len() int { return len(w.names) }

// Wait blocks until the first condition fires and returns its name, or ""
// when ctx is cancelled first. Losing watchers are released when Wait
// returns, so the fan-in holds no goroutines past its own lifetime.
func (w *WaitSet) Wait(ctx context.Context) string {
	fired := make(chan string, len(w.chans))
	done := make(chan struct{})
	defer close(done)
	for i := range w.chans {
		go func(name string, ch <-chan struct{}) {
			select {
			case <-ch:
				fired <- name
			case <-done:
			case <-ctx.Done():
			}
		}(w.names[i], w.chans[i])
	}
	select {
	case name := <-fired:
		return name
	case <-ctx.Done():
		return ""
	}
}
