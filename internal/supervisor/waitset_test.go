package supervisor

import (
	"context"
	"runtime"
	"testing"
	"time"
)

func TestStopTriggerOnce(t *testing.T) {
	s := NewStop()
	if s.Requested() {
		t.Fatal("fresh token already requested")
	}
	s.Trigger()
	s.Trigger() // must not panic on double close
	if !s.Requested() {
		t.Fatal("token not set after Trigger")
	}
	select {
	case <-s.Done():
	default:
		t.Fatal("Done channel not closed")
	}
}

func TestWaitSetReturnsFirstFired(t *testing.T) {
	a := make(chan struct{})
	b := make(chan struct{})
	var ws WaitSet
	ws.Add("a", a)
	ws.Add("b", b)
	if ws.Len() != 2 {
		t.Fatalf("len: %d", ws.Len())
	}

	close(b)
	if got := ws.Wait(context.Background()); got != "b" {
		t.Fatalf("want b, got %q", got)
	}
}

func TestWaitSetReleasesLosingWatchers(t *testing.T) {
	never := make(chan struct{})
	winner := make(chan struct{})
	var ws WaitSet
	ws.Add("never-a", never)
	ws.Add("never-b", never)
	ws.Add("winner", winner)

	before := runtime.NumGoroutine()
	close(winner)
	// Background context: the losers must be released by Wait itself.
	if got := ws.Wait(context.Background()); got != "winner" {
		t.Fatalf("want winner, got %q", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= before {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("watcher goroutines lingered: before=%d now=%d", before, runtime.NumGoroutine())
}

func TestWaitSetContextCancel(t *testing.T) {
	ch := make(chan struct{})
	var ws WaitSet
	ws.Add("never", ch)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if got := ws.Wait(ctx); got != "" {
		t.Fatalf("want empty cause on cancel, got %q", got)
	}
}
