package history

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/msle237-lees/homelab-monitor/internal/store"
)

type fakeSink struct {
	events   []Event
	sendErr  error
	closeErr error
	closed   bool
}

func (s *fakeSink) Send(_ context.Context, e Event) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.events = append(s.events, e)
	return nil
}

func (s *fakeSink) Close() error {
	s.closed = true
	return s.closeErr
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleEvent() Event {
	return Event{
		Type:       EventReading,
		OccurredAt: time.Now().UTC(),
		Reading:    store.Reading{MachineID: "m1", CPUCores: 4},
	}
}

func TestMultiFansOut(t *testing.T) {
	a, b := &fakeSink{}, &fakeSink{}
	m := NewMulti(discardLogger(), a, b)
	if m.Len() != 2 {
		t.Fatalf("len: %d", m.Len())
	}

	m.Send(context.Background(), sampleEvent())
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("fan-out: a=%d b=%d", len(a.events), len(b.events))
	}
}

func TestMultiSwallowsSinkErrors(t *testing.T) {
	bad := &fakeSink{sendErr: errors.New("connection refused")}
	good := &fakeSink{}
	m := NewMulti(discardLogger(), bad, good)

	// Must not panic and must still deliver to the healthy sink.
	m.Send(context.Background(), sampleEvent())
	if len(good.events) != 1 {
		t.Fatalf("healthy sink starved: %d", len(good.events))
	}
}

func TestMultiClose(t *testing.T) {
	a, b := &fakeSink{}, &fakeSink{}
	m := NewMulti(discardLogger(), a, b)
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !a.closed || !b.closed {
		t.Fatal("sinks not closed")
	}
}

func TestMultiCloseJoinsErrors(t *testing.T) {
	broken := errors.New("flush failed")
	a := &fakeSink{closeErr: broken}
	b := &fakeSink{}
	m := NewMulti(discardLogger(), a, b)

	err := m.Close()
	if !errors.Is(err, broken) {
		t.Fatalf("close error not joined: %v", err)
	}
	if !b.closed {
		t.Fatal("later sink skipped after close error")
	}
}

func TestEmptyMultiIsUsable(t *testing.T) {
	m := NewMulti(nil)
	m.Send(context.Background(), sampleEvent())
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("len: %d", m.Len())
	}
}
