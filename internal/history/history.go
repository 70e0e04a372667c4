package history

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/msle237-lees/homelab-monitor/internal/store"
)

// EventType defines the kind of telemetry event.
type EventType string

const (
	EventReading EventType = "reading"
	EventDelete  EventType = "delete"
)

// Event is one telemetry event exported to external analytics systems.
type Event struct {
	Type       EventType     `json:"type"`
	OccurredAt time.Time     `json:"occurred_at"`
	Reading    store.Reading `json:"reading"`
}

// Sink is a destination for telemetry events. Implementations must be safe
// for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}

// Multi fans one event out to several sinks. Send errors are logged and
// swallowed: history export is best-effort and never fails an API request.
type Multi struct {
	sinks  []Sink
	logger *slog.Logger
}

func NewMulti(logger *slog.Logger, sinks ...Sink) *Multi {
	if logger == nil {
		logger = slog.Default()
	}
	return &Multi{sinks: sinks, logger: logger}
}

func (m *Multi) Send(ctx context.Context, e Event) {
	for _, s := range m.sinks {
		if err := s.Send(ctx, e); err != nil {
			m.logger.Warn("history sink send failed", "type", string(e.Type), "error", err)
		}
	}
}

// Close closes every attached sink and joins their errors.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len reports the number of attached sinks.
func (m *Multi) Len() int { return len(m.sinks) }
