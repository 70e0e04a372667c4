package monitor

import (
	"context"

	"github.com/msle237-lees/homelab-monitor/internal/store"
	"github.com/msle237-lees/homelab-monitor/internal/store/factory"
	"github.com/msle237-lees/homelab-monitor/internal/supervisor"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type ChildSpec = supervisor.ChildSpec

type Options = supervisor.Options

type State = supervisor.State

type Machine = store.Machine

type Reading = store.Reading

// Environment variables the supervisor hands to the UI child.
const (
	EnvAPIURL         = supervisor.EnvAPIURL
	EnvRefreshSeconds = supervisor.EnvRefreshSeconds
)

// Supervisor is a thin facade over internal/supervisor.Supervisor.
// It provides a stable public API for embedding.
type Supervisor struct{ inner *supervisor.Supervisor }

func New(opts Options) *Supervisor {
	return &Supervisor{inner: supervisor.New(opts)}
}

func (s *Supervisor) Run(ctx context.Context) error { return s.inner.Run(ctx) }
func (s *Supervisor) RequestStop()                  { s.inner.RequestStop() }
func (s *Supervisor) State() State                  { return s.inner.State() }

// Store re-exports the persistence interface and its DSN-based factory.
type Store = store.Store

var ErrNotFound = store.ErrNotFound

// NewStore opens a store from a DSN: a bare path or sqlite:// prefix for
// SQLite, postgres:// for PostgreSQL.
func NewStore(dsn string) (Store, error) { return factory.New(dsn) }
