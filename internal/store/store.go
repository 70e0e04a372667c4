package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a machine id has no row.
var ErrNotFound = errors.New("machine not found")

// Machine is the latest known state of one monitored host. CPUTemp is nil
// when the host has no readable temperature sensor.
type Machine struct {
	ID           string    `json:"machine_id"`
	Name         string    `json:"machine_name"`
	CPUCores     int       `json:"cpu_cores"`
	RAMUsed      int64     `json:"ram_used"`
	RAMTotal     int64     `json:"ram_total"`
	StorageUsed  int64     `json:"storage_used"`
	StorageTotal int64     `json:"storage_total"`
	CPUTemp      *float64  `json:"cpu_temp"`
	NetworkBps   int64     `json:"network_bps"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Reading is one historical sample for a machine.
type Reading struct {
	MachineID    string    `json:"machine_id"`
	CPUCores     int       `json:"cpu_cores"`
	RAMUsed      int64     `json:"ram_used"`
	RAMTotal     int64     `json:"ram_total"`
	StorageUsed  int64     `json:"storage_used"`
	StorageTotal int64     `json:"storage_total"`
	CPUTemp      *float64  `json:"cpu_temp"`
	NetworkBps   int64     `json:"network_bps"`
	At           time.Time `json:"at"`
}

// Patch carries the optional fields of a partial machine update.
// Nil fields are left untouched; UpdatedAt always refreshes.
type Patch struct {
	Name         *string
	CPUCores     *int
	RAMUsed      *int64
	RAMTotal     *int64
	StorageUsed  *int64
	StorageTotal *int64
	CPUTemp      *float64
	NetworkBps   *int64
}

// ListFilter narrows and pages ListMachines.
type ListFilter struct {
	Name   string // exact machine_name match when non-empty
	Limit  int    // defaults to 50, capped at 500
	Offset int
}

// Store persists machines and their reading history.
type Store interface {
	EnsureSchema(ctx context.Context) error
	UpsertMachine(ctx context.Context, m Machine) (Machine, error)
	UpdateMachine(ctx context.Context, id string, p Patch) (Machine, error)
	GetMachine(ctx context.Context, id string) (Machine, error)
	ListMachines(ctx context.Context, f ListFilter) ([]Machine, int, error)
	DeleteMachine(ctx context.Context, id string) error
	AppendReading(ctx context.Context, r Reading) error
	RecentReadings(ctx context.Context, id string, limit int) ([]Reading, error)
	Close() error
}

// Clamp applies the filter defaults.
func (f ListFilter) Clamp() ListFilter {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 500 {
		f.Limit = 500
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
