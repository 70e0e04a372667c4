package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/msle237-lees/homelab-monitor/internal/store"
)

// DB implements store.Store for SQLite (modernc.org/sqlite driver, CGO-free).
// DSN is a filesystem path to the database file. Use ":memory:" for in-memory.

type DB struct {
	db *sql.DB
}

// New opens a SQLite database at path.
func New(path string) (*DB, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// busy timeout helps with short concurrent locks
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
	return &DB{db: d}, nil
}

func (s *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS machines(
			machine_id TEXT PRIMARY KEY,
			machine_name TEXT NOT NULL,
			cpu_cores INTEGER NOT NULL,
			ram_used INTEGER NOT NULL,
			ram_total INTEGER NOT NULL,
			storage_used INTEGER NOT NULL,
			storage_total INTEGER NOT NULL,
			cpu_temp REAL NULL,
			network_bps INTEGER NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_machines_name ON machines(machine_name);`,
		`CREATE INDEX IF NOT EXISTS idx_machines_updated ON machines(updated_at DESC);`,
		`CREATE TABLE IF NOT EXISTS readings(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			machine_id TEXT NOT NULL,
			cpu_cores INTEGER NOT NULL,
			ram_used INTEGER NOT NULL,
			ram_total INTEGER NOT NULL,
			storage_used INTEGER NOT NULL,
			storage_total INTEGER NOT NULL,
			cpu_temp REAL NULL,
			network_bps INTEGER NOT NULL,
			at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_readings_machine_at ON readings(machine_id, at DESC);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *DB) Close() error { return s.db.Close() }

func (s *DB) UpsertMachine(ctx context.Context, m store.Machine) (store.Machine, error) {
	m.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO machines(machine_id, machine_name, cpu_cores, ram_used, ram_total,
			storage_used, storage_total, cpu_temp, network_bps, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(machine_id) DO UPDATE SET
			machine_name=excluded.machine_name,
			cpu_cores=excluded.cpu_cores,
			ram_used=excluded.ram_used,
			ram_total=excluded.ram_total,
			storage_used=excluded.storage_used,
			storage_total=excluded.storage_total,
			cpu_temp=excluded.cpu_temp,
			network_bps=excluded.network_bps,
			updated_at=excluded.updated_at;`,
		m.ID, m.Name, m.CPUCores, m.RAMUsed, m.RAMTotal,
		m.StorageUsed, m.StorageTotal, nullFloat(m.CPUTemp), m.NetworkBps, m.UpdatedAt)
	if err != nil {
		return store.Machine{}, err
	}
	return s.GetMachine(ctx, m.ID)
}

func (s *DB) UpdateMachine(ctx context.Context, id string, p store.Patch) (store.Machine, error) {
	sets := make([]string, 0, 9)
	args := make([]any, 0, 10)
	add := func(col string, v any) {
		sets = append(sets, col+"=?")
		args = append(args, v)
	}
	if p.Name != nil {
		add("machine_name", *p.Name)
	}
	if p.CPUCores != nil {
		add("cpu_cores", *p.CPUCores)
	}
	if p.RAMUsed != nil {
		add("ram_used", *p.RAMUsed)
	}
	if p.RAMTotal != nil {
		add("ram_total", *p.RAMTotal)
	}
	if p.StorageUsed != nil {
		add("storage_used", *p.StorageUsed)
	}
	if p.StorageTotal != nil {
		add("storage_total", *p.StorageTotal)
	}
	if p.CPUTemp != nil {
		add("cpu_temp", *p.CPUTemp)
	}
	if p.NetworkBps != nil {
		add("network_bps", *p.NetworkBps)
	}
	// updated_at refreshes even when no other field was supplied
	add("updated_at", time.Now().UTC())
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE machines SET `+strings.Join(sets, ", ")+` WHERE machine_id=?;`, args...)
	if err != nil {
		return store.Machine{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.Machine{}, store.ErrNotFound
	}
	return s.GetMachine(ctx, id)
}

func (s *DB) GetMachine(ctx context.Context, id string) (store.Machine, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT machine_id, machine_name, cpu_cores, ram_used, ram_total,
			storage_used, storage_total, cpu_temp, network_bps, updated_at
		FROM machines WHERE machine_id=?;`, id)
	m, err := scanMachine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Machine{}, store.ErrNotFound
	}
	return m, err
}

func (s *DB) ListMachines(ctx context.Context, f store.ListFilter) ([]store.Machine, int, error) {
	f = f.Clamp()
	where := ""
	args := []any{}
	if f.Name != "" {
		where = "WHERE machine_name=?"
		args = append(args, f.Name)
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM machines `+where+`;`, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT machine_id, machine_name, cpu_cores, ram_used, ram_total,
			storage_used, storage_total, cpu_temp, network_bps, updated_at
		FROM machines `+where+`
		ORDER BY machine_name ASC
		LIMIT ? OFFSET ?;`, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()

	out := make([]store.Machine, 0)
	for rows.Next() {
		m, err := scanMachine(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

func (s *DB) DeleteMachine(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM machines WHERE machine_id=?;`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *DB) AppendReading(ctx context.Context, r store.Reading) error {
	if r.At.IsZero() {
		r.At = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO readings(machine_id, cpu_cores, ram_used, ram_total,
			storage_used, storage_total, cpu_temp, network_bps, at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		r.MachineID, r.CPUCores, r.RAMUsed, r.RAMTotal,
		r.StorageUsed, r.StorageTotal, nullFloat(r.CPUTemp), r.NetworkBps, r.At.UTC())
	return err
}

func (s *DB) RecentReadings(ctx context.Context, id string, limit int) ([]store.Reading, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT machine_id, cpu_cores, ram_used, ram_total,
			storage_used, storage_total, cpu_temp, network_bps, at
		FROM readings
		WHERE machine_id=?
		ORDER BY at DESC
		LIMIT ?;`, id, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make([]store.Reading, 0, limit)
	for rows.Next() {
		var r store.Reading
		var temp sql.NullFloat64
		if err := rows.Scan(&r.MachineID, &r.CPUCores, &r.RAMUsed, &r.RAMTotal,
			&r.StorageUsed, &r.StorageTotal, &temp, &r.NetworkBps, &r.At); err != nil {
			return nil, err
		}
		if temp.Valid {
			v := temp.Float64
			r.CPUTemp = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMachine(row scanner) (store.Machine, error) {
	var m store.Machine
	var temp sql.NullFloat64
	err := row.Scan(&m.ID, &m.Name, &m.CPUCores, &m.RAMUsed, &m.RAMTotal,
		&m.StorageUsed, &m.StorageTotal, &temp, &m.NetworkBps, &m.UpdatedAt)
	if err != nil {
		return store.Machine{}, err
	}
	if temp.Valid {
		v := temp.Float64
		m.CPUTemp = &v
	}
	return m, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
