package clickhouse

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/msle237-lees/homelab-monitor/internal/history"
)

// Sink exports reading events to ClickHouse using the official Go client.
type Sink struct {
	conn  driver.Conn
	table string
}

// New connects to ClickHouse at addr (host:port) and ensures the target
// table exists. Database/credentials default to the server defaults.
func New(addr, database, table string) (*Sink, error) {
	if database == "" {
		database = "default"
	}
	if table == "" {
		table = "homelab_readings"
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{Database: database},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	s := &Sink{conn: conn, table: table}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

// NewFromDSN parses "clickhouse://host:port?database=db&table=t".
func NewFromDSN(dsn string) (*Sink, error) {
	u, err := url.Parse(strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("invalid clickhouse DSN: %w", err)
	}
	return New(u.Host, u.Query().Get("database"), u.Query().Get("table"))
}

func (s *Sink) ensureSchema(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		type String,
		occurred_at DateTime64(3),
		machine_id String,
		cpu_cores Int32,
		ram_used Int64,
		ram_total Int64,
		storage_used Int64,
		storage_total Int64,
		cpu_temp Nullable(Float64),
		network_bps Int64
	) ENGINE = MergeTree() ORDER BY (machine_id, occurred_at)`, s.table)
	return s.conn.Exec(ctx, q)
}

func (s *Sink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	query := fmt.Sprintf(`INSERT INTO %s (type, occurred_at, machine_id, cpu_cores, ram_used, ram_total, storage_used, storage_total, cpu_temp, network_bps) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)

	err := s.conn.Exec(ctx, query,
		string(e.Type),
		e.OccurredAt,
		e.Reading.MachineID,
		int32(e.Reading.CPUCores),
		e.Reading.RAMUsed,
		e.Reading.RAMTotal,
		e.Reading.StorageUsed,
		e.Reading.StorageTotal,
		e.Reading.CPUTemp,
		e.Reading.NetworkBps,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reading into ClickHouse: %w", err)
	}
	return nil
}
