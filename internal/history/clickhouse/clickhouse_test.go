package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	chcontainer "github.com/testcontainers/testcontainers-go/modules/clickhouse"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/msle237-lees/homelab-monitor/internal/history"
	"github.com/msle237-lees/homelab-monitor/internal/store"
)

func TestNewFromDSNRejectsGarbage(t *testing.T) {
	if _, err := NewFromDSN("://not a url"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestClickHouseSink_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := chcontainer.Run(ctx,
		"clickhouse/clickhouse-server:24.3.2.23",
		chcontainer.WithUsername("default"),
		chcontainer.WithPassword(""),
		chcontainer.WithDatabase("default"),
		testcontainers.WithWaitStrategy(
			wait.ForHTTP("/ping").
				WithPort("8123/tcp").
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("could not start ClickHouse container (docker unavailable?): %v", err)
	}
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			t.Errorf("failed to terminate container: %v", err)
		}
	}()

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "9000")
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}

	sink, err := New(host+":"+port.Port(), "default", "homelab_readings_test")
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	defer func() { _ = sink.Close() }()

	temp := 49.0
	event := history.Event{
		Type:       history.EventReading,
		OccurredAt: time.Now().UTC(),
		Reading: store.Reading{
			MachineID: "m1", CPUCores: 8,
			RAMUsed: 1 << 30, RAMTotal: 4 << 30,
			StorageUsed: 10 << 30, StorageTotal: 100 << 30,
			CPUTemp: &temp, NetworkBps: 1024,
			At: time.Now().UTC(),
		},
	}
	if err := sink.Send(ctx, event); err != nil {
		t.Fatalf("send: %v", err)
	}

	// Nil temperature must insert as NULL, not fail.
	event.Reading.CPUTemp = nil
	if err := sink.Send(ctx, event); err != nil {
		t.Fatalf("send nil temp: %v", err)
	}

	var count uint64
	row := sink.conn.QueryRow(ctx, "SELECT count() FROM homelab_readings_test WHERE machine_id = 'm1'")
	if err := row.Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("rows: %d", count)
	}
}
