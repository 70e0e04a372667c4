package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/msle237-lees/homelab-monitor/internal/store"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return db
}

func sampleMachine(id string) store.Machine {
	temp := 48.5
	return store.Machine{
		ID:           id,
		Name:         "host-" + id,
		CPUCores:     8,
		RAMUsed:      4 << 30,
		RAMTotal:     16 << 30,
		StorageUsed:  100 << 30,
		StorageTotal: 500 << 30,
		CPUTemp:      &temp,
		NetworkBps:   1_000_000,
	}
}

func TestUpsertInsertsAndUpdates(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	m, err := db.UpsertMachine(ctx, sampleMachine("m1"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if m.UpdatedAt.IsZero() {
		t.Fatal("updated_at not set on insert")
	}
	firstSeen := m.UpdatedAt

	in := sampleMachine("m1")
	in.Name = "renamed"
	in.RAMUsed = 8 << 30
	time.Sleep(5 * time.Millisecond)
	m, err = db.UpsertMachine(ctx, in)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if m.Name != "renamed" || m.RAMUsed != 8<<30 {
		t.Fatalf("upsert did not replace fields: %+v", m)
	}
	if !m.UpdatedAt.After(firstSeen) {
		t.Fatal("updated_at not refreshed on upsert")
	}

	if _, total, _ := db.ListMachines(ctx, store.ListFilter{}); total != 1 {
		t.Fatalf("upsert created a duplicate row: total=%d", total)
	}
}

func TestUpsertNilTemperature(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	in := sampleMachine("m1")
	in.CPUTemp = nil
	m, err := db.UpsertMachine(ctx, in)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if m.CPUTemp != nil {
		t.Fatalf("nil temperature round-tripped as %v", *m.CPUTemp)
	}
}

func TestUpdatePartialAndTimestamp(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	orig, err := db.UpsertMachine(ctx, sampleMachine("m1"))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	name := "patched"
	time.Sleep(5 * time.Millisecond)
	m, err := db.UpdateMachine(ctx, "m1", store.Patch{Name: &name})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if m.Name != "patched" {
		t.Fatalf("name not patched: %q", m.Name)
	}
	if m.CPUCores != orig.CPUCores || m.RAMUsed != orig.RAMUsed {
		t.Fatal("unpatched fields changed")
	}
	if !m.UpdatedAt.After(orig.UpdatedAt) {
		t.Fatal("updated_at not refreshed by patch")
	}

	// An empty patch still refreshes the timestamp.
	time.Sleep(5 * time.Millisecond)
	m2, err := db.UpdateMachine(ctx, "m1", store.Patch{})
	if err != nil {
		t.Fatalf("empty patch: %v", err)
	}
	if !m2.UpdatedAt.After(m.UpdatedAt) {
		t.Fatal("empty patch did not refresh updated_at")
	}
}

func TestUpdateUnknownMachine(t *testing.T) {
	db := openTestDB(t)
	name := "x"
	_, err := db.UpdateMachine(context.Background(), "ghost", store.Patch{Name: &name})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestGetUnknownMachine(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.GetMachine(context.Background(), "ghost"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestListFilterAndPaging(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		m := sampleMachine(fmt.Sprintf("m%d", i))
		if i == 0 {
			m.Name = "special"
		}
		if _, err := db.UpsertMachine(ctx, m); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	items, total, err := db.ListMachines(ctx, store.ListFilter{Limit: 2, Offset: 0})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 || len(items) != 2 {
		t.Fatalf("page 1: total=%d len=%d", total, len(items))
	}

	items2, _, err := db.ListMachines(ctx, store.ListFilter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(items2) != 2 || items2[0].ID == items[0].ID {
		t.Fatalf("paging overlapped: %v vs %v", items2[0].ID, items[0].ID)
	}

	byName, total, err := db.ListMachines(ctx, store.ListFilter{Name: "special"})
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if total != 1 || len(byName) != 1 || byName[0].ID != "m0" {
		t.Fatalf("name filter: total=%d items=%+v", total, byName)
	}
}

func TestDeleteMachine(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.UpsertMachine(ctx, sampleMachine("m1")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := db.DeleteMachine(ctx, "m1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := db.DeleteMachine(ctx, "m1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second delete: want ErrNotFound, got %v", err)
	}
	if _, err := db.GetMachine(ctx, "m1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("machine survived delete: %v", err)
	}
}

func TestReadingsNewestFirst(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		r := store.Reading{
			MachineID: "m1", CPUCores: 8, RAMUsed: int64(i),
			RAMTotal: 16 << 30, NetworkBps: 100,
			At: base.Add(time.Duration(i) * time.Minute),
		}
		if err := db.AppendReading(ctx, r); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	got, err := db.RecentReadings(ctx, "m1", 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("limit not applied: %d", len(got))
	}
	if got[0].RAMUsed != 2 || got[1].RAMUsed != 1 {
		t.Fatalf("not newest-first: %+v", got)
	}
	if got[0].CPUTemp != nil {
		t.Fatal("missing temperature should stay nil")
	}
}

func TestNewRejectsEmptyPath(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
