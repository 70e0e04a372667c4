package supervisor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"testing"
	"time"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests require sh/sleep on Unix-like systems")
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func shSpec(name, script string) ChildSpec {
	return ChildSpec{Name: name, Command: []string{"sh", "-c", script}}
}

// waitForFile polls until the child has created path, proving it reached
// the point in its script that follows the touch.
func waitForFile(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("child never created %s", path)
}

func TestSpawnWaitCleanExit(t *testing.T) {
	requireUnix(t)
	h, err := Spawn(shSpec("ok", "exit 0"), testLogger())
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	st := h.Wait()
	if st.Code != 0 || st.Signaled {
		t.Fatalf("unexpected exit status: %+v", st)
	}
	if got := st.String(); got != "code:0" {
		t.Fatalf("status string: got %q", got)
	}
}

func TestSpawnReportsNonZeroExit(t *testing.T) {
	requireUnix(t)
	h, err := Spawn(shSpec("fail", "exit 3"), testLogger())
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if st := h.Wait(); st.Code != 3 {
		t.Fatalf("want code 3, got %+v", st)
	}
}

func TestSpawnMissingBinary(t *testing.T) {
	requireUnix(t)
	_, err := Spawn(ChildSpec{Name: "gone", Command: []string{"/nonexistent/bin"}}, testLogger())
	if err == nil {
		t.Fatal("expected spawn error")
	}
	var se *SpawnError
	if !errors.As(err, &se) || se.Name != "gone" {
		t.Fatalf("want SpawnError for gone, got %v", err)
	}
}

func TestSpawnEmptyCommand(t *testing.T) {
	if _, err := Spawn(ChildSpec{Name: "empty"}, testLogger()); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestStatusBeforeAndAfterExit(t *testing.T) {
	requireUnix(t)
	h, err := Spawn(shSpec("slow", "sleep 5"), testLogger())
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if _, exited := h.Status(); exited {
		t.Fatal("child reported exited while still running")
	}
	h.Terminate(time.Second)
	st, exited := h.Status()
	if !exited {
		t.Fatal("child not reaped after Terminate")
	}
	if !st.Signaled || st.Signal != syscall.SIGTERM.String() {
		t.Fatalf("want SIGTERM disposition, got %+v", st)
	}
}

func TestTerminateEscalatesToKill(t *testing.T) {
	requireUnix(t)
	// Trap TERM so only KILL can end the shell. The loop re-spawns sleep
	// after the group-wide TERM kills the running one. The ready marker
	// keeps Terminate from firing before the trap is installed.
	ready := filepath.Join(t.TempDir(), "ready")
	script := fmt.Sprintf(`trap "" TERM; : > %s; while :; do sleep 1; done`, ready)
	h, err := Spawn(shSpec("stubborn", script), testLogger())
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	waitForFile(t, ready)
	start := time.Now()
	h.Terminate(300 * time.Millisecond)
	if elapsed := time.Since(start); elapsed < 300*time.Millisecond {
		t.Fatalf("terminate returned before the grace window: %v", elapsed)
	}
	st, exited := h.Status()
	if !exited {
		t.Fatal("child survived SIGKILL escalation")
	}
	if !st.Signaled || st.Signal != syscall.SIGKILL.String() {
		t.Fatalf("want SIGKILL disposition, got %+v", st)
	}
}

func TestTerminateIdempotent(t *testing.T) {
	requireUnix(t)
	h, err := Spawn(shSpec("twice", "sleep 5"), testLogger())
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	h.Terminate(time.Second)
	// Second call must be a no-op against an already reaped child.
	h.Terminate(time.Second)
	if _, exited := h.Status(); !exited {
		t.Fatal("child not reaped")
	}
}

func TestStdoutReadableAfterExit(t *testing.T) {
	requireUnix(t)
	h, err := Spawn(shSpec("echo", "echo hello"), testLogger())
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	h.Wait()
	// The pipe buffers output; EOF arrives because the parent closed
	// the write end after Start and the child is gone.
	b, err := io.ReadAll(h.Stdout())
	if err != nil {
		t.Fatalf("read stdout: %v", err)
	}
	if strings.TrimSpace(string(b)) != "hello" {
		t.Fatalf("stdout: got %q", string(b))
	}
}
