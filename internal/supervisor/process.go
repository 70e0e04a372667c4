package supervisor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// SpawnError reports that a child process could not be created at all
// (missing executable, bad working directory, OS refusal). It is the only
// supervisor error that escalates to process-wide failure.
type SpawnError struct {
	Name string
	Err  error
}

func (e *SpawnError) Error() string { return fmt.Sprintf("spawn %s: %v", e.Name, e.Err) }
func (e *SpawnError) Unwrap() error { return e.Err }

// ExitStatus is the terminal state of a child process. Signaled termination
// is kept distinct from a plain exit code.
type ExitStatus struct {
	Code     int    // exit code; -1 when killed by a signal
	Signaled bool   // true when the process died from a signal
	Signal   string // signal name when Signaled
}

func (s ExitStatus) String() string {
	if s.Signaled {
		return "signal:" + s.Signal
	}
	return fmt.Sprintf("code:%d", s.Code)
}

// Handle owns one spawned child process: its pipes, its reaper goroutine and
// the observed exit status. Any number of goroutines may wait on Done(); all
// of them observe the same terminal status.
type Handle struct {
	Spec ChildSpec

	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr io.ReadCloser

	mu     sync.Mutex
	exited bool
	status ExitStatus
	done   chan struct{} // closed by the reaper after cmd.Wait returns

	logger *slog.Logger
}

// Spawn launches the process described by spec. The child gets its own
// process group so signals reach grandchildren too. Failure to create the
// process is returned as *SpawnError and is not retried.
func Spawn(spec ChildSpec, logger *slog.Logger) (*Handle, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(spec.Command) == 0 || spec.Command[0] == "" {
		return nil, &SpawnError{Name: spec.Name, Err: errors.New("empty command")}
	}

	cmd := spec.BuildCommand()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	// Plain os.Pipe ends instead of cmd.StdoutPipe: the pipers own the read
	// ends and cmd.Wait never touches them, so reaping and draining cannot
	// race. Readers see EOF once the child exits and the write ends below
	// are closed.
	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, &SpawnError{Name: spec.Name, Err: err}
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		_ = outR.Close()
		_ = outW.Close()
		return nil, &SpawnError{Name: spec.Name, Err: err}
	}
	cmd.Stdout = outW
	cmd.Stderr = errW

	if err := cmd.Start(); err != nil {
		_ = outR.Close()
		_ = outW.Close()
		_ = errR.Close()
		_ = errW.Close()
		return nil, &SpawnError{Name: spec.Name, Err: err}
	}
	// The child holds its own descriptors now.
	_ = outW.Close()
	_ = errW.Close()

	h := &Handle{
		Spec:   spec,
		cmd:    cmd,
		stdout: outR,
		stderr: errR,
		done:   make(chan struct{}),
		logger: logger,
	}
	go h.reap()
	return h, nil
}

func (h *Handle) reap() {
	err := h.cmd.Wait()
	st := exitStatusFrom(h.cmd, err)

	h.mu.Lock()
	h.status = st
	h.exited = true
	h.mu.Unlock()
	close(h.done)
}

func exitStatusFrom(cmd *exec.Cmd, _ error) ExitStatus {
	if ps := cmd.ProcessState; ps != nil {
		if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return ExitStatus{Code: -1, Signaled: true, Signal: ws.Signal().String()}
		}
		return ExitStatus{Code: ps.ExitCode()}
	}
	// Wait failed before a state was recorded; treat as abnormal exit.
	return ExitStatus{Code: -1}
}

// PID returns the OS process id of the child.
func (h *Handle) PID() int { return h.cmd.Process.Pid }

// Stdout and Stderr expose the child's output streams for the pipers.
func (h *Handle) Stdout() io.ReadCloser { return h.stdout }
func (h *Handle) Stderr() io.ReadCloser { return h.stderr }

// Done returns a channel closed once the child has been reaped.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the child terminates and returns its exit status.
// Safe for concurrent callers; every caller sees the same status.
func (h *Handle) Wait() ExitStatus {
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Status returns the exit status and whether the child has terminated.
func (h *Handle) Status() (ExitStatus, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status, h.exited
}

// CloseStreams cancels any pipers still reading by closing the read ends.
// Idempotent; pipers treat the resulting read error as end-of-stream.
func (h *Handle) CloseStreams() {
	_ = h.stdout.Close()
	_ = h.stderr.Close()
}

// Terminate asks the child to exit: SIGTERM to its process group, up to
// grace of waiting, then SIGKILL and a final wait. Calling it on an
// already-exited child is a no-op, including the race where the process
// dies between the liveness check and the signal (ESRCH counts as exited).
func (h *Handle) Terminate(grace time.Duration) {
	if _, exited := h.Status(); exited {
		return
	}
	pid := h.PID()
	h.logger.Info("terminating", "name", h.Spec.Name, "pid", pid)
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			// Already gone; the reaper will observe the exit.
			<-h.done
			return
		}
		h.logger.Warn("terminate signal failed", "name", h.Spec.Name, "error", err)
	}
	select {
	case <-h.done:
		st, _ := h.Status()
		h.logger.Info("exited", "name", h.Spec.Name, "status", st.String())
		return
	case <-time.After(grace):
	}
	h.logger.Warn("grace period elapsed, killing", "name", h.Spec.Name, "pid", pid)
	_ = syscall.Kill(-pid, syscall.SIGKILL)
	<-h.done
	st, _ := h.Status()
	h.logger.Info("killed", "name", h.Spec.Name, "status", st.String())
}
