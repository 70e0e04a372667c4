package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"maps"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/msle237-lees/homelab-monitor/internal/logger"
	"github.com/msle237-lees/homelab-monitor/internal/metrics"
)

// Environment variables handed to the UI child.
const (
	EnvAPIURL         = "HOMELAB_API_URL"
	EnvRefreshSeconds = "HOMELAB_REFRESH_SECONDS"
)

// State is the supervisor lifecycle state. Transitions are one-way:
// Idle -> Starting -> Running -> ShuttingDown -> Stopped.
type State int32

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting-down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Options configures a supervisor run. A nil role spec disables that role.
type Options struct {
	API *ChildSpec
	UI  *ChildSpec

	// APIURL is the API base URL: probe target, and handed to the UI via
	// environment whether or not the probe succeeded.
	APIURL string
	// RefreshSeconds, when non-empty, overrides the UI refresh interval.
	RefreshSeconds string

	Grace         time.Duration // per-child graceful termination window
	ProbeTimeout  time.Duration
	ProbeInterval time.Duration

	Console io.Writer     // destination for prefixed child output lines
	Log     logger.Config // rotation settings for the per-child file sinks
	Logger  *slog.Logger
}

// errStopRequested aborts a spawn after the stop token was set. It unwinds
// startup without being reported as a failure.
var errStopRequested = errors.New("stop requested")

// Supervisor launches the API and UI children, pipes their output, gates on
// the API health probe, then blocks until a child exits or a stop arrives
// and unwinds everything in reverse start order.
type Supervisor struct {
	opts  Options
	stop  *Stop
	state atomic.Int32

	api *Handle
	ui  *Handle

	pipers sync.WaitGroup
	sinks  []io.Closer

	logger *slog.Logger
}

func New(opts Options) *Supervisor {
	if opts.Grace <= 0 {
		opts.Grace = 5 * time.Second
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 20 * time.Second
	}
	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = 500 * time.Millisecond
	}
	if opts.Console == nil {
		opts.Console = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Supervisor{opts: opts, stop: NewStop(), logger: opts.Logger}
}

// RequestStop sets the stop token. Signal handlers call this; it is the only
// asynchronous interruption of the Running wait.
func (s *Supervisor) RequestStop() { s.stop.Trigger() }

// State returns the current lifecycle state.
func (s *Supervisor) State() State { return State(s.state.Load()) }

func (s *Supervisor) setState(st State) { s.state.Store(int32(st)) }

// API and UI expose the role handles (nil when disabled or not yet spawned).
func (s *Supervisor) API() *Handle { return s.api }
func (s *Supervisor) UI() *Handle  { return s.ui }

// Run drives the whole lifecycle and blocks until Stopped. It returns nil
// on a clean stop (signal or child exit) and the SpawnError when a
// configured role could not be launched.
func (s *Supervisor) Run(ctx context.Context) error {
	s.setState(StateStarting)

	if s.opts.API != nil {
		h, err := s.launch(*s.opts.API)
		if err != nil {
			s.shutdown()
			if errors.Is(err, errStopRequested) {
				return nil
			}
			return err
		}
		s.api = h
		s.logger.Info("api started", "pid", h.PID(), "url", s.opts.APIURL)
		if !(Probe{}).AwaitHealthy(ctx, s.opts.APIURL+"/", s.opts.ProbeTimeout, s.opts.ProbeInterval) {
			s.logger.Warn("api did not become healthy in time; continuing anyway", "url", s.opts.APIURL)
		}
	}

	if s.opts.UI != nil {
		spec := *s.opts.UI
		env := maps.Clone(spec.Env)
		if env == nil {
			env = make(map[string]string, 2)
		}
		env[EnvAPIURL] = s.opts.APIURL
		if s.opts.RefreshSeconds != "" {
			env[EnvRefreshSeconds] = s.opts.RefreshSeconds
		}
		spec.Env = env
		h, err := s.launch(spec)
		if err != nil {
			s.shutdown()
			if errors.Is(err, errStopRequested) {
				return nil
			}
			return err
		}
		s.ui = h
		s.logger.Info("ui started", "pid", h.PID(), EnvAPIURL, s.opts.APIURL)
	}

	s.setState(StateRunning)

	var ws WaitSet
	ws.Add("stop", s.stop.Done())
	if s.api != nil {
		ws.Add("api-exit", s.api.Done())
	}
	if s.ui != nil {
		ws.Add("ui-exit", s.ui.Done())
	}
	cause := ws.Wait(ctx)
	if cause == "" {
		cause = "context-cancelled"
	}
	s.logger.Info("shutting down", "cause", cause)

	s.shutdown()
	return nil
}

// launch spawns one child and attaches its two pipers. Nothing is spawned
// once the stop token is set.
func (s *Supervisor) launch(spec ChildSpec) (*Handle, error) {
	if s.stop.Requested() {
		return nil, errStopRequested
	}

	var sink io.WriteCloser
	if spec.LogPath != "" {
		sink = s.opts.Log.Sink(spec.LogPath)
		s.sinks = append(s.sinks, sink)
	}

	h, err := Spawn(spec, s.logger)
	if err != nil {
		return nil, err
	}
	metrics.ChildStarted(spec.Name)

	s.pipers.Add(2)
	go func() {
		defer s.pipers.Done()
		Pipe(h.Stdout(), spec.Name+":out", s.opts.Console, sink, s.logger)
	}()
	go func() {
		defer s.pipers.Done()
		Pipe(h.Stderr(), spec.Name+":err", s.opts.Console, sink, s.logger)
	}()
	return h, nil
}

// shutdown terminates children UI-first (terminate is a no-op on an exited
// child, so the order holds no matter which condition fired), then cancels
// any pipers still reading and waits for them to drain.
func (s *Supervisor) shutdown() {
	s.setState(StateShuttingDown)
	s.stop.Trigger()

	if s.ui != nil {
		s.ui.Terminate(s.opts.Grace)
		metrics.ChildStopped(s.ui.Spec.Name)
	}
	if s.api != nil {
		s.api.Terminate(s.opts.Grace)
		metrics.ChildStopped(s.api.Spec.Name)
	}

	if s.ui != nil {
		s.ui.CloseStreams()
	}
	if s.api != nil {
		s.api.CloseStreams()
	}
	s.pipers.Wait()

	for _, c := range s.sinks {
		_ = c.Close()
	}
	s.setState(StateStopped)
	s.logger.Info("all done")
}
