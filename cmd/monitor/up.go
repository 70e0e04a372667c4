package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/msle237-lees/homelab-monitor/internal/config"
	"github.com/msle237-lees/homelab-monitor/internal/logger"
	"github.com/msle237-lees/homelab-monitor/internal/supervisor"
)

// UpFlags holds flags for the up command.
type UpFlags struct {
	NoAPI          bool
	NoUI           bool
	APIHost        string
	APIPort        int
	RefreshSeconds float64
	Grace          time.Duration
	ProbeTimeout   time.Duration
	ProbeInterval  time.Duration
	LogDir         string
}

func createUpCommand(globalFlags *GlobalFlags, upFlags *UpFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Launch the API and dashboard as supervised child processes",
		Long: `Launch the API server and the dashboard UI as child processes, prefix
their output, and shut the pair down in order (UI first) when either
exits or a signal arrives.

Examples:
  monitor up
  monitor up --no-ui --api-port 9000
  monitor up --refresh-seconds 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUp(cmd, globalFlags, upFlags)
		},
	}

	cmd.Flags().BoolVar(&upFlags.NoAPI, "no-api", false, "do not launch the API child")
	cmd.Flags().BoolVar(&upFlags.NoUI, "no-ui", false, "do not launch the UI child")
	cmd.Flags().StringVar(&upFlags.APIHost, "api-host", "127.0.0.1", "API bind host")
	cmd.Flags().IntVar(&upFlags.APIPort, "api-port", 8000, "API bind port")
	cmd.Flags().Float64Var(&upFlags.RefreshSeconds, "refresh-seconds", 2, "dashboard refresh interval in seconds")
	cmd.Flags().DurationVar(&upFlags.Grace, "grace", 5*time.Second, "graceful termination window per child")
	cmd.Flags().DurationVar(&upFlags.ProbeTimeout, "probe-timeout", 20*time.Second, "how long to wait for the API to answer")
	cmd.Flags().DurationVar(&upFlags.ProbeInterval, "probe-interval", 500*time.Millisecond, "health probe polling interval")
	cmd.Flags().StringVar(&upFlags.LogDir, "log-dir", "", "directory for per-child log files (empty disables file logs)")

	return cmd
}

func runUp(cmd *cobra.Command, globalFlags *GlobalFlags, upFlags *UpFlags) error {
	fc, err := config.Load(globalFlags.ConfigPath)
	if err != nil {
		return err
	}
	sc := fc.Supervisor
	fl := cmd.Flags()
	if fl.Changed("no-api") {
		sc.NoAPI = upFlags.NoAPI
	}
	if fl.Changed("no-ui") {
		sc.NoUI = upFlags.NoUI
	}
	if fl.Changed("api-host") {
		sc.APIHost = upFlags.APIHost
	}
	if fl.Changed("api-port") {
		sc.APIPort = upFlags.APIPort
	}
	if fl.Changed("refresh-seconds") {
		sc.RefreshSeconds = upFlags.RefreshSeconds
	}
	if fl.Changed("grace") {
		sc.Grace = upFlags.Grace
	}
	if fl.Changed("probe-timeout") {
		sc.ProbeTimeout = upFlags.ProbeTimeout
	}
	if fl.Changed("probe-interval") {
		sc.ProbeInterval = upFlags.ProbeInterval
	}
	if fl.Changed("log-dir") {
		fc.Log.Dir = upFlags.LogDir
	}

	log := logger.New(os.Stderr, globalFlags.LogLevel)

	opts := supervisor.Options{
		APIURL:         sc.APIURL(),
		RefreshSeconds: refreshOverride(fl.Changed("refresh-seconds"), sc.RefreshSeconds),
		Grace:          sc.Grace,
		ProbeTimeout:   sc.ProbeTimeout,
		ProbeInterval:  sc.ProbeInterval,
		Console:        os.Stdout,
		Log:            fc.Log,
		Logger:         log,
	}

	if !sc.NoAPI {
		spec, err := childSpec("api", sc.APICommand, defaultAPICommand(globalFlags, sc), fc.Log.Dir)
		if err != nil {
			return err
		}
		opts.API = spec
	}
	if !sc.NoUI {
		spec, err := childSpec("ui", sc.UICommand, defaultUICommand(globalFlags), fc.Log.Dir)
		if err != nil {
			return err
		}
		opts.UI = spec
	}
	if opts.API == nil && opts.UI == nil {
		log.Warn("both roles disabled, waiting for a stop signal")
	}

	sup := supervisor.New(opts)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig := <-sigCh
		log.Info("signal received", "signal", sig.String())
		sup.RequestStop()
	}()

	return sup.Run(cmd.Context())
}

// refreshOverride renders the refresh interval handed to the UI child's
// environment. An empty string means no override: the UI keeps its own
// default unless the flag or the config file actually changed the value.
func refreshOverride(flagChanged bool, seconds float64) string {
	if !flagChanged && seconds == config.Default().Supervisor.RefreshSeconds {
		return ""
	}
	return strconv.FormatFloat(seconds, 'f', -1, 64)
}

// childSpec resolves the command for one role: the configured override when
// present, otherwise the default (this executable re-invoked).
func childSpec(name string, override, def []string, logDir string) (*supervisor.ChildSpec, error) {
	command := override
	if len(command) == 0 {
		command = def
	}
	if len(command) == 0 {
		return nil, fmt.Errorf("no command for %s child", name)
	}
	spec := &supervisor.ChildSpec{Name: name, Command: command}
	if logDir != "" {
		spec.LogPath = filepath.Join(logDir, name+".log")
	}
	return spec, nil
}

func defaultAPICommand(globalFlags *GlobalFlags, sc config.SupervisorConfig) []string {
	exe, err := os.Executable()
	if err != nil {
		return nil
	}
	args := []string{exe, "serve", "--listen", fmt.Sprintf("%s:%d", sc.APIHost, sc.APIPort)}
	if globalFlags.ConfigPath != "" {
		args = append(args, "--config", globalFlags.ConfigPath)
	}
	return args
}

func defaultUICommand(globalFlags *GlobalFlags) []string {
	exe, err := os.Executable()
	if err != nil {
		return nil
	}
	args := []string{exe, "ui"}
	if globalFlags.ConfigPath != "" {
		args = append(args, "--config", globalFlags.ConfigPath)
	}
	return args
}
