package main

import (
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/msle237-lees/homelab-monitor/internal/agent"
	"github.com/msle237-lees/homelab-monitor/internal/config"
	"github.com/msle237-lees/homelab-monitor/internal/logger"
)

// AgentFlags holds flags for the agent command.
type AgentFlags struct {
	ServerURL   string
	MachineID   string
	MachineName string
	Interval    time.Duration
	DiskPath    string
	LogFile     string
}

func createAgentCommand(globalFlags *GlobalFlags, agentFlags *AgentFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Report this host's metrics to the API on an interval",
		Long: `Sample CPU, memory, storage, temperature, and network throughput on
this host and upsert them into the API every interval.

Examples:
  monitor agent --server http://hub:8000
  monitor agent --server http://hub:8000 --machine-id nas --interval 30s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd, globalFlags, agentFlags)
		},
	}

	cmd.Flags().StringVar(&agentFlags.ServerURL, "server", "http://127.0.0.1:8000", "API base URL")
	cmd.Flags().StringVar(&agentFlags.MachineID, "machine-id", "", "machine id (defaults to hostname)")
	cmd.Flags().StringVar(&agentFlags.MachineName, "machine-name", "", "display name (defaults to hostname)")
	cmd.Flags().DurationVar(&agentFlags.Interval, "interval", 15*time.Second, "sampling interval")
	cmd.Flags().StringVar(&agentFlags.DiskPath, "disk-path", "/", "mount point to report storage for")
	cmd.Flags().StringVar(&agentFlags.LogFile, "log-file", "", "rotating log file (empty logs to stderr)")

	return cmd
}

func runAgent(cmd *cobra.Command, globalFlags *GlobalFlags, agentFlags *AgentFlags) error {
	fc, err := config.Load(globalFlags.ConfigPath)
	if err != nil {
		return err
	}
	ac := fc.Agent
	fl := cmd.Flags()
	if fl.Changed("server") {
		ac.ServerURL = agentFlags.ServerURL
	}
	if fl.Changed("machine-id") {
		ac.MachineID = agentFlags.MachineID
	}
	if fl.Changed("machine-name") {
		ac.MachineName = agentFlags.MachineName
	}
	if fl.Changed("interval") {
		ac.Interval = agentFlags.Interval
	}
	if fl.Changed("disk-path") {
		ac.DiskPath = agentFlags.DiskPath
	}
	if fl.Changed("log-file") {
		ac.LogFile = agentFlags.LogFile
	}

	var out io.Writer = os.Stderr
	if ac.LogFile != "" {
		sink := fc.Log.Sink(ac.LogFile)
		defer func() { _ = sink.Close() }()
		out = sink
	}
	log := logger.New(out, globalFlags.LogLevel)

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return agent.New(ac, log).Run(ctx)
}
