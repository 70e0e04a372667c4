package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := buildRoot().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds the persistent flags shared by all subcommands.
type GlobalFlags struct {
	ConfigPath string
	LogLevel   string
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	upFlags := &UpFlags{}
	serveFlags := &ServeFlags{}
	agentFlags := &AgentFlags{}
	uiFlags := &UIFlags{}

	root := &cobra.Command{
		Use:   "monitor",
		Short: "Homelab telemetry stack: orchestrator, API, agent, and dashboard",
		Long: `monitor runs the pieces of a small homelab telemetry stack.

Examples:
  monitor up                              # launch API + dashboard together
  monitor up --no-ui                      # API only, stay attached
  monitor serve --listen 0.0.0.0:8000     # run the API process directly
  monitor agent --server http://hub:8000  # report this host's metrics
  monitor ui                              # dashboard against a running API`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&globalFlags.ConfigPath, "config", "", "path to TOML config file (optional)")
	root.PersistentFlags().StringVar(&globalFlags.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		createUpCommand(globalFlags, upFlags),
		createServeCommand(globalFlags, serveFlags),
		createAgentCommand(globalFlags, agentFlags),
		createUICommand(globalFlags, uiFlags),
	)

	return root
}
