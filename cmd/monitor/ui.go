package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/msle237-lees/homelab-monitor/internal/config"
	"github.com/msle237-lees/homelab-monitor/internal/ui"
)

// UIFlags holds flags for the ui command.
type UIFlags struct {
	APIURL         string
	RefreshSeconds float64
}

func createUICommand(globalFlags *GlobalFlags, uiFlags *UIFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Run the terminal dashboard",
		Long: `Run the terminal dashboard against a running API. When launched by
"monitor up" the API URL and refresh interval arrive via HOMELAB_API_URL
and HOMELAB_REFRESH_SECONDS; flags and config override them.

Examples:
  monitor ui
  monitor ui --api-url http://hub:8000 --refresh-seconds 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUI(cmd, globalFlags, uiFlags)
		},
	}

	cmd.Flags().StringVar(&uiFlags.APIURL, "api-url", "", "API base URL (defaults to HOMELAB_API_URL)")
	cmd.Flags().Float64Var(&uiFlags.RefreshSeconds, "refresh-seconds", 0, "refresh interval in seconds (defaults to HOMELAB_REFRESH_SECONDS)")

	return cmd
}

func runUI(cmd *cobra.Command, globalFlags *GlobalFlags, uiFlags *UIFlags) error {
	fc, err := config.Load(globalFlags.ConfigPath)
	if err != nil {
		return err
	}

	opts := ui.OptionsFromEnv()
	if fc.UI.APIURL != "" {
		opts.APIURL = fc.UI.APIURL
	}
	if fc.UI.RefreshSeconds > 0 {
		opts.Refresh = time.Duration(fc.UI.RefreshSeconds * float64(time.Second))
	}
	fl := cmd.Flags()
	if fl.Changed("api-url") {
		opts.APIURL = uiFlags.APIURL
	}
	if fl.Changed("refresh-seconds") && uiFlags.RefreshSeconds > 0 {
		opts.Refresh = time.Duration(uiFlags.RefreshSeconds * float64(time.Second))
	}

	return ui.Run(cmd.Context(), opts)
}
