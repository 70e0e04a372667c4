package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/msle237-lees/homelab-monitor/internal/config"
	"github.com/msle237-lees/homelab-monitor/internal/history"
	"github.com/msle237-lees/homelab-monitor/internal/history/clickhouse"
	"github.com/msle237-lees/homelab-monitor/internal/logger"
	"github.com/msle237-lees/homelab-monitor/internal/metrics"
	"github.com/msle237-lees/homelab-monitor/internal/server"
	"github.com/msle237-lees/homelab-monitor/internal/store/factory"
)

// ServeFlags holds flags for the serve command.
type ServeFlags struct {
	Listen        string
	BasePath      string
	DSN           string
	ClickHouseDSN string
	MetricsListen string
}

func createServeCommand(globalFlags *GlobalFlags, serveFlags *ServeFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the machines API server",
		Long: `Run the HTTP API that agents report to and the dashboard reads from.

Examples:
  monitor serve
  monitor serve --listen 0.0.0.0:8000 --dsn postgres://user:pw@db/homelab
  monitor serve --clickhouse-dsn clickhouse://ch:9000?database=homelab`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, globalFlags, serveFlags)
		},
	}

	cmd.Flags().StringVar(&serveFlags.Listen, "listen", "127.0.0.1:8000", "listen address")
	cmd.Flags().StringVar(&serveFlags.BasePath, "base-path", "", "base path prefix for all routes")
	cmd.Flags().StringVar(&serveFlags.DSN, "dsn", "homelab.db", "store DSN (sqlite path, sqlite://, or postgres://)")
	cmd.Flags().StringVar(&serveFlags.ClickHouseDSN, "clickhouse-dsn", "", "optional ClickHouse history sink DSN")
	cmd.Flags().StringVar(&serveFlags.MetricsListen, "metrics-listen", "", "optional dedicated /metrics listen address")

	return cmd
}

func runServe(cmd *cobra.Command, globalFlags *GlobalFlags, serveFlags *ServeFlags) error {
	fc, err := config.Load(globalFlags.ConfigPath)
	if err != nil {
		return err
	}
	sc := fc.Server
	fl := cmd.Flags()
	if fl.Changed("listen") {
		sc.Listen = serveFlags.Listen
	}
	if fl.Changed("base-path") {
		sc.BasePath = serveFlags.BasePath
	}
	if fl.Changed("dsn") {
		sc.DSN = serveFlags.DSN
	}
	if fl.Changed("clickhouse-dsn") {
		sc.ClickHouseDSN = serveFlags.ClickHouseDSN
	}
	if fl.Changed("metrics-listen") {
		sc.MetricsListen = serveFlags.MetricsListen
	}

	log := logger.New(os.Stderr, globalFlags.LogLevel)

	st, err := factory.New(sc.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	if err := st.EnsureSchema(cmd.Context()); err != nil {
		return err
	}

	var sinks []history.Sink
	if sc.ClickHouseDSN != "" {
		ch, err := clickhouse.NewFromDSN(sc.ClickHouseDSN)
		if err != nil {
			// The API stays useful without history; report and carry on.
			log.Error("clickhouse sink unavailable", "error", err)
		} else {
			sinks = append(sinks, ch)
		}
	}
	hist := history.NewMulti(log, sinks...)
	defer func() { _ = hist.Close() }()

	if err := metrics.RegisterDefault(); err != nil {
		return err
	}
	if sc.MetricsListen != "" {
		go func() {
			if err := metrics.Serve(sc.MetricsListen); err != nil {
				log.Error("metrics listener failed", "error", err)
			}
		}()
	}

	srv := server.NewServer(sc.Listen, sc.BasePath, st, hist, log)
	log.Info("api listening", "addr", sc.Listen, "dsn", sc.DSN)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Info("signal received", "signal", sig.String())
	case <-cmd.Context().Done():
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
