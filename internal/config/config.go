package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/msle237-lees/homelab-monitor/internal/agent"
	"github.com/msle237-lees/homelab-monitor/internal/logger"
)

// FileConfig represents the top-level TOML structure.
type FileConfig struct {
	Supervisor SupervisorConfig `toml:"supervisor" mapstructure:"supervisor"`
	Server     ServerConfig     `toml:"server" mapstructure:"server"`
	Agent      agent.Config     `toml:"agent" mapstructure:"agent"`
	UI         UIConfig         `toml:"ui" mapstructure:"ui"`
	Log        logger.Config    `toml:"log" mapstructure:"log"`
}

// SupervisorConfig drives the `up` orchestrator.
type SupervisorConfig struct {
	APIHost        string        `toml:"api_host" mapstructure:"api_host"`
	APIPort        int           `toml:"api_port" mapstructure:"api_port"`
	RefreshSeconds float64       `toml:"refresh_seconds" mapstructure:"refresh_seconds"`
	Grace          time.Duration `toml:"grace" mapstructure:"grace"`
	ProbeTimeout   time.Duration `toml:"probe_timeout" mapstructure:"probe_timeout"`
	ProbeInterval  time.Duration `toml:"probe_interval" mapstructure:"probe_interval"`
	NoAPI          bool          `toml:"no_api" mapstructure:"no_api"`
	NoUI           bool          `toml:"no_ui" mapstructure:"no_ui"`
	APICommand     []string      `toml:"api_command" mapstructure:"api_command"`
	UICommand      []string      `toml:"ui_command" mapstructure:"ui_command"`
}

// ServerConfig drives the API process.
type ServerConfig struct {
	Listen        string `toml:"listen" mapstructure:"listen"`
	BasePath      string `toml:"base_path" mapstructure:"base_path"`
	DSN           string `toml:"dsn" mapstructure:"dsn"`
	ClickHouseDSN string `toml:"clickhouse_dsn" mapstructure:"clickhouse_dsn"`
	MetricsListen string `toml:"metrics_listen" mapstructure:"metrics_listen"`
}

// UIConfig drives a standalone `ui` invocation; the `up` command injects
// these through the environment instead.
type UIConfig struct {
	APIURL         string  `toml:"api_url" mapstructure:"api_url"`
	RefreshSeconds float64 `toml:"refresh_seconds" mapstructure:"refresh_seconds"`
}

// Default returns the built-in configuration used when no file is given.
func Default() FileConfig {
	return FileConfig{
		Supervisor: SupervisorConfig{
			APIHost:        "127.0.0.1",
			APIPort:        8000,
			RefreshSeconds: 2,
			Grace:          5 * time.Second,
			ProbeTimeout:   20 * time.Second,
			ProbeInterval:  500 * time.Millisecond,
		},
		Server: ServerConfig{
			Listen: "127.0.0.1:8000",
			DSN:    "homelab.db",
		},
		// UI defaults stay zero: the ui command falls back to the
		// HOMELAB_* environment the orchestrator injects.
	}
}

// Load reads a TOML config file and merges it over the defaults.
// An empty path returns the defaults unchanged.
func Load(path string) (FileConfig, error) {
	fc := Default()
	if path == "" {
		return fc, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return fc, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(&fc); err != nil {
		return fc, fmt.Errorf("parse config %s: %w", path, err)
	}
	return fc, fc.validate()
}

func (fc FileConfig) validate() error {
	if fc.Supervisor.APIPort <= 0 || fc.Supervisor.APIPort > 65535 {
		return fmt.Errorf("supervisor.api_port out of range: %d", fc.Supervisor.APIPort)
	}
	if fc.Supervisor.RefreshSeconds <= 0 {
		return fmt.Errorf("supervisor.refresh_seconds must be positive")
	}
	if fc.Supervisor.Grace < 0 || fc.Supervisor.ProbeTimeout < 0 || fc.Supervisor.ProbeInterval < 0 {
		return fmt.Errorf("supervisor durations must not be negative")
	}
	return nil
}

// APIURL is the base URL the supervisor probes and hands to the UI child.
func (sc SupervisorConfig) APIURL() string {
	return fmt.Sprintf("http://%s:%d", sc.APIHost, sc.APIPort)
}
