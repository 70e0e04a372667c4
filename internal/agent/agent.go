package agent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config drives the sampling loop. Zero values get homelab defaults.
type Config struct {
	ServerURL      string        `json:"server_url" mapstructure:"server_url"`
	PostPath       string        `json:"post_path" mapstructure:"post_path"`
	MachineID      string        `json:"machine_id" mapstructure:"machine_id"`
	MachineName    string        `json:"machine_name" mapstructure:"machine_name"`
	Interval       time.Duration `json:"interval" mapstructure:"interval"`
	RequestTimeout time.Duration `json:"request_timeout" mapstructure:"request_timeout"`
	DiskPath       string        `json:"disk_path" mapstructure:"disk_path"`
	LogFile        string        `json:"log_file" mapstructure:"log_file"`
}

func (c *Config) applyDefaults() {
	if c.ServerURL == "" {
		c.ServerURL = "http://127.0.0.1:8000"
	}
	if c.PostPath == "" {
		c.PostPath = "/machines"
	}
	host, _ := os.Hostname()
	if c.MachineID == "" {
		c.MachineID = host
	}
	if c.MachineName == "" {
		c.MachineName = host
	}
	if c.Interval <= 0 {
		c.Interval = 15 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 5 * time.Second
	}
	if c.DiskPath == "" {
		c.DiskPath = "/"
	}
}

// Agent samples host metrics on an interval and upserts them to the API.
// Upload failures are logged and never stop the loop; only context
// cancellation (the stop signal) does.
type Agent struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger

	prevTotal int64
	prevAt    time.Time
}

func New(cfg Config, logger *slog.Logger) *Agent {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.RequestTimeout},
		logger: logger,
	}
}

// Run blocks until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("agent starting", "machine_id", a.cfg.MachineID, "server", a.cfg.ServerURL,
		"interval", a.cfg.Interval)

	// Seed the network counters so the first reported rate is a real delta.
	seed := Sample(ctx, a.cfg.DiskPath)
	a.prevTotal = seed.NetTotalBytes
	a.prevAt = time.Now()

	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("agent stopping")
			return nil
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

func (a *Agent) tick(ctx context.Context) {
	r := Sample(ctx, a.cfg.DiskPath)

	now := time.Now()
	dt := now.Sub(a.prevAt).Seconds()
	if dt <= 0 {
		dt = 1e-6
	}
	netBps := int64(float64(r.NetTotalBytes-a.prevTotal) / dt)
	if netBps < 0 {
		netBps = 0 // counter reset (interface bounce, reboot)
	}
	a.prevTotal = r.NetTotalBytes
	a.prevAt = now

	if err := a.post(ctx, r, netBps); err != nil {
		a.logger.Error("upload failed", "error", err)
	}
}

func (a *Agent) post(ctx context.Context, r Reading, netBps int64) error {
	endpoint := strings.TrimRight(a.cfg.ServerURL, "/") + "/" + strings.TrimLeft(a.cfg.PostPath, "/")

	form := url.Values{}
	form.Set("machine_id", a.cfg.MachineID)
	form.Set("machine_name", a.cfg.MachineName)
	form.Set("cpu_cores", strconv.Itoa(r.CPUCores))
	form.Set("ram_used", strconv.FormatInt(r.RAMUsed, 10))
	form.Set("ram_total", strconv.FormatInt(r.RAMTotal, 10))
	form.Set("storage_used", strconv.FormatInt(r.StorageUsed, 10))
	form.Set("storage_total", strconv.FormatInt(r.StorageTotal, 10))
	if r.CPUTemp != nil {
		form.Set("cpu_temp", strconv.FormatFloat(*r.CPUTemp, 'f', 2, 64))
	}
	form.Set("network_bps", strconv.FormatInt(netBps, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		a.logger.Warn("upload rejected", "url", endpoint, "status", resp.StatusCode, "body", string(body))
		return nil
	}
	a.logger.Info("uploaded", "url", endpoint, "status", resp.StatusCode)
	return nil
}
