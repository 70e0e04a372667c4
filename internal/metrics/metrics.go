package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	childStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "homelab",
			Subsystem: "supervisor",
			Name:      "child_starts_total",
			Help:      "Number of child processes spawned.",
		}, []string{"name"},
	)
	childStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "homelab",
			Subsystem: "supervisor",
			Name:      "child_stops_total",
			Help:      "Number of child terminations driven by the supervisor.",
		}, []string{"name"},
	)
	readingsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "homelab",
			Subsystem: "api",
			Name:      "readings_ingested_total",
			Help:      "Number of metric readings accepted by the API.",
		}, []string{"machine"},
	)
	machinesTracked = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "homelab",
			Subsystem: "api",
			Name:      "machines_tracked",
			Help:      "Number of machines currently stored.",
		},
	)
)

// Register registers all collectors on reg. Duplicate registration is
// reported by prometheus; callers treat that as already-registered.
func Register(reg prometheus.Registerer) error {
	cs := []prometheus.Collector{childStarts, childStops, readingsIngested, machinesTracked}
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// RegisterDefault registers on the default prometheus registry.
func RegisterDefault() error { return Register(prometheus.DefaultRegisterer) }

func ChildStarted(name string) {
	if regOK.Load() {
		childStarts.WithLabelValues(name).Inc()
	}
}

func ChildStopped(name string) {
	if regOK.Load() {
		childStops.WithLabelValues(name).Inc()
	}
}

func ReadingIngested(machine string) {
	if regOK.Load() {
		readingsIngested.WithLabelValues(machine).Inc()
	}
}

func SetMachinesTracked(n int) {
	if regOK.Load() {
		machinesTracked.Set(float64(n))
	}
}

// Handler returns the /metrics handler for embedding in the API router.
func Handler() http.Handler { return promhttp.Handler() }

// Serve exposes /metrics on its own listener when a dedicated metrics
// address is configured.
func Serve(listen string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server.ListenAndServe()
}
