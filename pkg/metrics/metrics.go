// Package metrics exposes Prometheus instrumentation for the update flow.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds every drcflash collector
	Registry = prometheus.NewRegistry()

	// ReattachTotal counts reattach attempts by target state and result (ok/failed/noop)
	ReattachTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drcflash_reattach_total",
			Help: "Total number of DRC reattach attempts.",
		},
		[]string{"target", "result"},
	)

	// SessionsTotal counts finished sessions by kind and outcome (done/error/cancelled)
	SessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drcflash_sessions_total",
			Help: "Total number of finished update sessions.",
		},
		[]string{"kind", "outcome"},
	)

	// PhaseTransitionsTotal counts entries into each session phase
	PhaseTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drcflash_phase_transitions_total",
			Help: "Total number of transitions into each update phase.",
		},
		[]string{"phase"},
	)

	// FlashProgress is the last device-reported flashing progress
	FlashProgress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "drcflash_flash_progress_percent",
			Help: "Last flashing progress reported by the DRC (0-100).",
		},
	)
)

func init() {
	Registry.MustRegister(ReattachTotal)
	Registry.MustRegister(SessionsTotal)
	Registry.MustRegister(PhaseTransitionsTotal)
	Registry.MustRegister(FlashProgress)
}

// Endpoint is the path metrics are served on
const Endpoint = "/metrics"

// Handler serves the registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// NewServer returns an HTTP server exposing the registry on Endpoint
func NewServer(addr string) *http.Server {
	router := http.NewServeMux()
	router.Handle(Endpoint, Handler())

	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
