// Package metrics exposes Prometheus instrumentation for probes and
// investigations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/loadwatch/loadwatch/pkg/models"
)

var (
	probesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loadwatch_probes_total",
			Help: "Probe invocations by source, capability and outcome",
		},
		[]string{"source", "capability", "outcome"},
	)

	probeDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loadwatch_probe_duration_seconds",
			Help:    "Probe latency by source and capability",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"source", "capability"},
	)

	investigationsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "loadwatch_investigations_active",
			Help: "Investigations currently running",
		},
	)

	investigationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loadwatch_investigations_total",
			Help: "Finished investigations by verdict kind",
		},
		[]string{"kind"},
	)

	investigationDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "loadwatch_investigation_duration_seconds",
			Help:    "End-to-end investigation duration",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)
)

// Collector implements the probe and orchestrator observer interfaces
// over the package-level collectors.
type Collector struct{}

// NewCollector returns the shared collector.
func NewCollector() *Collector { return &Collector{} }

// ObserveProbe records one finished probe.
func (c *Collector) ObserveProbe(source, capability string, outcome models.Outcome, seconds float64) {
	probesTotal.WithLabelValues(source, capability, string(outcome)).Inc()
	probeDurationSeconds.WithLabelValues(source, capability).Observe(seconds)
}

// InvestigationStarted records one investigation entering flight.
func (c *Collector) InvestigationStarted() {
	investigationsActive.Inc()
}

// InvestigationFinished records one investigation leaving flight.
func (c *Collector) InvestigationFinished(kind models.VerdictKind, duration time.Duration) {
	investigationsActive.Dec()
	investigationsTotal.WithLabelValues(string(kind)).Inc()
	investigationDurationSeconds.Observe(duration.Seconds())
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
