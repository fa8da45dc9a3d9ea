// Package metrics exports scan outcome counters and latencies for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zombor/dsr-tracker/internal/scan"
)

const namespace = "dsr_tracker"

// Recorder owns a registry and the scan metrics registered on it.
type Recorder struct {
	registry   *prometheus.Registry
	outcomes   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	difference prometheus.Gauge
}

// NewRecorder creates a Recorder with its own registry, including the Go
// runtime and process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Scan attempts by terminal state and reject reason.",
		}, []string{"state", "reason"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Time from capture to terminal state.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		}, []string{"state"}),
		difference: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cash_difference_dollars",
			Help:      "Cash difference of the most recent reconciled report.",
		}),
	}
}

// ObserveScan records a terminal outcome. It matches scan.Observer.
func (r *Recorder) ObserveScan(out scan.Outcome, elapsed time.Duration) {
	r.outcomes.WithLabelValues(out.State.String(), string(out.Reason)).Inc()
	r.duration.WithLabelValues(out.State.String()).Observe(elapsed.Seconds())
	if out.Report != nil {
		r.difference.Set(out.Report.CashDifference.InexactFloat64())
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
