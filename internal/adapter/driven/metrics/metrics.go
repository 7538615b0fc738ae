// Package metrics exposes refresh telemetry as Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ericfisherdev/fitpanel/internal/domain/model"
	"github.com/ericfisherdev/fitpanel/internal/domain/port/driven"
)

const namespace = "fitpanel"

// Compile-time interface satisfaction check.
var _ driven.RefreshObserver = (*Recorder)(nil)

// Recorder owns a private registry so tests and multiple instances never
// collide on the global default.
type Recorder struct {
	registry *prometheus.Registry

	runsTotal    *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	pullsTotal   *prometheus.CounterVec
	lastComplete prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewRecorder creates a Recorder with Go runtime and process collectors registered.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "refresh",
				Name:      "runs_total",
				Help:      "Refresh runs by outcome",
			},
			[]string{"outcome"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "refresh",
				Name:      "run_duration_seconds",
				Help:      "Duration of refresh runs that acquired the lock",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"outcome"},
		),
		pullsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "refresh",
				Name:      "provider_pulls_total",
				Help:      "Provider pulls by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		lastComplete: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "refresh",
				Name:      "last_complete_timestamp_seconds",
				Help:      "Unix time of the last completed refresh run",
			},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
	}
}

// ObserveRun records a run outcome. Skipped runs never held the lock and
// carry no duration.
func (r *Recorder) ObserveRun(outcome string, duration time.Duration) {
	r.runsTotal.WithLabelValues(outcome).Inc()
	if outcome == driven.OutcomeSkipped {
		return
	}
	r.runDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	if outcome == driven.OutcomeComplete {
		r.lastComplete.SetToCurrentTime()
	}
}

// ObservePull records one provider's outcome within a run.
func (r *Recorder) ObservePull(provider model.ProviderID, outcome string) {
	r.pullsTotal.WithLabelValues(string(provider), outcome).Inc()
}

// ObserveHTTP records one served request. route is the matched pattern,
// never the raw path, to keep label cardinality bounded.
func (r *Recorder) ObserveHTTP(method, route string, status int, duration time.Duration) {
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
