// Package metrics defines the Prometheus collectors exported by a pipeline
// run. Every App owns its own registry so parallel runs (and tests) never
// share collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cipipe"

// Metrics groups the collectors of one App. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	pipelineAttempts prometheus.Counter
	pipelineResults  *prometheus.CounterVec
	moduleDuration   *prometheus.HistogramVec
	moduleFailures   *prometheus.CounterVec
	entryResults     *prometheus.CounterVec
	entriesPending   *prometheus.GaugeVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		pipelineAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_attempts_total",
			Help:      "Number of pipeline attempts started, retries included.",
		}),
		pipelineResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_results_total",
			Help:      "Finished pipelines by result.",
		}, []string{"result"}),
		moduleDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "module_execute_duration_seconds",
			Help:      "Duration of module execute steps.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"module"}),
		moduleFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "module_failures_total",
			Help:      "Module failures by module and failure kind.",
		}, []string{"module", "kind"}),
		entryResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_entry_results_total",
			Help:      "Schedule entry outcomes by scheduler phase.",
		}, []string{"phase", "outcome"}),
		entriesPending: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "schedule_entries_pending",
			Help:      "Schedule entries still being processed by a scheduler phase.",
		}, []string{"phase"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) AttemptStarted() {
	if m == nil {
		return
	}
	m.pipelineAttempts.Inc()
}

func (m *Metrics) PipelineFinished(result string) {
	if m == nil {
		return
	}
	m.pipelineResults.WithLabelValues(result).Inc()
}

func (m *Metrics) ModuleExecuted(module string, d time.Duration) {
	if m == nil {
		return
	}
	m.moduleDuration.WithLabelValues(module).Observe(d.Seconds())
}

func (m *Metrics) ModuleFailed(module, kind string) {
	if m == nil {
		return
	}
	m.moduleFailures.WithLabelValues(module, kind).Inc()
}

func (m *Metrics) EntryFinished(phase string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.entryResults.WithLabelValues(phase, outcome).Inc()
}

func (m *Metrics) EntriesPending(phase string, n int) {
	if m == nil {
		return
	}
	m.entriesPending.WithLabelValues(phase).Set(float64(n))
}
