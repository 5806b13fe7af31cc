package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeOK = "ok"

	metricsNamespace = "gamecodebase"
)

// AdminMetrics counts operator actions and git sync results.
type AdminMetrics struct {
	registry       *prometheus.Registry
	actions        *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec
	syncResults    *prometheus.CounterVec
}

// NewAdminMetrics registers the admin collectors on a private registry
// together with the Go runtime and process collectors.
func NewAdminMetrics() *AdminMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return newAdminMetrics(registry)
}

func newAdminMetrics(registry *prometheus.Registry) *AdminMetrics {
	actions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "actions_total",
		Help:      "Operator actions by name and outcome.",
	}, []string{"action", "outcome"})
	actionDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "action_duration_seconds",
		Help:      "Load, mutate and save latency per action, including auto-push.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"action"})
	syncResults := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "git_sync_total",
		Help:      "Pull and push results by final step.",
	}, []string{"operation", "step", "outcome"})

	registry.MustRegister(actions, actionDuration, syncResults)
	return &AdminMetrics{
		registry:       registry,
		actions:        actions,
		actionDuration: actionDuration,
		syncResults:    syncResults,
	}
}

// ObserveAction records one dispatched action. An empty outcome counts as ok.
func (m *AdminMetrics) ObserveAction(action, outcome string, elapsed time.Duration) {
	if outcome == "" {
		outcome = OutcomeOK
	}
	m.actions.WithLabelValues(action, outcome).Inc()
	m.actionDuration.WithLabelValues(action).Observe(elapsed.Seconds())
}

// ObserveSync records a pull or push result.
func (m *AdminMetrics) ObserveSync(operation, step string, ok bool) {
	outcome := "failed"
	if ok {
		outcome = OutcomeOK
	}
	m.syncResults.WithLabelValues(operation, step, outcome).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *AdminMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
