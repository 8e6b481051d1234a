package engine

import (
	"time"

	"github.com/budgetflow/automations/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
)

// Evaluation results recorded by Metrics.
const (
	resultMatched   = "matched"
	resultSkipped   = "skipped"
	resultFailed    = "failed"
	resultDebounced = "debounced"
)

// Metrics holds the Prometheus collectors of the rule engine. A nil *Metrics records nothing.
type Metrics struct {
	eventsTotal         *prometheus.CounterVec
	evaluationsTotal    *prometheus.CounterVec
	actionFailuresTotal *prometheus.CounterVec
	ruleDuration        prometheus.Histogram
	activeEngines       prometheus.Gauge
}

// NewMetrics creates the engine collectors and registers them with registerer.
// A nil registerer disables metrics.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		return nil
	}

	metrics := &Metrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "automations",
			Subsystem: "engine",
			Name:      "events_total",
			Help:      "Entity events processed by rule engines",
		}, []string{"entity_type", "event"}),

		evaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "automations",
			Subsystem: "engine",
			Name:      "evaluations_total",
			Help:      "Rule evaluations by result",
		}, []string{"result"}),

		actionFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "automations",
			Subsystem: "engine",
			Name:      "action_failures_total",
			Help:      "Actions that returned an error",
		}, []string{"action_type"}),

		ruleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "automations",
			Subsystem: "engine",
			Name:      "rule_duration_seconds",
			Help:      "Time spent evaluating and executing one rule",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),

		activeEngines: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "automations",
			Subsystem: "engine",
			Name:      "active_engines",
			Help:      "Workspaces with an initialized rule engine",
		}),
	}

	registerer.MustRegister(
		metrics.eventsTotal,
		metrics.evaluationsTotal,
		metrics.actionFailuresTotal,
		metrics.ruleDuration,
		metrics.activeEngines,
	)

	return metrics
}

func (m *Metrics) recordEvent(entityType models.EntityType, event string) {
	if m == nil {
		return
	}

	m.eventsTotal.WithLabelValues(string(entityType), event).Inc()
}

func (m *Metrics) recordEvaluation(result string, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.evaluationsTotal.WithLabelValues(result).Inc()

	if result != resultDebounced {
		m.ruleDuration.Observe(elapsed.Seconds())
	}
}

func (m *Metrics) recordActionResults(results []models.ActionResult) {
	if m == nil {
		return
	}

	for _, result := range results {
		if !result.Success {
			m.actionFailuresTotal.WithLabelValues(result.ActionType).Inc()
		}
	}
}

func (m *Metrics) setActiveEngines(n int) {
	if m == nil {
		return
	}

	m.activeEngines.Set(float64(n))
}
