package observability

import (
	"context"

	"github.com/aretw0/yol/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess = "success"
	outcomeError   = "error"
)

// Metrics holds the collectors for runs and transitions.
type Metrics struct {
	runsTotal          *prometheus.CounterVec
	runDuration        *prometheus.HistogramVec
	transitionsTotal   *prometheus.CounterVec
	transitionDuration *prometheus.HistogramVec
	currentState       *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "yol_runs_total",
			Help: "Total number of runner executions by runner and outcome",
		}, []string{"runner", "outcome"}),

		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "yol_run_duration_seconds",
			Help:    "Duration of runner executions",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		}, []string{"runner", "outcome"}),

		transitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "yol_transitions_total",
			Help: "Total number of transition actions by runner, target state and outcome",
		}, []string{"runner", "target", "outcome"}),

		transitionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "yol_transition_duration_seconds",
			Help:    "Duration of transition actions",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 120},
		}, []string{"runner", "target"}),

		currentState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "yol_runner_state",
			Help: "Set to 1 for the state each runner last reached",
		}, []string{"runner", "state"}),
	}
}

// Hooks returns lifecycle hooks feeding the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunEnd:        m.observeRun,
		OnTransitionEnd: m.observeTransition,
	}
}

func (m *Metrics) observeRun(_ context.Context, e *domain.RunEvent) {
	outcome := outcomeOf(e.Err)
	m.runsTotal.WithLabelValues(e.Runner, outcome).Inc()
	m.runDuration.WithLabelValues(e.Runner, outcome).Observe(e.Duration.Seconds())

	m.currentState.DeletePartialMatch(prometheus.Labels{"runner": e.Runner})
	m.currentState.WithLabelValues(e.Runner, stateLabel(e.State)).Set(1)
}

func (m *Metrics) observeTransition(_ context.Context, e *domain.TransitionEvent) {
	m.transitionsTotal.WithLabelValues(e.Runner, e.Target, outcomeOf(e.Err)).Inc()
	m.transitionDuration.WithLabelValues(e.Runner, e.Target).Observe(e.Duration.Seconds())
}

func outcomeOf(err error) string {
	if err != nil {
		return outcomeError
	}
	return outcomeSuccess
}

func stateLabel(state string) string {
	if domain.IsInitial(state) {
		return "initial"
	}
	return state
}
