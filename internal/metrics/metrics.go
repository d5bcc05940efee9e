package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels runs that produced a report.
	OutcomeSuccess = "success"
	// OutcomeAborted labels runs stopped by the supervisor gate.
	OutcomeAborted = "aborted"
	// OutcomeError labels runs that failed in a component or before the pipeline started.
	OutcomeError = "error"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "triage",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	runDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "triage",
			Name:      "run_seconds",
			Help:      "End-to-end pipeline latency in seconds.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120, 180},
		},
	)

	stageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "triage",
			Name:      "stage_seconds",
			Help:      "Per-component stage latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		},
		[]string{"component"},
	)

	stageFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "triage",
			Name:      "stage_failures_total",
			Help:      "Stage failures, partitioned by component.",
		},
		[]string{"component"},
	)

	supervisorDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "triage",
			Name:      "supervisor_decisions_total",
			Help:      "Supervisor gate decisions.",
		},
		[]string{"decision"},
	)

	modelTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "triage",
			Name:      "model_tokens_total",
			Help:      "Tokens reported by the model provider, partitioned by agent and direction.",
		},
		[]string{"agent", "direction"},
	)
)

// Register attaches triage collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		runsTotal,
		runDurationSeconds,
		stageDurationSeconds,
		stageFailuresTotal,
		supervisorDecisionsTotal,
		modelTokensTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRun records a run duration and outcome label. Unknown outcomes count as errors.
func ObserveRun(duration time.Duration, outcome string) {
	switch outcome {
	case OutcomeSuccess, OutcomeAborted:
	default:
		outcome = OutcomeError
	}
	runsTotal.WithLabelValues(outcome).Inc()
	runDurationSeconds.Observe(clamp(duration).Seconds())
}

// ObserveStage records one stage execution.
func ObserveStage(component string, duration time.Duration, failed bool) {
	stageDurationSeconds.WithLabelValues(component).Observe(clamp(duration).Seconds())
	if failed {
		stageFailuresTotal.WithLabelValues(component).Inc()
	}
}

// ObserveDecision counts a supervisor decision.
func ObserveDecision(decision string) {
	supervisorDecisionsTotal.WithLabelValues(decision).Inc()
}

// ObserveTokens adds one model call's token usage. Providers that report nothing add zero.
func ObserveTokens(agent string, input, output int) {
	if input > 0 {
		modelTokensTotal.WithLabelValues(agent, "input").Add(float64(input))
	}
	if output > 0 {
		modelTokensTotal.WithLabelValues(agent, "output").Add(float64(output))
	}
}

func clamp(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
