package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels successful operations.
	OutcomeSuccess = "success"
	// OutcomeError labels failed operations.
	OutcomeError = "error"
)

// Parser tier labels for questionsTotal.
const (
	TierRules    = "rules"
	TierSemantic = "semantic"
	TierCache    = "cache"
	TierFallback = "fallback"
)

var (
	buildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetwatch",
			Name:      "kb_builds_total",
			Help:      "Total number of knowledge-base builds, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	buildSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fleetwatch",
			Name:      "kb_build_seconds",
			Help:      "Knowledge-base build duration in seconds.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
	)

	questionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetwatch",
			Name:      "questions_total",
			Help:      "Questions handled, partitioned by query action and parser tier.",
		},
		[]string{"action", "tier"},
	)

	askSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fleetwatch",
			Name:      "ask_seconds",
			Help:      "End-to-end question answering latency in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)
)

// Register attaches fleetwatch collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		buildsTotal,
		buildSeconds,
		questionsTotal,
		askSeconds,
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

// ObserveBuild records a knowledge-base build duration and outcome.
func ObserveBuild(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	buildsTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	buildSeconds.Observe(duration.Seconds())
}

// ObserveQuestion counts one parsed question by action and parser tier.
func ObserveQuestion(action, tier string) {
	questionsTotal.WithLabelValues(action, tier).Inc()
}

// ObserveAsk records an end-to-end answering latency.
func ObserveAsk(duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	askSeconds.Observe(duration.Seconds())
}
