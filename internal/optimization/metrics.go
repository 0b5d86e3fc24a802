package optimization

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes sweep progress counters for scraping. A long sweep is the
// one part of the system that runs unattended for hours; these are the
// signals an operator watches instead of the log stream.
type Metrics struct {
	EvaluationsTotal    prometheus.Counter
	FailuresTotal       *prometheus.CounterVec
	GateRejectionsTotal *prometheus.CounterVec
	EvaluationSeconds   prometheus.Histogram
}

// NewMetrics registers the sweep metrics on the given registerer. Passing a
// fresh prometheus.NewRegistry keeps tests isolated from the default
// registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EvaluationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "strategy_validator",
			Subsystem: "sweep",
			Name:      "evaluations_total",
			Help:      "Candidate parameter sets evaluated.",
		}),
		FailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "strategy_validator",
			Subsystem: "sweep",
			Name:      "failures_total",
			Help:      "Failed evaluations by failure kind.",
		}, []string{"kind"}),
		GateRejectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "strategy_validator",
			Subsystem: "sweep",
			Name:      "gate_rejections_total",
			Help:      "Evaluations rejected before ranking, by gate.",
		}, []string{"gate"}),
		EvaluationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "strategy_validator",
			Subsystem: "sweep",
			Name:      "evaluation_seconds",
			Help:      "Wall time per candidate evaluation.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}
}
