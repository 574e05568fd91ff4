package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors the scheduler loop publishes
// to and the API serves. One instance is built per process and
// threaded through to whatever needs to record a sample.
type Metrics struct {
	RoundsTotal     prometheus.Counter
	RoundErrors     prometheus.Counter
	RoundDuration   prometheus.Histogram
	TasksSelected   prometheus.Counter
	Reward          prometheus.Histogram
	EventsTotal     *prometheus.CounterVec
	ArmSelections   *prometheus.CounterVec
	ProbeOutcomes   *prometheus.CounterVec
	EntityCount     prometheus.Gauge
	TaskPoolSize    prometheus.Gauge
	TracesRecorded  prometheus.Counter
	ProbeInterval   *prometheus.GaugeVec
	EntityUncertain *prometheus.GaugeVec
}

// NewMetrics registers the IADS collectors against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the global
// default registry across parallel test binaries.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RoundsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "iads",
			Subsystem: "scheduler",
			Name:      "rounds_total",
			Help:      "Number of scheduler rounds completed.",
		}),
		RoundErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "iads",
			Subsystem: "scheduler",
			Name:      "round_errors_total",
			Help:      "Number of rounds that overran their round timeout.",
		}),
		RoundDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "iads",
			Subsystem: "scheduler",
			Name:      "round_duration_seconds",
			Help:      "Wall time of a full round: detect, select, probe, fuse.",
			Buckets:   prometheus.DefBuckets,
		}),
		TasksSelected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "iads",
			Subsystem: "scheduler",
			Name:      "tasks_selected_total",
			Help:      "Cumulative probe tasks selected across all rounds.",
		}),
		Reward: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "iads",
			Subsystem: "rfu",
			Name:      "reward",
			Help:      "RFU reward fed back into the CMAB arm update each round.",
			Buckets:   prometheus.LinearBuckets(-1, 0.2, 11),
		}),
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iads",
			Subsystem: "em",
			Name:      "events_total",
			Help:      "Events detected, labeled by event type.",
		}, []string{"type"}),
		ArmSelections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iads",
			Subsystem: "aps",
			Name:      "arm_selections_total",
			Help:      "CMAB strategy selections, labeled by strategy name.",
		}, []string{"strategy"}),
		ProbeOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iads",
			Subsystem: "probe",
			Name:      "outcomes_total",
			Help:      "Probe results, labeled by metric and outcome (success/failure).",
		}, []string{"metric", "outcome"}),
		EntityCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "iads",
			Subsystem: "esm",
			Name:      "entity_count",
			Help:      "Number of entities currently tracked by the state manager.",
		}),
		TaskPoolSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "iads",
			Subsystem: "uq",
			Name:      "task_pool_size",
			Help:      "Size of the candidate task pool produced by the uncertainty quantifier.",
		}),
		TracesRecorded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "iads",
			Subsystem: "traces",
			Name:      "recorded_total",
			Help:      "Spans recorded by the tracer.",
		}),
		ProbeInterval: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "iads",
			Subsystem: "ctlc",
			Name:      "probe_interval_seconds",
			Help:      "Current CTLC-adjusted probe interval, labeled by entity and metric.",
		}, []string{"entity", "metric"}),
		EntityUncertain: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "iads",
			Subsystem: "esm",
			Name:      "entity_uncertainty",
			Help:      "Current U(i,m) uncertainty, labeled by entity and metric.",
		}, []string{"entity", "metric"}),
	}
}
