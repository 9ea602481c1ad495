package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PollCycles counts completed poll cycles.
	PollCycles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tasksched_poll_cycles_total",
			Help: "The total number of scheduler poll cycles.",
		},
	)

	// PollErrors counts poll cycles that failed to read the task store.
	PollErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tasksched_poll_errors_total",
			Help: "The total number of poll cycles that failed to query the task store.",
		},
	)

	// TasksExecuted counts task executions by result (success / failure).
	TasksExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasksched_tasks_executed_total",
			Help: "The total number of task executions by result.",
		},
		[]string{"result"},
	)

	// TasksDeactivated counts tasks deactivated by the fail-count threshold.
	TasksDeactivated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tasksched_tasks_deactivated_total",
			Help: "The total number of tasks deactivated after repeated failures.",
		},
	)

	// DispatchDuration is a histogram of assistant dispatch round-trip times.
	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tasksched_dispatch_duration_seconds",
			Help:    "A histogram of response backend dispatch duration.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)

	// TasksInFlight shows the number of tasks currently executing.
	TasksInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tasksched_tasks_in_flight",
			Help: "The number of tasks currently being executed.",
		},
	)
)
