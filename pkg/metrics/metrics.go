package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for pacegate components.
type Registry struct {
	// Gate Metrics
	GateAdmissions      *prometheus.CounterVec
	GateAcquireFailures *prometheus.CounterVec
	GateWaitTime        *prometheus.HistogramVec
	GatePacingDelay     *prometheus.HistogramVec
	GateActive          *prometheus.GaugeVec
	GateWaiting         *prometheus.GaugeVec
	GateProtocolErrors  *prometheus.CounterVec

	// Queue Metrics
	QueueDepth     *prometheus.GaugeVec
	QueueDelivered *prometheus.CounterVec
	QueueDropped   *prometheus.CounterVec

	// Dispatch Metrics
	TasksCompleted   *prometheus.CounterVec
	TasksFailed      *prometheus.CounterVec
	TaskDuration     *prometheus.HistogramVec
	WorkerPoolActive *prometheus.GaugeVec
	CronFirings      *prometheus.CounterVec
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry bound to prometheus.DefaultRegisterer,
// creating it on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return NewRegistryWithConfig(Config{Registry: reg})
}

// NewRegistryWithConfig creates a registry honoring the namespace and constant
// labels of config. A nil config.Registry means prometheus.DefaultRegisterer.
func NewRegistryWithConfig(config Config) *Registry {
	reg := config.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ns := config.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	factory := promauto.With(reg)
	labels := config.Labels

	return &Registry{
		GateAdmissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "gate",
				Name:        "admissions_total",
				Help:        "Total number of callers admitted through the gate",
				ConstLabels: labels,
			},
			[]string{"gate_name"},
		),

		GateAcquireFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "gate",
				Name:        "acquire_failures_total",
				Help:        "Acquisitions abandoned before admission, by reason",
				ConstLabels: labels,
			},
			[]string{"gate_name", "reason"},
		),

		GateWaitTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Subsystem:   "gate",
				Name:        "wait_duration_seconds",
				Help:        "Time from Acquire until admission",
				Buckets:     prometheus.ExponentialBuckets(0.001, 2, 15),
				ConstLabels: labels,
			},
			[]string{"gate_name"},
		),

		GatePacingDelay: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Subsystem:   "gate",
				Name:        "pacing_delay_seconds",
				Help:        "Time slept to honor the minimum admission interval",
				Buckets:     prometheus.ExponentialBuckets(0.001, 2, 15),
				ConstLabels: labels,
			},
			[]string{"gate_name"},
		),

		GateActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "gate",
				Name:        "active",
				Help:        "Number of admitted holders that have not released",
				ConstLabels: labels,
			},
			[]string{"gate_name"},
		),

		GateWaiting: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "gate",
				Name:        "waiting",
				Help:        "Number of callers blocked in Acquire",
				ConstLabels: labels,
			},
			[]string{"gate_name"},
		),

		GateProtocolErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "gate",
				Name:        "protocol_errors_total",
				Help:        "Releases rejected as unbalanced or foreign",
				ConstLabels: labels,
			},
			[]string{"gate_name"},
		),

		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "queue",
				Name:        "depth",
				Help:        "Number of items buffered in the queue",
				ConstLabels: labels,
			},
			[]string{"queue_name"},
		),

		QueueDelivered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "queue",
				Name:        "delivered_total",
				Help:        "Total number of items handed to consumers",
				ConstLabels: labels,
			},
			[]string{"queue_name"},
		),

		QueueDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "queue",
				Name:        "dropped_total",
				Help:        "Total number of items dropped by a full queue",
				ConstLabels: labels,
			},
			[]string{"queue_name"},
		),

		TasksCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "workerpool",
				Name:        "tasks_completed_total",
				Help:        "Total number of tasks completed successfully",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		TasksFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "workerpool",
				Name:        "tasks_failed_total",
				Help:        "Total number of tasks that returned an error or panicked",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		TaskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Subsystem:   "workerpool",
				Name:        "task_duration_seconds",
				Help:        "Time spent executing tasks, excluding admission",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		WorkerPoolActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "workerpool",
				Name:        "active_workers",
				Help:        "Number of workers currently executing tasks",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		CronFirings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "scheduler",
				Name:        "firings_total",
				Help:        "Cron firings dispatched through the gate, by outcome",
				ConstLabels: labels,
			},
			[]string{"scheduler_name", "outcome"},
		),
	}
}
