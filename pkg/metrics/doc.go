// Package metrics provides Prometheus instrumentation for pacegate components.
//
// A Registry owns one set of metric vectors registered on a single
// prometheus.Registerer. Components receive a *Registry and label every
// observation with their own name, so several gates, queues and pools can
// share one registry.
//
// # Quick Start
//
//	g, err := gate.NewWithMetrics(500*time.Millisecond, 2, "github_api")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	http.Handle("/metrics", promhttp.Handler())
//
// # Custom Registry
//
//	reg := prometheus.NewRegistry()
//	m := metrics.NewRegistryWithConfig(metrics.Config{
//		Registry:  reg,
//		Namespace: "crawler",
//		Labels:    prometheus.Labels{"service": "fetcher"},
//	})
//
// Registering two Registries with the same namespace on the same registerer
// panics, as promauto does for any duplicate collector.
//
// # Available Metrics
//
// Gate (label gate_name):
//   - gate_admissions_total
//   - gate_acquire_failures_total (extra label reason: canceled, deadline, error)
//   - gate_wait_duration_seconds
//   - gate_pacing_delay_seconds
//   - gate_active, gate_waiting
//   - gate_protocol_errors_total
//
// Queue (label queue_name): queue_depth, queue_delivered_total, queue_dropped_total.
//
// Worker pool (label pool_name): workerpool_tasks_completed_total,
// workerpool_tasks_failed_total, workerpool_task_duration_seconds,
// workerpool_active_workers.
//
// Scheduler (labels scheduler_name, outcome): scheduler_firings_total.
package metrics
