// Package metrics exports task pipeline activity to Prometheus.
//
//	collector := metrics.NewCollector()
//	runner, _ := tasks.NewRunner(store, coord, invoker, tasks.WithRunnerObserver(collector))
//	router.Handle("/metrics", collector.Handler())
//
// Exposed series (namespace nodetasks): tasks_created_total,
// tasks_completed_total, tasks_failed_total and tasks_skipped_total by type,
// task_duration_seconds by type, lock_contended_total by resource,
// runner_runs_total by outcome, runner_run_duration_seconds and tasks_due.
package metrics
