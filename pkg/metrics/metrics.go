package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/nodetasks/pkg/tasks"
)

const namespace = "nodetasks"

// Collector exports task pipeline events as Prometheus metrics. It implements
// tasks.Observer.
type Collector struct {
	registry *prometheus.Registry

	tasksCreated   prometheus.Counter
	tasksCompleted *prometheus.CounterVec
	tasksFailed    *prometheus.CounterVec
	tasksSkipped   *prometheus.CounterVec
	taskDuration   *prometheus.HistogramVec
	lockContended  *prometheus.CounterVec
	runs           *prometheus.CounterVec
	tasksDue       prometheus.Gauge
	runDuration    prometheus.Histogram
}

// NewCollector creates a collector with its own registry, which also carries
// the Go runtime and process collectors.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		tasksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_created_total",
			Help:      "Tasks persisted by the mutation dispatcher.",
		}),
		tasksCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_completed_total",
			Help:      "Tasks executed successfully and removed.",
		}, []string{"type"}),
		tasksFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_failed_total",
			Help:      "Task executions that failed and were rescheduled.",
		}, []string{"type"}),
		tasksSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_skipped_total",
			Help:      "Task executions deferred by their executor.",
		}, []string{"type"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Duration of successful task executions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		lockContended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_contended_total",
			Help:      "Runner invocations that found the drain lock held elsewhere.",
		}, []string{"resource"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runner_runs_total",
			Help:      "Finished runner invocations by outcome.",
		}, []string{"outcome"}),
		tasksDue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_due",
			Help:      "Due tasks left after the last drain.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "runner_run_duration_seconds",
			Help:      "Duration of runner invocations.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}),
	}

	c.registry.MustRegister(
		c.tasksCreated,
		c.tasksCompleted,
		c.tasksFailed,
		c.tasksSkipped,
		c.taskDuration,
		c.lockContended,
		c.runs,
		c.tasksDue,
		c.runDuration,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the registry the metrics are registered on.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) TasksCreated(_ context.Context, n int) {
	c.tasksCreated.Add(float64(n))
}

func (c *Collector) TaskCompleted(_ context.Context, task *tasks.Task, d time.Duration) {
	c.tasksCompleted.WithLabelValues(task.Type).Inc()
	c.taskDuration.WithLabelValues(task.Type).Observe(d.Seconds())
}

func (c *Collector) TaskFailed(_ context.Context, task *tasks.Task, _ error) {
	c.tasksFailed.WithLabelValues(task.Type).Inc()
}

func (c *Collector) TaskSkipped(_ context.Context, task *tasks.Task) {
	c.tasksSkipped.WithLabelValues(task.Type).Inc()
}

func (c *Collector) LockContended(_ context.Context, resource string) {
	c.lockContended.WithLabelValues(resource).Inc()
}

// RunFinished records the run outcome. The due gauge is only updated by runs
// that drained, since a contended run never counts.
func (c *Collector) RunFinished(_ context.Context, report tasks.Report) {
	c.runDuration.Observe(report.Duration.Seconds())
	if report.Contended {
		c.runs.WithLabelValues("contended").Inc()
		return
	}
	c.runs.WithLabelValues("drained").Inc()
	c.tasksDue.Set(float64(report.Remaining))
}

var _ tasks.Observer = (*Collector)(nil)
