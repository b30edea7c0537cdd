package tasks

import (
	"log/slog"
	"time"
)

// Runner defaults
const (
	DefaultLockResource         = "tasks:runner"
	DefaultLockTTL              = 30 * time.Second
	DefaultRetryDelay           = 10 * time.Minute
	DefaultBackoffDelay         = time.Hour
	DefaultBackoffAfterAttempts = 3
)

// RunnerOption is a functional option for configuring a runner
type RunnerOption func(*runnerOptions)

type runnerOptions struct {
	lockResource string
	lockTTL      time.Duration
	retryDelay   time.Duration
	backoffDelay time.Duration
	backoffAfter int
	executors    []Executor
	now          func() time.Time
	logger       *slog.Logger
	observer     Observer
}

// WithLockResource sets the resource key the runner locks
func WithLockResource(resource string) RunnerOption {
	return func(o *runnerOptions) {
		if resource != "" {
			o.lockResource = resource
		}
	}
}

// WithLockTTL sets the default lock lifetime of a runner cycle
func WithLockTTL(d time.Duration) RunnerOption {
	return func(o *runnerOptions) {
		if d > 0 {
			o.lockTTL = d
		}
	}
}

// WithRetryPolicy sets the default rescheduling policy: a task that has
// failed or been skipped at most backoffAfter times is retried after
// retryDelay, later attempts wait backoffDelay.
func WithRetryPolicy(retryDelay, backoffDelay time.Duration, backoffAfter int) RunnerOption {
	return func(o *runnerOptions) {
		if retryDelay > 0 {
			o.retryDelay = retryDelay
		}
		if backoffDelay > 0 {
			o.backoffDelay = backoffDelay
		}
		if backoffAfter >= 0 {
			o.backoffAfter = backoffAfter
		}
	}
}

// WithExecutors registers executors at construction time
func WithExecutors(executors ...Executor) RunnerOption {
	return func(o *runnerOptions) {
		o.executors = append(o.executors, executors...)
	}
}

// WithClock overrides the time source used for scheduling decisions
func WithClock(now func() time.Time) RunnerOption {
	return func(o *runnerOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRunnerLogger sets the logger for the runner
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(o *runnerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRunnerObserver sets the observer notified about task outcomes
func WithRunnerObserver(observer Observer) RunnerOption {
	return func(o *runnerOptions) {
		if observer != nil {
			o.observer = observer
		}
	}
}
