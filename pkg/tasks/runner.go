package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/nodetasks/pkg/lock"
	"github.com/dmitrymomot/nodetasks/pkg/logger"
	"github.com/dmitrymomot/nodetasks/pkg/statemachine"
)

// Runner states
const (
	StateIdle         = statemachine.StringState("idle")
	StateLockPending  = statemachine.StringState("lock_pending")
	StateDraining     = statemachine.StringState("draining")
	StateRescheduling = statemachine.StringState("rescheduling")
)

const (
	eventStart     = statemachine.StringEvent("start")
	eventLocked    = statemachine.StringEvent("locked")
	eventContended = statemachine.StringEvent("contended")
	eventDrained   = statemachine.StringEvent("drained")
	eventFinished  = statemachine.StringEvent("finished")
)

// Locker serialises runner cycles across instances. *lock.Coordinator implements it.
type Locker interface {
	WithLock(ctx context.Context, resource string, ttl time.Duration, fn func(ctx context.Context, h lock.Handle) error) error
	Coordinated() bool
}

// Report summarises one runner cycle
type Report struct {
	Processed int           `json:"processed"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Remaining int64         `json:"remaining"`
	Contended bool          `json:"contended"`
	Duration  time.Duration `json:"duration"`
}

// Runner drains due tasks under the distributed lock and dispatches each to
// the executor registered for its type.
type Runner struct {
	store   Store
	locker  Locker
	invoker *Invoker
	state   statemachine.StateMachine

	mu        sync.RWMutex
	executors map[string]Executor

	lockResource string
	lockTTL      time.Duration
	retryDelay   time.Duration
	backoffDelay time.Duration
	backoffAfter int
	now          func() time.Time
	logger       *slog.Logger
	observer     Observer
}

// NewRunner creates a new task runner
func NewRunner(store Store, locker Locker, invoker *Invoker, opts ...RunnerOption) (*Runner, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if locker == nil {
		return nil, ErrCoordinatorNil
	}
	if invoker == nil {
		return nil, ErrInvokerNil
	}

	options := &runnerOptions{
		lockResource: DefaultLockResource,
		lockTTL:      DefaultLockTTL,
		retryDelay:   DefaultRetryDelay,
		backoffDelay: DefaultBackoffDelay,
		backoffAfter: DefaultBackoffAfterAttempts,
		now:          time.Now,
		logger:       slog.Default(),
		observer:     NoopObserver{},
	}
	for _, opt := range opts {
		opt(options)
	}

	r := &Runner{
		store:   store,
		locker:  locker,
		invoker: invoker,
		state: statemachine.MustNew(StateIdle,
			// the invoker is deferred under the same lock as the idle check
			statemachine.WithTransition(StateIdle, StateLockPending, eventStart,
				statemachine.WithGuard(contextAlive),
				statemachine.WithAction(func(context.Context, statemachine.State, statemachine.State, statemachine.Event, any) error {
					invoker.Defer()
					return nil
				}),
			),
			statemachine.WithTransitions([]statemachine.TransitionDef{
				{From: StateLockPending, To: StateDraining, Event: eventLocked},
				{From: StateLockPending, To: StateIdle, Event: eventContended},
				{From: StateDraining, To: StateRescheduling, Event: eventDrained},
				{From: StateRescheduling, To: StateIdle, Event: eventFinished},
			}),
		),
		executors:    make(map[string]Executor),
		lockResource: options.lockResource,
		lockTTL:      options.lockTTL,
		retryDelay:   options.retryDelay,
		backoffDelay: options.backoffDelay,
		backoffAfter: options.backoffAfter,
		now:          options.now,
		logger:       options.logger.With(logger.Component("task_runner")),
		observer:     options.observer,
	}

	if err := r.RegisterExecutors(options.executors...); err != nil {
		return nil, err
	}
	return r, nil
}

// RegisterExecutor registers an executor for its task type
func (r *Runner) RegisterExecutor(e Executor) error {
	if e == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.executors[e.Type()]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateExecutor, e.Type())
	}
	r.executors[e.Type()] = e
	return nil
}

// RegisterExecutors registers multiple executors
func (r *Runner) RegisterExecutors(executors ...Executor) error {
	for _, e := range executors {
		if err := r.RegisterExecutor(e); err != nil {
			return err
		}
	}
	return nil
}

// State returns the current runner state
func (r *Runner) State() statemachine.State {
	return r.state.Current()
}

// Invoker returns the invoker the runner defers while draining
func (r *Runner) Invoker() *Invoker {
	return r.invoker
}

// Run executes one cycle: lock, drain at most BatchSize due tasks, reschedule
// or delete each, release, and re-trigger itself when due tasks remain.
//
// Lock contention is not an error: the report has Contended set and Run
// returns nil. A concurrent Run in the same process returns ErrRunnerBusy after
// recording a re-trigger. A canceled ctx returns its error without starting.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	if err := r.state.Fire(ctx, eventStart, nil); err != nil {
		if statemachine.IsTransitionRejectedError(err) {
			return Report{}, ctx.Err()
		}
		r.invoker.Invoke(ctx)
		return Report{}, ErrRunnerBusy
	}
	defer r.invoker.Resume()
	defer func() { _ = r.state.Reset() }()

	start := r.now()
	var report Report

	err := r.locker.WithLock(ctx, r.lockResource, r.lockTTL, func(ctx context.Context, h lock.Handle) error {
		r.transition(ctx, eventLocked)
		return r.drain(ctx, h, &report)
	})
	if lock.IsContention(err) {
		r.transition(ctx, eventContended)
		report.Contended = true
		report.Duration = r.now().Sub(start)
		r.logger.InfoContext(ctx, "runner lock is held elsewhere, skipping cycle",
			logger.Resource(r.lockResource),
			logger.Error(err))
		r.observer.LockContended(ctx, r.lockResource)
		r.observer.RunFinished(ctx, report)
		return report, nil
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "runner cycle failed", logger.Error(err))
		return report, err
	}

	r.transition(ctx, eventDrained)

	remaining, err := r.store.CountTasks(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to count due tasks", logger.Error(err))
		return report, fmt.Errorf("count due tasks: %w", err)
	}
	report.Remaining = remaining
	if remaining > 0 {
		// flushed by Resume once this cycle returns
		r.invoker.Invoke(ctx)
	}

	r.transition(ctx, eventFinished)
	report.Duration = r.now().Sub(start)
	r.observer.RunFinished(ctx, report)

	if report.Processed > 0 {
		r.logger.InfoContext(ctx, "runner cycle finished",
			logger.Group("report",
				slog.Int("processed", report.Processed),
				slog.Int("succeeded", report.Succeeded),
				slog.Int("failed", report.Failed),
				slog.Int("skipped", report.Skipped),
				slog.Int64("remaining", report.Remaining),
			),
			logger.Duration(report.Duration))
	}
	return report, nil
}

// drain processes one batch while the lock is held
func (r *Runner) drain(ctx context.Context, h lock.Handle, report *Report) error {
	batch, err := r.store.ReadTasksToExecute(ctx)
	if err != nil {
		return fmt.Errorf("read tasks to execute: %w", err)
	}
	if len(batch) == 0 {
		return nil
	}

	if r.locker.Coordinated() {
		if extra := r.extraLockTime(batch); extra > 0 {
			if err := h.Extend(ctx, r.lockTTL+extra); err != nil {
				r.logger.WarnContext(ctx, "failed to extend runner lock",
					logger.Resource(r.lockResource),
					logger.Duration(r.lockTTL+extra),
					logger.Error(err))
			}
		}
	}

	// sequential on purpose: priority order must hold within a batch
	for _, task := range batch {
		report.Processed++
		switch r.process(ctx, task) {
		case outcomeSucceeded:
			report.Succeeded++
		case outcomeSkipped:
			report.Skipped++
		default:
			report.Failed++
		}
	}
	return nil
}

func (r *Runner) extraLockTime(batch []*Task) time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var extra time.Duration
	for _, task := range batch {
		if e, ok := r.executors[task.Type]; ok {
			extra += e.ExtendLockTime()
		}
	}
	return extra
}

type outcome int

const (
	outcomeSucceeded outcome = iota
	outcomeFailed
	outcomeSkipped
)

func (r *Runner) process(ctx context.Context, task *Task) outcome {
	r.mu.RLock()
	e, ok := r.executors[task.Type]
	r.mu.RUnlock()

	if !ok {
		r.markError(ctx, task, nil, fmt.Errorf("%w: %q", ErrExecutorNotFound, task.Type))
		return outcomeFailed
	}

	skip, err := r.shouldSkip(ctx, e, task)
	if err != nil {
		r.markError(ctx, task, e, err)
		return outcomeFailed
	}
	if skip {
		r.markSkip(ctx, task, e)
		return outcomeSkipped
	}

	start := r.now()
	if err := r.execute(ctx, e, task); err != nil {
		r.markError(ctx, task, e, err)
		return outcomeFailed
	}
	duration := r.now().Sub(start)

	if err := r.store.RemoveTask(ctx, task); err != nil {
		// the task ran; a leftover record is retried and must be tolerated by idempotent executors
		r.logger.ErrorContext(ctx, "failed to remove completed task",
			logger.TaskID(task.ID),
			logger.TaskType(task.Type),
			logger.Error(err))
	}

	r.logger.DebugContext(ctx, "task completed",
		logger.TaskID(task.ID),
		logger.TaskType(task.Type),
		logger.NodeID(task.NodeID),
		logger.Duration(duration))
	r.observer.TaskCompleted(ctx, task, duration)
	return outcomeSucceeded
}

func (r *Runner) shouldSkip(ctx context.Context, e Executor, task *Task) (skip bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: skip check: %v", ErrExecutorPanic, rec)
		}
	}()
	return e.SkipTaskExecution(ctx, task), nil
}

func (r *Runner) execute(ctx context.Context, e Executor, task *Task) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrExecutorPanic, rec)
		}
	}()

	if _, err := Execute(ctx, e, task); err != nil {
		return fmt.Errorf("%w: %w", ErrExecutorFailed, err)
	}
	return nil
}

// markError reschedules a failed task. e is nil when no executor matched.
func (r *Runner) markError(ctx context.Context, task *Task, e Executor, cause error) {
	var override func(*Task) (time.Time, error)
	if e != nil {
		override = e.NextExecutionDateOnError
	}
	next := r.nextExecutionDate(ctx, task, override)

	task.ExecuteDate = &next
	task.ExecutionCount++

	r.logger.ErrorContext(ctx, "task failed",
		logger.TaskID(task.ID),
		logger.TaskType(task.Type),
		logger.NodeID(task.NodeID),
		logger.RetryCount(task.ExecutionCount),
		slog.Time("execute_date", next),
		logger.Error(cause))
	r.observer.TaskFailed(ctx, task, cause)

	r.update(ctx, task)
}

func (r *Runner) markSkip(ctx context.Context, task *Task, e Executor) {
	next := r.nextExecutionDate(ctx, task, e.NextExecutionDateOnSkip)

	task.ExecuteDate = &next
	task.SkipCount++
	if !e.SkipExecutionCountIncreasing() {
		task.ExecutionCount++
	}

	r.logger.DebugContext(ctx, "task skipped",
		logger.TaskID(task.ID),
		logger.TaskType(task.Type),
		slog.Int("skip_count", task.SkipCount),
		slog.Time("execute_date", next))
	r.observer.TaskSkipped(ctx, task)

	r.update(ctx, task)
}

func (r *Runner) update(ctx context.Context, task *Task) {
	if err := r.store.UpdateTask(ctx, task); err != nil {
		r.logger.ErrorContext(ctx, "failed to reschedule task",
			logger.TaskID(task.ID),
			logger.TaskType(task.Type),
			logger.Error(err))
	}
}

// nextExecutionDate applies the executor override when it yields a non-zero
// time without error or panic, and the default policy otherwise.
func (r *Runner) nextExecutionDate(ctx context.Context, task *Task, override func(*Task) (time.Time, error)) time.Time {
	now := r.now()
	if override != nil {
		if d, err := safeOverride(override, task); err != nil {
			r.logger.WarnContext(ctx, "executor retry date override failed, using default policy",
				logger.TaskID(task.ID),
				logger.TaskType(task.Type),
				logger.Error(err))
		} else if !d.IsZero() {
			return d
		}
	}

	if task.ExecutionCount <= r.backoffAfter {
		return now.Add(r.retryDelay)
	}
	return now.Add(r.backoffDelay)
}

func safeOverride(fn func(*Task) (time.Time, error), task *Task) (d time.Time, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrExecutorPanic, rec)
		}
	}()
	// the hook sees a copy so a failing override cannot leave partial edits
	return fn(task.Clone())
}

func contextAlive(ctx context.Context, _ statemachine.State, _ statemachine.Event, _ any) bool {
	return ctx.Err() == nil
}

func (r *Runner) transition(ctx context.Context, event statemachine.Event) {
	if err := r.state.Fire(ctx, event, nil); err != nil {
		r.logger.DebugContext(ctx, "unexpected runner transition",
			slog.String("event", event.Name()),
			logger.Error(err))
	}
}
