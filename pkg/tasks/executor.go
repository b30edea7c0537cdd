package tasks

import (
	"context"
	"time"
)

type (
	// Executor performs the work for one task type.
	//
	// Hooks other than Type and ProcessTask are optional; embed BaseExecutor to
	// get their defaults.
	Executor interface {
		// Type is the dispatch key matched against Task.Type.
		Type() string

		// ProcessTask runs the task. Returning nil deletes the task.
		ProcessTask(ctx context.Context, task *Task) error

		// SkipTaskExecution defers the task without running it.
		SkipTaskExecution(ctx context.Context, task *Task) bool

		// ExtendLockTime is the extra lock time this executor's work may need.
		ExtendLockTime() time.Duration

		// SkipExecutionCountIncreasing keeps a skip from counting as an attempt.
		SkipExecutionCountIncreasing() bool

		// NextExecutionDateOnError overrides the retry date after a failure.
		// A zero time selects the default policy.
		NextExecutionDateOnError(task *Task) (time.Time, error)

		// NextExecutionDateOnSkip overrides the retry date after a skip.
		// A zero time selects the default policy.
		NextExecutionDateOnSkip(task *Task) (time.Time, error)
	}

	// ProcessFunc is the work function adapted by NewExecutor
	ProcessFunc func(ctx context.Context, task *Task) error
)

// BaseExecutor implements every optional Executor hook as a no-op
type BaseExecutor struct{}

func (BaseExecutor) SkipTaskExecution(context.Context, *Task) bool { return false }

func (BaseExecutor) ExtendLockTime() time.Duration { return 0 }

func (BaseExecutor) SkipExecutionCountIncreasing() bool { return false }

func (BaseExecutor) NextExecutionDateOnError(*Task) (time.Time, error) { return time.Time{}, nil }

func (BaseExecutor) NextExecutionDateOnSkip(*Task) (time.Time, error) { return time.Time{}, nil }

// NewExecutor adapts a function into an Executor for taskType
func NewExecutor(taskType string, fn ProcessFunc) Executor {
	return &funcExecutor{taskType: taskType, fn: fn}
}

type funcExecutor struct {
	BaseExecutor
	taskType string
	fn       ProcessFunc
}

func (e *funcExecutor) Type() string {
	return e.taskType
}

func (e *funcExecutor) ProcessTask(ctx context.Context, task *Task) error {
	return e.fn(ctx, task)
}

// Execute runs task with e when the task type matches the executor.
// A mismatch returns false without calling ProcessTask.
func Execute(ctx context.Context, e Executor, task *Task) (bool, error) {
	if e == nil || task == nil || task.Type != e.Type() {
		return false, nil
	}
	return true, e.ProcessTask(ctx, task)
}
