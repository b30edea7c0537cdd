package tasks

import (
	"context"
	"time"
)

// Observer receives pipeline events, typically to export metrics.
// Implementations must be safe for concurrent use and must not block.
type Observer interface {
	TasksCreated(ctx context.Context, n int)
	TaskCompleted(ctx context.Context, task *Task, d time.Duration)
	TaskFailed(ctx context.Context, task *Task, err error)
	TaskSkipped(ctx context.Context, task *Task)
	LockContended(ctx context.Context, resource string)
	RunFinished(ctx context.Context, report Report)
}

// NoopObserver ignores every event
type NoopObserver struct{}

func (NoopObserver) TasksCreated(context.Context, int)                   {}
func (NoopObserver) TaskCompleted(context.Context, *Task, time.Duration) {}
func (NoopObserver) TaskFailed(context.Context, *Task, error)            {}
func (NoopObserver) TaskSkipped(context.Context, *Task)                  {}
func (NoopObserver) LockContended(context.Context, string)               {}
func (NoopObserver) RunFinished(context.Context, Report)                 {}
