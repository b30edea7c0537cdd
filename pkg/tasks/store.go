package tasks

import (
	"context"
)

// Store persists task records.
//
// Removal methods must treat an already-absent task as success. CreateTasks with
// an empty slice must be a no-op. Due means ExecuteDate is nil or not after now.
type Store interface {
	// ReadTasks returns every due task.
	ReadTasks(ctx context.Context) ([]*Task, error)

	// ReadTasksToExecute returns at most BatchSize due tasks ordered by
	// priority ascending, then ExecuteDate ascending.
	ReadTasksToExecute(ctx context.Context) ([]*Task, error)

	// CountTasks returns the number of due tasks.
	CountTasks(ctx context.Context) (int64, error)

	// CreateTask inserts a task and assigns its ID.
	CreateTask(ctx context.Context, task *Task) error

	// CreateTasks inserts tasks in a single batch and assigns their IDs.
	CreateTasks(ctx context.Context, tasks []*Task) error

	// UpdateTask persists the scheduling fields of an existing task.
	UpdateTask(ctx context.Context, task *Task) error

	// RemoveTask deletes the task.
	RemoveTask(ctx context.Context, task *Task) error

	// RemoveTaskByID deletes the task with the given ID.
	RemoveTaskByID(ctx context.Context, id string) error
}
