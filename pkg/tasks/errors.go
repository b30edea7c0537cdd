package tasks

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrStoreNil is returned when a nil task store is provided
	ErrStoreNil = errors.New("task store cannot be nil")

	// ErrInvokerNil is returned when a nil invoker is provided
	ErrInvokerNil = errors.New("invoker cannot be nil")

	// ErrCoordinatorNil is returned when a nil lock coordinator is provided
	ErrCoordinatorNil = errors.New("lock coordinator cannot be nil")

	// ErrRunnerNil is returned when a nil runner is provided
	ErrRunnerNil = errors.New("runner cannot be nil")

	// ErrTaskNil is returned when attempting to store a nil task
	ErrTaskNil = errors.New("task cannot be nil")

	// ErrTaskIDEmpty is returned when a task without identity is updated
	ErrTaskIDEmpty = errors.New("task id cannot be empty")

	// ErrTaskExists is returned when a task id is already taken
	ErrTaskExists = errors.New("task already exists")

	// ErrTaskNotFound is returned when updating a task that no longer exists
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidEvent is returned for an unknown mutation event name
	ErrInvalidEvent = errors.New("unknown mutation event")

	// ErrExecutorNotFound is returned when no executor is registered for a task type
	ErrExecutorNotFound = errors.New("no executor registered for task type")

	// ErrExecutorFailed wraps an error returned by an executor's ProcessTask
	ErrExecutorFailed = errors.New("task executor failed")

	// ErrExecutorPanic is returned when an executor panics while processing a task
	ErrExecutorPanic = errors.New("task executor panicked")

	// ErrDuplicateExecutor is returned when two executors claim the same task type
	ErrDuplicateExecutor = errors.New("executor already registered for task type")

	// ErrRunnerBusy is returned when the runner is already draining in this process
	ErrRunnerBusy = errors.New("runner is already draining")

	// ErrLoopAlreadyStarted is returned when Start is called twice
	ErrLoopAlreadyStarted = errors.New("drain loop already started")

	// ErrLoopNotStarted is returned when Stop is called before Start
	ErrLoopNotStarted = errors.New("drain loop not started")
)

// RuleError reports a failure of a single task or sync rule.
// It never aborts sibling rules.
type RuleError struct {
	Rule  string
	Stage string
	Err   error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %q failed at %s: %v", e.Rule, e.Stage, e.Err)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}
