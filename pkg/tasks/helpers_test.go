package tasks_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrymomot/nodetasks/pkg/tasks"
)

var errBoom = errors.New("boom")

func ptr[T any](v T) *T { return &v }

// fixedClock is a settable time source shared by store and runner.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fixedClock {
	return &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// stubRule is a configurable TaskRule and SyncRule that records its stages.
type stubRule struct {
	tasks.BaseRule

	name          string
	actualNode    func(m tasks.Mutation) bool
	needAsync     bool
	asyncOK       bool
	asyncErr      error
	preprocess    bool
	preprocessErr error
	changes       func(m tasks.Mutation) bool
	priority      int
	produce       func(m tasks.Mutation) ([]*tasks.Task, error)
	execErr       error
	panicOn       string

	mu    sync.Mutex
	calls []string
}

func (r *stubRule) record(stage string) {
	r.mu.Lock()
	r.calls = append(r.calls, stage)
	r.mu.Unlock()
	if r.panicOn == stage {
		panic("stage " + stage + " exploded")
	}
}

func (r *stubRule) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *stubRule) Name() string { return r.name }

func (r *stubRule) IsActualNode(m tasks.Mutation) bool {
	r.record("is_actual_node")
	if r.actualNode == nil {
		return true
	}
	return r.actualNode(m)
}

func (r *stubRule) NeedAsyncCheck() bool { return r.needAsync }

func (r *stubRule) AsyncCheck(context.Context, tasks.Mutation) (bool, error) {
	r.record("async_check")
	return r.asyncOK, r.asyncErr
}

func (r *stubRule) IsActualChangesForPreprocess(tasks.Mutation) bool { return r.preprocess }

func (r *stubRule) Preprocess(context.Context, tasks.Mutation) error {
	r.record("preprocess")
	return r.preprocessErr
}

func (r *stubRule) IsActualChanges(m tasks.Mutation) bool {
	r.record("is_actual_changes")
	if r.changes == nil {
		return true
	}
	return r.changes(m)
}

func (r *stubRule) TaskPriority() int {
	if r.priority == 0 {
		return r.BaseRule.TaskPriority()
	}
	return r.priority
}

func (r *stubRule) PrepareTasks(_ context.Context, m tasks.Mutation) ([]*tasks.Task, error) {
	r.record("prepare_tasks")
	if r.produce == nil {
		return nil, nil
	}
	return r.produce(m)
}

func (r *stubRule) Execute(context.Context, tasks.Mutation) error {
	r.record("execute")
	return r.execErr
}

// produceTask returns a producer emitting one task of taskType per mutation.
func produceTask(taskType string) func(tasks.Mutation) ([]*tasks.Task, error) {
	return func(tasks.Mutation) ([]*tasks.Task, error) {
		return []*tasks.Task{{Type: taskType}}, nil
	}
}

// stubExecutor is a configurable Executor.
type stubExecutor struct {
	tasks.BaseExecutor

	taskType    string
	process     func(ctx context.Context, task *tasks.Task) error
	skip        bool
	extend      time.Duration
	keepCount   bool
	nextOnError func(task *tasks.Task) (time.Time, error)
	nextOnSkip  func(task *tasks.Task) (time.Time, error)

	mu        sync.Mutex
	processed []string
}

func (e *stubExecutor) Type() string { return e.taskType }

func (e *stubExecutor) ProcessTask(ctx context.Context, task *tasks.Task) error {
	e.mu.Lock()
	e.processed = append(e.processed, task.NodeID)
	e.mu.Unlock()
	if e.process == nil {
		return nil
	}
	return e.process(ctx, task)
}

func (e *stubExecutor) Processed() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.processed...)
}

func (e *stubExecutor) SkipTaskExecution(context.Context, *tasks.Task) bool { return e.skip }

func (e *stubExecutor) ExtendLockTime() time.Duration { return e.extend }

func (e *stubExecutor) SkipExecutionCountIncreasing() bool { return e.keepCount }

func (e *stubExecutor) NextExecutionDateOnError(task *tasks.Task) (time.Time, error) {
	if e.nextOnError == nil {
		return e.BaseExecutor.NextExecutionDateOnError(task)
	}
	return e.nextOnError(task)
}

func (e *stubExecutor) NextExecutionDateOnSkip(task *tasks.Task) (time.Time, error) {
	if e.nextOnSkip == nil {
		return e.BaseExecutor.NextExecutionDateOnSkip(task)
	}
	return e.nextOnSkip(task)
}

// countingStore counts CreateTasks calls and can fail them.
type countingStore struct {
	*tasks.MemoryStore

	mu        sync.Mutex
	batches   int
	createErr error
}

func (s *countingStore) CreateTasks(ctx context.Context, batch []*tasks.Task) error {
	s.mu.Lock()
	s.batches++
	err := s.createErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.MemoryStore.CreateTasks(ctx, batch)
}

func (s *countingStore) Batches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batches
}

// signaled reports whether the invoker has a queued signal, consuming it.
func signaled(inv *tasks.Invoker) bool {
	select {
	case <-inv.Signals():
		return true
	default:
		return false
	}
}
