package tasks

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store for tests and single-process deployments
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*Task
	now   func() time.Time
}

// MemoryStoreOption configures a MemoryStore
type MemoryStoreOption func(*MemoryStore)

// WithMemoryClock overrides the time source used to decide which tasks are due
func WithMemoryClock(now func() time.Time) MemoryStoreOption {
	return func(ms *MemoryStore) {
		if now != nil {
			ms.now = now
		}
	}
}

// NewMemoryStore creates a new in-memory task store
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	ms := &MemoryStore{
		tasks: make(map[string]*Task),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(ms)
	}
	return ms
}

// ReadTasks implements Store
func (ms *MemoryStore) ReadTasks(ctx context.Context) ([]*Task, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	return ms.due(), nil
}

// ReadTasksToExecute implements Store
func (ms *MemoryStore) ReadTasksToExecute(ctx context.Context) ([]*Task, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	due := ms.due()
	slices.SortFunc(due, func(a, b *Task) int {
		// creation time and id keep ties deterministic across map iteration
		return cmp.Or(Compare(a, b), a.DateTime.Compare(b.DateTime), strings.Compare(a.ID, b.ID))
	})
	if len(due) > BatchSize {
		due = due[:BatchSize]
	}
	return due, nil
}

// CountTasks implements Store
func (ms *MemoryStore) CountTasks(ctx context.Context) (int64, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	now := ms.now()
	var n int64
	for _, t := range ms.tasks {
		if t.IsDue(now) {
			n++
		}
	}
	return n, nil
}

// CreateTask implements Store
func (ms *MemoryStore) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return ErrTaskNil
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	return ms.insert(task)
}

// CreateTasks implements Store. The batch is applied all-or-nothing.
func (ms *MemoryStore) CreateTasks(ctx context.Context, tasks []*Task) error {
	if len(tasks) == 0 {
		return nil
	}
	if slices.Contains(tasks, nil) {
		return ErrTaskNil
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	seen := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		if t.ID == "" {
			continue
		}
		if _, exists := ms.tasks[t.ID]; exists {
			return fmt.Errorf("%w: %s", ErrTaskExists, t.ID)
		}
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("%w: %s repeated in batch", ErrTaskExists, t.ID)
		}
		seen[t.ID] = struct{}{}
	}
	for _, t := range tasks {
		if err := ms.insert(t); err != nil {
			return err
		}
	}
	return nil
}

// UpdateTask implements Store
func (ms *MemoryStore) UpdateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return ErrTaskNil
	}
	if task.ID == "" {
		return ErrTaskIDEmpty
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.tasks[task.ID]; !exists {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, task.ID)
	}
	ms.tasks[task.ID] = task.Clone()
	return nil
}

// RemoveTask implements Store
func (ms *MemoryStore) RemoveTask(ctx context.Context, task *Task) error {
	if task == nil {
		return nil
	}
	return ms.RemoveTaskByID(ctx, task.ID)
}

// RemoveTaskByID implements Store
func (ms *MemoryStore) RemoveTaskByID(ctx context.Context, id string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.tasks, id)
	return nil
}

// Get returns a copy of the stored task regardless of its due date.
func (ms *MemoryStore) Get(id string) (*Task, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	t, ok := ms.tasks[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// Len returns the number of stored tasks, due or not.
func (ms *MemoryStore) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.tasks)
}

// insert must be called with the write lock held
func (ms *MemoryStore) insert(task *Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if _, exists := ms.tasks[task.ID]; exists {
		return fmt.Errorf("%w: %s", ErrTaskExists, task.ID)
	}
	ms.tasks[task.ID] = task.Clone()
	return nil
}

// due must be called with at least the read lock held.
// Results are copies so callers cannot mutate stored state.
func (ms *MemoryStore) due() []*Task {
	now := ms.now()
	out := make([]*Task, 0, len(ms.tasks))
	for _, t := range ms.tasks {
		if t.IsDue(now) {
			out = append(out, t.Clone())
		}
	}
	return out
}
