package tasks_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/nodetasks/pkg/lock"
	"github.com/dmitrymomot/nodetasks/pkg/tasks"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) ReadTasks(ctx context.Context) ([]*tasks.Task, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]*tasks.Task)
	return out, args.Error(1)
}

func (m *mockStore) ReadTasksToExecute(ctx context.Context) ([]*tasks.Task, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]*tasks.Task)
	return out, args.Error(1)
}

func (m *mockStore) CountTasks(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) CreateTask(ctx context.Context, task *tasks.Task) error {
	return m.Called(ctx, task).Error(0)
}

func (m *mockStore) CreateTasks(ctx context.Context, batch []*tasks.Task) error {
	return m.Called(ctx, batch).Error(0)
}

func (m *mockStore) UpdateTask(ctx context.Context, task *tasks.Task) error {
	return m.Called(ctx, task).Error(0)
}

func (m *mockStore) RemoveTask(ctx context.Context, task *tasks.Task) error {
	return m.Called(ctx, task).Error(0)
}

func (m *mockStore) RemoveTaskByID(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func newMockRunner(t *testing.T, store tasks.Store, executors ...tasks.Executor) *tasks.Runner {
	t.Helper()
	coord, err := lock.NewCoordinator(lock.Uncoordinated())
	require.NoError(t, err)
	r, err := tasks.NewRunner(store, coord, tasks.NewInvoker(), tasks.WithExecutors(executors...))
	require.NoError(t, err)
	return r
}

func TestRunner_StoreFailures(t *testing.T) {
	t.Parallel()

	t.Run("read failure aborts the cycle", func(t *testing.T) {
		t.Parallel()
		store := &mockStore{}
		store.On("ReadTasksToExecute", mock.Anything).Return(nil, errBoom).Once()

		r := newMockRunner(t, store)
		_, err := r.Run(context.Background())
		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, tasks.StateIdle, r.State())
		store.AssertExpectations(t)
		store.AssertNotCalled(t, "CountTasks", mock.Anything)
	})

	t.Run("remove failure keeps the cycle going", func(t *testing.T) {
		t.Parallel()
		task := &tasks.Task{ID: "t1", Type: "reindex"}
		store := &mockStore{}
		store.On("ReadTasksToExecute", mock.Anything).Return([]*tasks.Task{task}, nil).Once()
		store.On("RemoveTask", mock.Anything, task).Return(errBoom).Once()
		store.On("CountTasks", mock.Anything).Return(int64(0), nil).Once()

		r := newMockRunner(t, store, &stubExecutor{taskType: "reindex"})
		report, err := r.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, report.Succeeded)
		store.AssertExpectations(t)
	})

	t.Run("update failure is logged", func(t *testing.T) {
		t.Parallel()
		task := &tasks.Task{ID: "t1", Type: "unknown"}
		store := &mockStore{}
		store.On("ReadTasksToExecute", mock.Anything).Return([]*tasks.Task{task}, nil).Once()
		store.On("UpdateTask", mock.Anything, mock.MatchedBy(func(got *tasks.Task) bool {
			return got.ID == "t1" && got.ExecutionCount == 1 && got.ExecuteDate != nil
		})).Return(errBoom).Once()
		store.On("CountTasks", mock.Anything).Return(int64(0), nil).Once()

		r := newMockRunner(t, store)
		report, err := r.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, report.Failed)
		store.AssertExpectations(t)
	})

	t.Run("count failure", func(t *testing.T) {
		t.Parallel()
		store := &mockStore{}
		store.On("ReadTasksToExecute", mock.Anything).Return([]*tasks.Task{}, nil).Once()
		store.On("CountTasks", mock.Anything).Return(int64(0), errBoom).Once()

		r := newMockRunner(t, store)
		_, err := r.Run(context.Background())
		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, tasks.StateIdle, r.State())
		store.AssertExpectations(t)
	})
}
