package tasks_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/nodetasks/pkg/tasks"
)

func TestMemoryStore_ReadTasksToExecute(t *testing.T) {
	t.Parallel()

	t.Run("caps batch and orders by priority then execute date", func(t *testing.T) {
		t.Parallel()
		clock := newClock()
		store := tasks.NewMemoryStore(tasks.WithMemoryClock(clock.Now))
		ctx := context.Background()

		now := clock.Now()
		batch := []*tasks.Task{
			{Type: "t", NodeID: "p2-undated", Priority: 2},
			{Type: "t", NodeID: "p1-old", Priority: 1, ExecuteDate: ptr(now.Add(-time.Hour))},
			{Type: "t", NodeID: "p1-recent", Priority: 1, ExecuteDate: ptr(now.Add(-time.Minute))},
			{Type: "t", NodeID: "p1-undated", Priority: 1},
			{Type: "t", NodeID: "p3", Priority: 3},
			{Type: "t", NodeID: "p4", Priority: 4},
			{Type: "t", NodeID: "p5", Priority: 5},
		}
		require.NoError(t, store.CreateTasks(ctx, batch))

		due, err := store.ReadTasksToExecute(ctx)
		require.NoError(t, err)
		require.Len(t, due, tasks.BatchSize)

		got := make([]string, len(due))
		for i, task := range due {
			got[i] = task.NodeID
		}
		assert.Equal(t, []string{"p1-undated", "p1-old", "p1-recent", "p2-undated", "p3"}, got)
	})

	t.Run("excludes future tasks", func(t *testing.T) {
		t.Parallel()
		clock := newClock()
		store := tasks.NewMemoryStore(tasks.WithMemoryClock(clock.Now))
		ctx := context.Background()

		require.NoError(t, store.CreateTask(ctx, &tasks.Task{Type: "t", ExecuteDate: ptr(clock.Now().Add(time.Second))}))
		require.NoError(t, store.CreateTask(ctx, &tasks.Task{Type: "t", ExecuteDate: ptr(clock.Now())}))

		due, err := store.ReadTasksToExecute(ctx)
		require.NoError(t, err)
		assert.Len(t, due, 1)

		count, err := store.CountTasks(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)

		clock.Advance(time.Second)
		all, err := store.ReadTasks(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("returns copies", func(t *testing.T) {
		t.Parallel()
		store := tasks.NewMemoryStore()
		ctx := context.Background()

		task := &tasks.Task{Type: "t"}
		require.NoError(t, store.CreateTask(ctx, task))

		due, err := store.ReadTasksToExecute(ctx)
		require.NoError(t, err)
		due[0].ExecutionCount = 42

		stored, ok := store.Get(task.ID)
		require.True(t, ok)
		assert.Zero(t, stored.ExecutionCount)
	})
}

func TestMemoryStore_CreateTasks(t *testing.T) {
	t.Parallel()

	t.Run("empty batch is a no-op", func(t *testing.T) {
		t.Parallel()
		store := tasks.NewMemoryStore()
		require.NoError(t, store.CreateTasks(context.Background(), nil))
		require.NoError(t, store.CreateTasks(context.Background(), []*tasks.Task{}))
		assert.Zero(t, store.Len())
	})

	t.Run("assigns ids", func(t *testing.T) {
		t.Parallel()
		store := tasks.NewMemoryStore()
		batch := []*tasks.Task{{Type: "a"}, {Type: "b"}}
		require.NoError(t, store.CreateTasks(context.Background(), batch))
		assert.NotEmpty(t, batch[0].ID)
		assert.NotEqual(t, batch[0].ID, batch[1].ID)
		assert.Equal(t, 2, store.Len())
	})

	t.Run("all or nothing", func(t *testing.T) {
		t.Parallel()
		store := tasks.NewMemoryStore()
		ctx := context.Background()
		require.NoError(t, store.CreateTask(ctx, &tasks.Task{ID: "dup", Type: "a"}))

		err := store.CreateTasks(ctx, []*tasks.Task{{Type: "b"}, {ID: "dup", Type: "c"}})
		require.ErrorIs(t, err, tasks.ErrTaskExists)
		assert.Equal(t, 1, store.Len())

		err = store.CreateTasks(ctx, []*tasks.Task{{ID: "twin", Type: "d"}, {ID: "twin", Type: "e"}})
		require.ErrorIs(t, err, tasks.ErrTaskExists)
		assert.Equal(t, 1, store.Len())
		_, ok := store.Get("twin")
		assert.False(t, ok)

		assert.ErrorIs(t, store.CreateTasks(ctx, []*tasks.Task{nil}), tasks.ErrTaskNil)
	})
}

func TestMemoryStore_UpdateAndRemove(t *testing.T) {
	t.Parallel()

	store := tasks.NewMemoryStore()
	ctx := context.Background()

	task := &tasks.Task{Type: "a"}
	require.NoError(t, store.CreateTask(ctx, task))

	task.ExecutionCount = 2
	require.NoError(t, store.UpdateTask(ctx, task))
	stored, ok := store.Get(task.ID)
	require.True(t, ok)
	assert.Equal(t, 2, stored.ExecutionCount)

	assert.ErrorIs(t, store.UpdateTask(ctx, &tasks.Task{}), tasks.ErrTaskIDEmpty)
	assert.ErrorIs(t, store.UpdateTask(ctx, &tasks.Task{ID: "missing"}), tasks.ErrTaskNotFound)

	require.NoError(t, store.RemoveTask(ctx, task))
	require.NoError(t, store.RemoveTask(ctx, task))
	require.NoError(t, store.RemoveTaskByID(ctx, task.ID))
	require.NoError(t, store.RemoveTaskByID(ctx, "never-existed"))
	require.NoError(t, store.RemoveTask(ctx, nil))
	assert.Zero(t, store.Len())
}

func TestMemoryStore_Concurrent(t *testing.T) {
	t.Parallel()

	store := tasks.NewMemoryStore()
	ctx := context.Background()

	done := make(chan struct{})
	for i := range 20 {
		go func() {
			defer func() { done <- struct{}{} }()
			_ = store.CreateTask(ctx, &tasks.Task{Type: fmt.Sprintf("t%d", i)})
			_, _ = store.ReadTasksToExecute(ctx)
			_, _ = store.CountTasks(ctx)
		}()
	}
	for range 20 {
		<-done
	}
	assert.Equal(t, 20, store.Len())
}
