package tasks_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/nodetasks/pkg/tasks"
)

func newDispatcher(t *testing.T, opts ...tasks.DispatcherOption) (*tasks.Dispatcher, *countingStore, *tasks.Invoker) {
	t.Helper()

	store := &countingStore{MemoryStore: tasks.NewMemoryStore()}
	inv := tasks.NewInvoker()
	d, err := tasks.NewDispatcher(store, inv, opts...)
	require.NoError(t, err)
	return d, store, inv
}

func TestNewDispatcher(t *testing.T) {
	t.Parallel()

	_, err := tasks.NewDispatcher(nil, tasks.NewInvoker())
	assert.ErrorIs(t, err, tasks.ErrStoreNil)

	_, err = tasks.NewDispatcher(tasks.NewMemoryStore(), nil)
	assert.ErrorIs(t, err, tasks.ErrInvokerNil)
}

func TestDispatcher_TaskRules(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	before := tasks.Node{"_id": "n1", "title": "old"}
	after := tasks.Node{"_id": "n1", "title": "new"}

	t.Run("failing rules do not stop siblings", func(t *testing.T) {
		t.Parallel()
		failing := &stubRule{
			name:    "failing",
			produce: func(tasks.Mutation) ([]*tasks.Task, error) { return nil, errBoom },
		}
		panicking := &stubRule{name: "panicking", panicOn: "prepare_tasks"}
		healthy := &stubRule{name: "healthy", produce: produceTask("reindex")}

		d, store, inv := newDispatcher(t, tasks.WithTaskRules(failing, panicking, healthy))

		created, err := d.Updated(ctx, before, after, nil)
		require.NoError(t, err)
		require.Len(t, created, 1)
		assert.Equal(t, "reindex", created[0].Type)
		assert.NotEmpty(t, created[0].ID)
		assert.Equal(t, 1, store.Batches())
		assert.Equal(t, 1, store.Len())
		assert.True(t, signaled(inv))
	})

	t.Run("tasks from every rule are persisted in one batch", func(t *testing.T) {
		t.Parallel()
		d, store, inv := newDispatcher(t, tasks.WithTaskRules(
			&stubRule{name: "reindex", produce: produceTask("reindex")},
			&stubRule{name: "notify", priority: 2, produce: produceTask("notify")},
		))

		created, err := d.Created(ctx, after)
		require.NoError(t, err)
		assert.Len(t, created, 2)
		assert.Equal(t, 1, store.Batches())
		assert.Equal(t, 2, store.Len())
		assert.True(t, signaled(inv))
		assert.False(t, signaled(inv))
	})

	t.Run("nothing produced means no write and no signal", func(t *testing.T) {
		t.Parallel()
		d, store, inv := newDispatcher(t, tasks.WithTaskRules(
			&stubRule{name: "reindex", changes: func(tasks.Mutation) bool { return false }, produce: produceTask("reindex")},
		))

		created, err := d.Deleted(ctx, before)
		require.NoError(t, err)
		assert.Empty(t, created)
		assert.Zero(t, store.Batches())
		assert.False(t, signaled(inv))
	})

	t.Run("no rules registered", func(t *testing.T) {
		t.Parallel()
		d, store, inv := newDispatcher(t)

		created, err := d.Updated(ctx, before, after, nil)
		require.NoError(t, err)
		assert.Empty(t, created)
		assert.Zero(t, store.Batches())
		assert.False(t, signaled(inv))
	})

	t.Run("diff is computed for updates", func(t *testing.T) {
		t.Parallel()
		rule := &stubRule{
			name:    "title",
			changes: func(m tasks.Mutation) bool { return m.Diff.Has("title") },
			produce: produceTask("retitle"),
		}
		d, _, _ := newDispatcher(t, tasks.WithTaskRules(rule))

		created, err := d.Updated(ctx, before, after, nil)
		require.NoError(t, err)
		assert.Len(t, created, 1)

		created, err = d.Updated(ctx, before, after, tasks.Diff{"body": {Old: "a", New: "b"}})
		require.NoError(t, err)
		assert.Empty(t, created)
	})

	t.Run("persistence failure", func(t *testing.T) {
		t.Parallel()
		d, store, inv := newDispatcher(t, tasks.WithTaskRules(&stubRule{name: "reindex", produce: produceTask("reindex")}))
		store.createErr = errBoom

		created, err := d.Created(ctx, after)
		assert.ErrorIs(t, err, errBoom)
		assert.Nil(t, created)
		assert.False(t, signaled(inv))
	})

	t.Run("pre-commit events skip task rules", func(t *testing.T) {
		t.Parallel()
		rule := &stubRule{name: "reindex", produce: produceTask("reindex")}
		d, store, inv := newDispatcher(t, tasks.WithTaskRules(rule))

		require.NoError(t, d.Creating(ctx, after))
		require.NoError(t, d.Updating(ctx, before, after, nil))
		require.NoError(t, d.Deleting(ctx, before))

		assert.Empty(t, rule.Calls())
		assert.Zero(t, store.Batches())
		assert.False(t, signaled(inv))
	})

	t.Run("invalid event", func(t *testing.T) {
		t.Parallel()
		d, _, _ := newDispatcher(t)

		_, err := d.Dispatch(ctx, tasks.Event("archived"), before, after, nil)
		assert.ErrorIs(t, err, tasks.ErrInvalidEvent)
	})
}

// stampRule marks the node in Preprocess and requires every rule in after
// to have marked it first.
type stampRule struct {
	tasks.BaseRule

	name  string
	after []string
	order *[]string
}

func (r *stampRule) Name() string { return r.name }

func (r *stampRule) IsActualNode(tasks.Mutation) bool { return true }

func (r *stampRule) IsActualChangesForPreprocess(tasks.Mutation) bool { return true }

func (r *stampRule) Preprocess(_ context.Context, m tasks.Mutation) error {
	m.Current["stamped_by_"+r.name] = true
	*r.order = append(*r.order, r.name)
	return nil
}

func (r *stampRule) IsActualChanges(m tasks.Mutation) bool {
	for _, name := range r.after {
		if m.Current["stamped_by_"+name] != true {
			return false
		}
	}
	return true
}

func (r *stampRule) PrepareTasks(context.Context, tasks.Mutation) ([]*tasks.Task, error) {
	return []*tasks.Task{{Type: r.name}}, nil
}

func TestDispatcher_TaskRulesShareMutationInOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var order []string
	d, store, _ := newDispatcher(t, tasks.WithTaskRules(
		&stampRule{name: "first", order: &order},
		&stampRule{name: "second", after: []string{"first"}, order: &order},
		&stampRule{name: "third", after: []string{"first", "second"}, order: &order},
	))

	for i := range 50 {
		order = order[:0]
		node := tasks.Node{"_id": fmt.Sprintf("n%d", i)}

		created, err := d.Created(ctx, node)
		require.NoError(t, err)
		require.Len(t, created, 3)
		assert.Equal(t, []string{"first", "second", "third"}, order)
		assert.Equal(t, true, node["stamped_by_third"])
	}
	assert.Equal(t, 150, store.Len())
}

func TestDispatcher_SyncRules(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	node := tasks.Node{"_id": "n1", "slug": ""}

	t.Run("failures are logged and the write proceeds", func(t *testing.T) {
		t.Parallel()
		failing := &stubRule{name: "failing", execErr: errBoom}
		next := &stubRule{name: "next"}
		task := &stubRule{name: "task", produce: produceTask("reindex")}

		d, store, _ := newDispatcher(t, tasks.WithSyncRules(failing, next), tasks.WithTaskRules(task))

		created, err := d.Dispatch(ctx, tasks.EventCreating, nil, node, nil)
		require.NoError(t, err)
		assert.Nil(t, created)
		assert.Contains(t, next.Calls(), "execute")
		assert.Empty(t, task.Calls())
		assert.Zero(t, store.Batches())
	})

	t.Run("abort policy returns the failures", func(t *testing.T) {
		t.Parallel()
		failing := &stubRule{name: "failing", execErr: errBoom}
		panicking := &stubRule{name: "panicking", panicOn: "execute"}
		next := &stubRule{name: "next"}

		d, _, _ := newDispatcher(t,
			tasks.WithSyncRules(failing, panicking, next),
			tasks.WithSyncFailurePolicy(tasks.SyncAbort),
		)

		err := d.Updating(ctx, node, tasks.Node{"_id": "n1", "slug": "x"}, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, errBoom)
		assert.Contains(t, next.Calls(), "execute")

		var ruleErr *tasks.RuleError
		require.ErrorAs(t, err, &ruleErr)
		assert.Equal(t, "failing", ruleErr.Rule)
	})

	t.Run("post-commit events skip sync rules", func(t *testing.T) {
		t.Parallel()
		rule := &stubRule{name: "slug"}
		d, _, _ := newDispatcher(t, tasks.WithSyncRules(rule))

		_, err := d.Created(ctx, node)
		require.NoError(t, err)
		assert.Empty(t, rule.Calls())
	})
}
