package statemachine_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/nodetasks/pkg/statemachine"
)

const (
	idle     statemachine.StringState = "idle"
	pending  statemachine.StringState = "pending"
	draining statemachine.StringState = "draining"

	start    statemachine.StringEvent = "start"
	locked   statemachine.StringEvent = "locked"
	finished statemachine.StringEvent = "finished"
)

func newCycle(t *testing.T, opts ...statemachine.Option) statemachine.StateMachine {
	t.Helper()
	base := statemachine.WithTransitions([]statemachine.TransitionDef{
		{From: idle, To: pending, Event: start},
		{From: pending, To: draining, Event: locked},
		{From: draining, To: idle, Event: finished},
	})
	sm, err := statemachine.New(idle, append([]statemachine.Option{base}, opts...)...)
	require.NoError(t, err)
	return sm
}

func TestStateMachine_Fire(t *testing.T) {
	t.Parallel()

	t.Run("walks through transitions", func(t *testing.T) {
		t.Parallel()
		sm := newCycle(t)
		ctx := context.Background()

		require.NoError(t, sm.Fire(ctx, start, nil))
		assert.Equal(t, pending, sm.Current())
		require.NoError(t, sm.Fire(ctx, locked, nil))
		assert.Equal(t, draining, sm.Current())
		require.NoError(t, sm.Fire(ctx, finished, nil))
		assert.Equal(t, idle, sm.Current())
	})

	t.Run("unknown event from state", func(t *testing.T) {
		t.Parallel()
		sm := newCycle(t)

		err := sm.Fire(context.Background(), finished, nil)
		require.Error(t, err)
		assert.True(t, statemachine.IsNoTransitionAvailableError(err))
		assert.Equal(t, idle, sm.Current())
	})

	t.Run("nil event", func(t *testing.T) {
		t.Parallel()
		sm := newCycle(t)
		assert.ErrorIs(t, sm.Fire(context.Background(), nil, nil), statemachine.ErrInvalidEvent)
	})

	t.Run("guard rejects", func(t *testing.T) {
		t.Parallel()
		sm, err := statemachine.New(idle, statemachine.WithTransition(idle, pending, start,
			statemachine.WithGuard(func(context.Context, statemachine.State, statemachine.Event, any) bool {
				return false
			}),
		))
		require.NoError(t, err)

		err = sm.Fire(context.Background(), start, nil)
		assert.True(t, statemachine.IsTransitionRejectedError(err))
		assert.Equal(t, idle, sm.Current())
	})

	t.Run("guard selects branch", func(t *testing.T) {
		t.Parallel()
		isFast := func(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
			fast, _ := data.(bool)
			return fast
		}
		sm, err := statemachine.New(idle,
			statemachine.WithTransition(idle, draining, start, statemachine.WithGuard(isFast)),
			statemachine.WithTransition(idle, pending, start),
		)
		require.NoError(t, err)

		require.NoError(t, sm.Fire(context.Background(), start, true))
		assert.Equal(t, draining, sm.Current())

		require.NoError(t, sm.Reset())
		require.NoError(t, sm.Fire(context.Background(), start, false))
		assert.Equal(t, pending, sm.Current())
	})

	t.Run("action error keeps state", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		sm, err := statemachine.New(idle, statemachine.WithTransition(idle, pending, start,
			statemachine.WithAction(func(context.Context, statemachine.State, statemachine.State, statemachine.Event, any) error {
				return boom
			}),
		))
		require.NoError(t, err)

		err = sm.Fire(context.Background(), start, nil)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, idle, sm.Current())
	})

	t.Run("action sees from and to", func(t *testing.T) {
		t.Parallel()
		var from, to statemachine.State
		sm, err := statemachine.New(idle, statemachine.WithTransition(idle, pending, start,
			statemachine.WithAction(func(_ context.Context, f, tt statemachine.State, _ statemachine.Event, _ any) error {
				from, to = f, tt
				return nil
			}),
		))
		require.NoError(t, err)

		require.NoError(t, sm.Fire(context.Background(), start, nil))
		assert.Equal(t, idle, from)
		assert.Equal(t, pending, to)
	})
}

func TestStateMachine_FireIsExclusive(t *testing.T) {
	t.Parallel()

	sm := newCycle(t)
	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sm.Fire(context.Background(), start, nil) == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
	assert.Equal(t, pending, sm.Current())
}

func TestStateMachine_Reset(t *testing.T) {
	t.Parallel()

	sm := newCycle(t)
	require.NoError(t, sm.Fire(context.Background(), start, nil))
	require.NoError(t, sm.Reset())
	assert.Equal(t, idle, sm.Current())
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("nil initial state", func(t *testing.T) {
		t.Parallel()
		_, err := statemachine.New(nil)
		require.Error(t, err)
	})

	t.Run("invalid transition definition", func(t *testing.T) {
		t.Parallel()
		_, err := statemachine.New(idle, statemachine.WithTransitions([]statemachine.TransitionDef{
			{From: idle, To: nil, Event: start},
		}))
		assert.ErrorIs(t, err, statemachine.ErrInvalidTransition)
	})

	t.Run("MustNew panics", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() {
			statemachine.MustNew(nil)
		})
	})
}
