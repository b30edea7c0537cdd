package webhook_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/nodetasks/pkg/lock"
	"github.com/dmitrymomot/nodetasks/pkg/tasks"
	"github.com/dmitrymomot/nodetasks/pkg/webhook"
)

// receiver records deliveries and answers with status.
type receiver struct {
	mu       sync.Mutex
	bodies   [][]byte
	headers  []http.Header
	status   atomic.Int32
	endpoint *httptest.Server
}

func newReceiver(t *testing.T) *receiver {
	t.Helper()
	r := &receiver{}
	r.status.Store(http.StatusOK)
	r.endpoint = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.bodies = append(r.bodies, b)
		r.headers = append(r.headers, req.Header.Clone())
		r.mu.Unlock()
		w.WriteHeader(int(r.status.Load()))
	}))
	t.Cleanup(r.endpoint.Close)
	return r
}

func (r *receiver) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bodies)
}

func (r *receiver) Last() ([]byte, http.Header) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bodies[len(r.bodies)-1], r.headers[len(r.headers)-1]
}

func TestNewExecutor(t *testing.T) {
	t.Parallel()

	_, err := webhook.NewExecutor("", "https://example.com")
	assert.ErrorIs(t, err, webhook.ErrTaskTypeEmpty)

	_, err = webhook.NewExecutor("notify", "mailto:ops@example.com")
	assert.ErrorIs(t, err, webhook.ErrInvalidURL)

	e, err := webhook.NewExecutor("notify", "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "notify", e.Type())
	assert.Equal(t, 10*time.Second, e.ExtendLockTime())
	assert.True(t, e.SkipExecutionCountIncreasing())

	var _ tasks.Executor = e
}

func TestExecutor_ProcessTask(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	created := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	task := &tasks.Task{
		ID:             "t1",
		Type:           "notify",
		NodeID:         "n1",
		DateTime:       created,
		ExecutionCount: 2,
		AdditionalData: map[string]any{"event": "updated"},
	}

	t.Run("signed delivery", func(t *testing.T) {
		t.Parallel()
		rcv := newReceiver(t)
		clk := newClock()
		e, err := webhook.NewExecutor("notify", rcv.endpoint.URL,
			webhook.WithSecret("s3cret"),
			webhook.WithSender(webhook.NewSender(rcv.endpoint.Client(), time.Second)),
			webhook.WithClock(clk.Now),
		)
		require.NoError(t, err)

		ok, err := tasks.Execute(ctx, e, task)
		require.NoError(t, err)
		assert.True(t, ok)

		body, header := rcv.Last()
		var n webhook.Notification
		require.NoError(t, json.Unmarshal(body, &n))
		assert.Equal(t, "t1", n.ID)
		assert.Equal(t, "n1", n.NodeID)
		assert.Equal(t, 3, n.Attempt)
		assert.True(t, created.Equal(n.CreatedAt))
		assert.Equal(t, map[string]any{"event": "updated"}, n.Data)

		sig, err := webhook.ParseSignature(header)
		require.NoError(t, err)
		assert.Equal(t, "t1", sig.ID)
		assert.NoError(t, webhook.Verify("s3cret", body, sig, time.Minute, clk.Now()))
	})

	t.Run("unsigned delivery", func(t *testing.T) {
		t.Parallel()
		rcv := newReceiver(t)
		e, err := webhook.NewExecutor("notify", rcv.endpoint.URL)
		require.NoError(t, err)

		require.NoError(t, e.ProcessTask(ctx, task))
		_, header := rcv.Last()
		assert.Empty(t, header.Get(webhook.HeaderSignature))
	})

	t.Run("failure feeds the breaker", func(t *testing.T) {
		t.Parallel()
		rcv := newReceiver(t)
		rcv.status.Store(http.StatusServiceUnavailable)
		cb := webhook.NewCircuitBreaker(2, 1, time.Minute)
		e, err := webhook.NewExecutor("notify", rcv.endpoint.URL, webhook.WithCircuitBreaker(cb))
		require.NoError(t, err)

		assert.ErrorIs(t, e.ProcessTask(ctx, task), webhook.ErrTemporaryFailure)
		assert.False(t, e.SkipTaskExecution(ctx, task))
		assert.ErrorIs(t, e.ProcessTask(ctx, task), webhook.ErrTemporaryFailure)

		assert.Equal(t, webhook.CircuitOpen, cb.State())
		assert.True(t, e.SkipTaskExecution(ctx, task))
	})

	t.Run("permanent rejection keeps the breaker closed", func(t *testing.T) {
		t.Parallel()
		rcv := newReceiver(t)
		rcv.status.Store(http.StatusGone)
		cb := webhook.NewCircuitBreaker(1, 1, time.Minute)
		e, err := webhook.NewExecutor("notify", rcv.endpoint.URL, webhook.WithCircuitBreaker(cb))
		require.NoError(t, err)

		err = e.ProcessTask(ctx, task)
		assert.True(t, webhook.IsPermanent(err))
		assert.Equal(t, webhook.CircuitClosed, cb.State())
		assert.False(t, e.SkipTaskExecution(ctx, task))
	})
}

func TestExecutor_RetryDates(t *testing.T) {
	t.Parallel()

	clk := newClock()
	cb := webhook.NewCircuitBreaker(1, 1, 5*time.Minute, webhook.WithCircuitClock(clk.Now))
	e, err := webhook.NewExecutor("notify", "https://example.com",
		webhook.WithCircuitBreaker(cb),
		webhook.WithBackoff(webhook.FixedBackoff{Interval: 3 * time.Minute}),
		webhook.WithClock(clk.Now),
	)
	require.NoError(t, err)

	next, err := e.NextExecutionDateOnError(&tasks.Task{})
	require.NoError(t, err)
	assert.Equal(t, clk.Now().Add(3*time.Minute), next)

	next, err = e.NextExecutionDateOnSkip(&tasks.Task{})
	require.NoError(t, err)
	assert.True(t, next.IsZero())

	cb.RecordFailure()
	next, err = e.NextExecutionDateOnSkip(&tasks.Task{})
	require.NoError(t, err)
	assert.Equal(t, clk.Now().Add(5*time.Minute), next)

	plain, err := webhook.NewExecutor("notify", "https://example.com")
	require.NoError(t, err)
	next, err = plain.NextExecutionDateOnError(&tasks.Task{})
	require.NoError(t, err)
	assert.True(t, next.IsZero())
}

func TestExecutor_WithRunner(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rcv := newReceiver(t)
	rcv.status.Store(http.StatusInternalServerError)

	now := time.Now().UTC()
	store := tasks.NewMemoryStore(tasks.WithMemoryClock(func() time.Time { return now }))
	coord, err := lock.NewCoordinator(lock.Uncoordinated())
	require.NoError(t, err)

	cb := webhook.NewCircuitBreaker(1, 1, 5*time.Minute, webhook.WithCircuitClock(func() time.Time { return now }))
	exec, err := webhook.NewExecutor("notify", rcv.endpoint.URL,
		webhook.WithSender(webhook.NewSender(rcv.endpoint.Client(), time.Second)),
		webhook.WithCircuitBreaker(cb),
	)
	require.NoError(t, err)

	runner, err := tasks.NewRunner(store, coord, tasks.NewInvoker(),
		tasks.WithExecutors(exec),
		tasks.WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)

	failing := &tasks.Task{Type: "notify", NodeID: "n1"}
	held := &tasks.Task{Type: "notify", NodeID: "n2", Priority: 2}
	require.NoError(t, store.CreateTasks(ctx, []*tasks.Task{failing, held}))

	report, err := runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, rcv.Count())

	got, ok := store.Get(failing.ID)
	require.True(t, ok)
	assert.Equal(t, 1, got.ExecutionCount)
	assert.Equal(t, now.Add(tasks.DefaultRetryDelay), *got.ExecuteDate)

	got, ok = store.Get(held.ID)
	require.True(t, ok)
	assert.Equal(t, 1, got.SkipCount)
	assert.Zero(t, got.ExecutionCount)
	assert.Equal(t, now.Add(5*time.Minute), *got.ExecuteDate)
}
