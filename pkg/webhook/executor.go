package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/nodetasks/pkg/logger"
	"github.com/dmitrymomot/nodetasks/pkg/tasks"
)

// Notification is the JSON body delivered for a task
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	NodeID    string    `json:"nodeId"`
	Attempt   int       `json:"attempt"`
	CreatedAt time.Time `json:"createdAt"`
	Data      any       `json:"data,omitempty"`
}

// NotificationFor builds the payload delivered for task
func NotificationFor(task *tasks.Task) Notification {
	return Notification{
		ID:        task.ID,
		Type:      task.Type,
		NodeID:    task.NodeID,
		Attempt:   task.ExecutionCount + 1,
		CreatedAt: task.DateTime,
		Data:      task.AdditionalData,
	}
}

// Executor delivers tasks of one type to a webhook endpoint.
//
// An open circuit breaker skips tasks until the endpoint may be probed again,
// without counting the skip as an attempt. Delivery errors are returned to the
// runner, which reschedules the task.
type Executor struct {
	taskType string
	target   string
	secret   string
	sender   *Sender
	breaker  *CircuitBreaker
	backoff  BackoffStrategy
	now      func() time.Time
	logger   *slog.Logger
}

// ExecutorOption configures an Executor
type ExecutorOption func(*Executor)

// WithSecret signs every delivery with secret
func WithSecret(secret string) ExecutorOption {
	return func(e *Executor) {
		e.secret = secret
	}
}

// WithSender replaces the default sender
func WithSender(s *Sender) ExecutorOption {
	return func(e *Executor) {
		if s != nil {
			e.sender = s
		}
	}
}

// WithCircuitBreaker guards the endpoint with cb
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) {
		e.breaker = cb
	}
}

// WithBackoff replaces the runner's default retry dates after a failed delivery
func WithBackoff(b BackoffStrategy) ExecutorOption {
	return func(e *Executor) {
		e.backoff = b
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExecutor creates an executor posting tasks of taskType to target
func NewExecutor(taskType, target string, opts ...ExecutorOption) (*Executor, error) {
	if taskType == "" {
		return nil, ErrTaskTypeEmpty
	}
	if err := ValidateURL(target); err != nil {
		return nil, err
	}

	e := &Executor{
		taskType: taskType,
		target:   target,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.sender == nil {
		e.sender = NewSender(nil, 0)
	}
	e.logger = e.logger.With(logger.Component("webhook_executor"), logger.TaskType(taskType))
	return e, nil
}

// Type implements tasks.Executor
func (e *Executor) Type() string {
	return e.taskType
}

// ProcessTask implements tasks.Executor
func (e *Executor) ProcessTask(ctx context.Context, task *tasks.Task) error {
	payload, err := json.Marshal(NotificationFor(task))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	var headers http.Header
	if e.secret != "" {
		sig, err := Sign(e.secret, payload, task.ID, e.now())
		if err != nil {
			return err
		}
		headers = sig.Header()
	}

	res, err := e.sender.Post(ctx, e.target, payload, headers)
	if e.breaker != nil {
		// a permanent rejection still proves the endpoint is reachable
		if err != nil && !IsPermanent(err) {
			e.breaker.RecordFailure()
		} else {
			e.breaker.RecordSuccess()
		}
	}
	if err != nil {
		return err
	}

	e.logger.DebugContext(ctx, "webhook delivered",
		logger.TaskID(task.ID),
		logger.NodeID(task.NodeID),
		slog.Int("status", res.StatusCode),
		logger.Duration(res.Duration))
	return nil
}

// SkipTaskExecution implements tasks.Executor
func (e *Executor) SkipTaskExecution(ctx context.Context, task *tasks.Task) bool {
	if e.breaker == nil || e.breaker.Allow() {
		return false
	}
	e.logger.DebugContext(ctx, "webhook circuit open, deferring task", logger.TaskID(task.ID))
	return true
}

// ExtendLockTime implements tasks.Executor
func (e *Executor) ExtendLockTime() time.Duration {
	return e.sender.Timeout()
}

// SkipExecutionCountIncreasing implements tasks.Executor.
// An open circuit is not the task's failure.
func (e *Executor) SkipExecutionCountIncreasing() bool {
	return true
}

// NextExecutionDateOnError implements tasks.Executor
func (e *Executor) NextExecutionDateOnError(task *tasks.Task) (time.Time, error) {
	if e.backoff == nil {
		return time.Time{}, nil
	}
	return e.now().Add(e.backoff.NextInterval(task.ExecutionCount + 1)), nil
}

// NextExecutionDateOnSkip implements tasks.Executor
func (e *Executor) NextExecutionDateOnSkip(*tasks.Task) (time.Time, error) {
	if e.breaker == nil {
		return time.Time{}, nil
	}
	return e.breaker.RetryAt(), nil
}

var _ tasks.Executor = (*Executor)(nil)
