package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/nodetasks/pkg/logger"
)

// DefaultTTL is the lock lifetime used when a caller passes a non-positive TTL.
const DefaultTTL = 30 * time.Second

// Handle is a held lock.
type Handle interface {
	// Resource returns the locked resource key.
	Resource() string

	// Extend resets the remaining lifetime of the lock to ttl.
	Extend(ctx context.Context, ttl time.Duration) error

	// Release gives the lock up. Releasing an expired lock returns ErrNotHeld.
	Release(ctx context.Context) error
}

// Backend acquires TTL-scoped locks.
type Backend interface {
	// Acquire makes a single attempt and returns ErrNotAcquired on contention.
	Acquire(ctx context.Context, resource string, ttl time.Duration) (Handle, error)
}

// Kind names a coordination strategy.
type Kind string

const (
	// KindUncoordinated runs critical sections without any lock.
	KindUncoordinated Kind = "none"
	// KindExternal serialises critical sections through a Backend.
	KindExternal Kind = "external"
)

// Strategy is the coordination mode selected at startup.
type Strategy struct {
	kind    Kind
	backend Backend
}

// Uncoordinated returns the strategy for single-instance deployments.
func Uncoordinated() Strategy {
	return Strategy{kind: KindUncoordinated}
}

// External returns a strategy that locks through backend.
func External(backend Backend) Strategy {
	return Strategy{kind: KindExternal, backend: backend}
}

// Kind returns the strategy kind.
func (s Strategy) Kind() Kind {
	return s.kind
}

// Coordinator runs functions under mutual exclusion per resource key.
type Coordinator struct {
	strategy   Strategy
	retryCount int
	retryDelay time.Duration
	logger     *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRetry sets how many extra acquisition attempts are made and the pause between them.
func WithRetry(count int, delay time.Duration) Option {
	return func(c *Coordinator) {
		if count >= 0 {
			c.retryCount = count
		}
		if delay > 0 {
			c.retryDelay = delay
		}
	}
}

// WithLogger sets the logger for the coordinator.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCoordinator creates a coordinator for the given strategy.
func NewCoordinator(strategy Strategy, opts ...Option) (*Coordinator, error) {
	switch strategy.kind {
	case KindUncoordinated:
	case KindExternal:
		if strategy.backend == nil {
			return nil, ErrBackendNil
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy.kind)
	}

	c := &Coordinator{
		strategy:   strategy,
		retryCount: 3,
		retryDelay: 200 * time.Millisecond,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Coordinated reports whether locks are backed by an external coordinator.
func (c *Coordinator) Coordinated() bool {
	return c.strategy.kind == KindExternal
}

// WithLock acquires resource for ttl, calls fn with the handle and releases the lock.
//
// When the resource stays held after the retry budget, fn is not called and
// the returned error wraps ErrNotAcquired. Under the uncoordinated strategy fn
// runs directly with a handle whose Extend and Release do nothing.
func (c *Coordinator) WithLock(ctx context.Context, resource string, ttl time.Duration, fn func(ctx context.Context, h Handle) error) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	if !c.Coordinated() {
		return fn(ctx, noopHandle(resource))
	}

	h, err := c.acquire(ctx, resource, ttl)
	if err != nil {
		return err
	}

	defer func() {
		// release even when the caller's context is already cancelled
		if err := h.Release(context.WithoutCancel(ctx)); err != nil {
			c.logger.WarnContext(ctx, "failed to release lock",
				logger.Resource(resource),
				logger.Error(err))
		}
	}()

	return fn(ctx, h)
}

func (c *Coordinator) acquire(ctx context.Context, resource string, ttl time.Duration) (Handle, error) {
	for attempt := 0; ; attempt++ {
		h, err := c.strategy.backend.Acquire(ctx, resource, ttl)
		if err == nil {
			return h, nil
		}
		if !errors.Is(err, ErrNotAcquired) {
			return nil, fmt.Errorf("lock: acquire %q: %w", resource, err)
		}
		if attempt >= c.retryCount {
			return nil, fmt.Errorf("%w: %q after %d attempts", ErrNotAcquired, resource, attempt+1)
		}

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrNotAcquired, ctx.Err())
		case <-time.After(c.retryDelay):
		}
	}
}

type noopHandle string

func (h noopHandle) Resource() string                          { return string(h) }
func (noopHandle) Extend(context.Context, time.Duration) error { return nil }
func (noopHandle) Release(context.Context) error               { return nil }
