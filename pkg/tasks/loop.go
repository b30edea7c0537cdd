package tasks

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/nodetasks/pkg/logger"
)

// Loop drives the runner: it runs a cycle on every invoker signal and on a
// periodic tick, so tasks rescheduled into the future are picked up without a
// new mutation.
type Loop struct {
	runner       *Runner
	pollInterval time.Duration
	logger       *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// LoopOption is a functional option for configuring a drain loop
type LoopOption func(*Loop)

// WithPollInterval sets the safety tick. Zero or negative values disable it.
func WithPollInterval(d time.Duration) LoopOption {
	return func(l *Loop) {
		l.pollInterval = d
	}
}

// WithLoopLogger sets the logger for the loop
func WithLoopLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoop creates a drain loop for runner
func NewLoop(runner *Runner, opts ...LoopOption) (*Loop, error) {
	if runner == nil {
		return nil, ErrRunnerNil
	}

	l := &Loop{
		runner:       runner,
		pollInterval: time.Minute,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With(logger.Component("task_loop"))
	return l, nil
}

// Start begins draining in the background. It runs one cycle immediately.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		return ErrLoopAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})

	go l.run(ctx, l.done)

	l.logger.Info("drain loop started", slog.Duration("poll_interval", l.pollInterval))
	return nil
}

// Stop cancels the loop and waits for the current cycle to finish
func (l *Loop) Stop() error {
	l.mu.Lock()
	if l.cancel == nil {
		l.mu.Unlock()
		return ErrLoopNotStarted
	}
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()

	cancel()
	<-done

	l.logger.Info("drain loop stopped")
	return nil
}

// Run starts the loop and returns a function suitable for errgroup
func (l *Loop) Run(ctx context.Context) func() error {
	return func() error {
		if err := l.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return l.Stop()
	}
}

func (l *Loop) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	var tick <-chan time.Time
	if l.pollInterval > 0 {
		ticker := time.NewTicker(l.pollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	l.cycle(ctx)

	signals := l.runner.Invoker().Signals()
	for {
		select {
		case <-ctx.Done():
			return
		case <-signals:
			l.cycle(ctx)
		case <-tick:
			l.cycle(ctx)
		}
	}
}

func (l *Loop) cycle(ctx context.Context) {
	if _, err := l.runner.Run(ctx); err != nil && !errors.Is(err, ErrRunnerBusy) {
		if ctx.Err() != nil {
			return
		}
		l.logger.ErrorContext(ctx, "runner cycle failed", logger.Error(err))
	}
}
