package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/nodetasks/pkg/logger"
)

// SyncFailurePolicy decides what a failing sync rule does to the triggering write
type SyncFailurePolicy int

const (
	// SyncContinue logs sync rule failures and lets the write proceed.
	SyncContinue SyncFailurePolicy = iota
	// SyncAbort returns the joined sync rule failures from Dispatch so the
	// caller can abort the write. Every sync rule still runs.
	SyncAbort
)

// DispatcherOption is a functional option for configuring a dispatcher
type DispatcherOption func(*Dispatcher)

// WithTaskRules registers the rules run after a write commits
func WithTaskRules(rules ...TaskRule) DispatcherOption {
	return func(d *Dispatcher) {
		for _, r := range rules {
			if r != nil {
				d.taskRules = append(d.taskRules, r)
			}
		}
	}
}

// WithSyncRules registers the rules run before a write commits
func WithSyncRules(rules ...SyncRule) DispatcherOption {
	return func(d *Dispatcher) {
		for _, r := range rules {
			if r != nil {
				d.syncRules = append(d.syncRules, r)
			}
		}
	}
}

// WithSyncFailurePolicy sets how sync rule failures propagate
func WithSyncFailurePolicy(p SyncFailurePolicy) DispatcherOption {
	return func(d *Dispatcher) {
		d.syncPolicy = p
	}
}

// WithDispatcherLogger sets the logger for the dispatcher
func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithDispatcherObserver sets the observer notified about created tasks
func WithDispatcherObserver(o Observer) DispatcherOption {
	return func(d *Dispatcher) {
		if o != nil {
			d.observer = o
		}
	}
}

// Dispatcher fans node mutations out to the registered rules.
//
// Post-commit events run task rules in registration order and persist the
// produced tasks in one batch, then signal the invoker. Pre-commit events run sync rules inline.
// A failing rule is logged and never stops its siblings.
type Dispatcher struct {
	store      Store
	invoker    *Invoker
	taskRules  []TaskRule
	syncRules  []SyncRule
	syncPolicy SyncFailurePolicy
	logger     *slog.Logger
	observer   Observer
}

// NewDispatcher creates a new mutation dispatcher
func NewDispatcher(store Store, invoker *Invoker, opts ...DispatcherOption) (*Dispatcher, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if invoker == nil {
		return nil, ErrInvokerNil
	}

	d := &Dispatcher{
		store:    store,
		invoker:  invoker,
		logger:   slog.Default(),
		observer: NoopObserver{},
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With(logger.Component("task_dispatcher"))
	return d, nil
}

// Dispatch handles one lifecycle signal. It returns the tasks persisted by a
// post-commit event; pre-commit events return none.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event, before, after Node, diff Diff) ([]*Task, error) {
	if !event.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEvent, event)
	}

	m := Mutation{Event: event, Prev: before, Current: after, Diff: diff}
	if m.Diff == nil && (event == EventUpdating || event == EventUpdated) {
		m.Diff = ComputeDiff(before, after)
	}

	if event.PreCommit() {
		return nil, d.runSync(ctx, m)
	}
	return d.runAsync(ctx, m)
}

// Creating signals that a node is about to be inserted
func (d *Dispatcher) Creating(ctx context.Context, after Node) error {
	_, err := d.Dispatch(ctx, EventCreating, nil, after, nil)
	return err
}

// Updating signals that a node is about to be changed
func (d *Dispatcher) Updating(ctx context.Context, before, after Node, diff Diff) error {
	_, err := d.Dispatch(ctx, EventUpdating, before, after, diff)
	return err
}

// Deleting signals that a node is about to be removed
func (d *Dispatcher) Deleting(ctx context.Context, before Node) error {
	_, err := d.Dispatch(ctx, EventDeleting, before, nil, nil)
	return err
}

// Created signals that a node was inserted
func (d *Dispatcher) Created(ctx context.Context, after Node) ([]*Task, error) {
	return d.Dispatch(ctx, EventCreated, nil, after, nil)
}

// Updated signals that a node was changed
func (d *Dispatcher) Updated(ctx context.Context, before, after Node, diff Diff) ([]*Task, error) {
	return d.Dispatch(ctx, EventUpdated, before, after, diff)
}

// Deleted signals that a node was removed
func (d *Dispatcher) Deleted(ctx context.Context, before Node) ([]*Task, error) {
	return d.Dispatch(ctx, EventDeleted, before, nil, nil)
}

func (d *Dispatcher) runSync(ctx context.Context, m Mutation) error {
	var errs []error
	for _, rule := range d.syncRules {
		executed, err := ProcessSyncRule(ctx, rule, m)
		if err != nil {
			d.logger.ErrorContext(ctx, "sync rule failed",
				logger.Rule(rule.Name()),
				logger.Event(string(m.Event)),
				logger.NodeID(m.NodeID()),
				logger.Error(err))
			errs = append(errs, err)
			continue
		}
		if executed {
			d.logger.DebugContext(ctx, "sync rule executed",
				logger.Rule(rule.Name()),
				logger.Event(string(m.Event)),
				logger.NodeID(m.NodeID()))
		}
	}

	if d.syncPolicy == SyncAbort && len(errs) > 0 {
		d.logger.WarnContext(ctx, "sync rules aborted the write",
			logger.Event(string(m.Event)),
			logger.NodeID(m.NodeID()),
			logger.Errors(errs...))
		return errors.Join(errs...)
	}
	return nil
}

func (d *Dispatcher) runAsync(ctx context.Context, m Mutation) ([]*Task, error) {
	if len(d.taskRules) == 0 {
		return nil, nil
	}

	// rules share the mutation maps and may write them in Preprocess, so they
	// run one at a time in registration order
	var created []*Task
	for _, rule := range d.taskRules {
		produced, err := ProcessTaskRule(ctx, rule, m)
		if err != nil {
			d.logger.ErrorContext(ctx, "task rule failed",
				logger.Rule(rule.Name()),
				logger.Event(string(m.Event)),
				logger.NodeID(m.NodeID()),
				logger.Error(err))
			continue
		}
		created = append(created, produced...)
	}

	if len(created) == 0 {
		return nil, nil
	}

	if err := d.store.CreateTasks(ctx, created); err != nil {
		d.logger.ErrorContext(ctx, "failed to persist tasks",
			logger.Event(string(m.Event)),
			logger.NodeID(m.NodeID()),
			slog.Int("count", len(created)),
			logger.Error(err))
		return nil, fmt.Errorf("persist %d tasks: %w", len(created), err)
	}

	d.logger.DebugContext(ctx, "tasks created",
		logger.Event(string(m.Event)),
		logger.NodeID(m.NodeID()),
		slog.Int("count", len(created)))
	d.observer.TasksCreated(ctx, len(created))
	d.invoker.Invoke(ctx)

	return created, nil
}
