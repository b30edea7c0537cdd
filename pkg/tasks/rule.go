package tasks

import (
	"context"
	"fmt"
	"time"
)

// Gate is the four-stage filter shared by task rules and sync rules.
// Stages run in order and short-circuit:
//
//  1. IsActualNode: is the rule applicable to this record at all
//  2. AsyncCheck, only when NeedAsyncCheck is true
//  3. Preprocess, only when IsActualChangesForPreprocess is true
//  4. IsActualChanges: did the fields the rule watches change
type Gate interface {
	Name() string
	IsActualNode(m Mutation) bool
	NeedAsyncCheck() bool
	AsyncCheck(ctx context.Context, m Mutation) (bool, error)
	IsActualChangesForPreprocess(m Mutation) bool
	Preprocess(ctx context.Context, m Mutation) error
	IsActualChanges(m Mutation) bool
}

// TaskRule derives tasks from a committed mutation
type TaskRule interface {
	Gate
	PrepareTasks(ctx context.Context, m Mutation) ([]*Task, error)
	TaskPriority() int
}

// SyncRule performs a side effect before a mutation commits
type SyncRule interface {
	Gate
	Execute(ctx context.Context, m Mutation) error
}

// BaseRule provides the optional stages of a Gate with no-op behaviour.
// Embed it and implement Name, IsActualNode, IsActualChanges and the final stage.
type BaseRule struct{}

func (BaseRule) NeedAsyncCheck() bool { return false }

func (BaseRule) AsyncCheck(context.Context, Mutation) (bool, error) { return true, nil }

func (BaseRule) IsActualChangesForPreprocess(Mutation) bool { return false }

func (BaseRule) Preprocess(context.Context, Mutation) error { return nil }

// TaskPriority returns DefaultPriority
func (BaseRule) TaskPriority() int { return DefaultPriority }

// pass runs the gate stages. A false result with a nil error means the rule
// does not apply to the mutation.
func pass(ctx context.Context, g Gate, m Mutation) (bool, error) {
	if !g.IsActualNode(m) {
		return false, nil
	}
	if g.NeedAsyncCheck() {
		ok, err := g.AsyncCheck(ctx, m)
		if err != nil {
			return false, &RuleError{Rule: g.Name(), Stage: "async_check", Err: err}
		}
		if !ok {
			return false, nil
		}
	}
	if g.IsActualChangesForPreprocess(m) {
		if err := g.Preprocess(ctx, m); err != nil {
			return false, &RuleError{Rule: g.Name(), Stage: "preprocess", Err: err}
		}
	}
	return g.IsActualChanges(m), nil
}

// ProcessTaskRule runs a task rule against a mutation and returns the tasks it
// produced. Each task gets the rule's priority, plus the node id and creation
// time when the rule left them empty.
func ProcessTaskRule(ctx context.Context, rule TaskRule, m Mutation) (out []*Task, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, &RuleError{Rule: rule.Name(), Stage: "panic", Err: fmt.Errorf("%v", r)}
		}
	}()

	ok, err := pass(ctx, rule, m)
	if err != nil || !ok {
		return nil, err
	}

	produced, err := rule.PrepareTasks(ctx, m)
	if err != nil {
		return nil, &RuleError{Rule: rule.Name(), Stage: "prepare_tasks", Err: err}
	}

	priority := rule.TaskPriority()
	now := time.Now().UTC()
	out = make([]*Task, 0, len(produced))
	for _, t := range produced {
		if t == nil {
			continue
		}
		t.Priority = priority
		if t.NodeID == "" {
			t.NodeID = m.NodeID()
		}
		if t.DateTime.IsZero() {
			t.DateTime = now
		}
		out = append(out, t)
	}
	return out, nil
}

// ProcessSyncRule runs a sync rule against a mutation.
// It reports whether the rule's Execute stage ran.
func ProcessSyncRule(ctx context.Context, rule SyncRule, m Mutation) (executed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &RuleError{Rule: rule.Name(), Stage: "panic", Err: fmt.Errorf("%v", r)}
		}
	}()

	ok, err := pass(ctx, rule, m)
	if err != nil || !ok {
		return false, err
	}
	if err := rule.Execute(ctx, m); err != nil {
		return true, &RuleError{Rule: rule.Name(), Stage: "execute", Err: err}
	}
	return true, nil
}
