package webhook

import (
	"context"
	"slices"

	"github.com/dmitrymomot/nodetasks/pkg/tasks"
)

// ChangeRule emits one task per post-commit mutation that touches a watched
// field. Without watched fields every update with a non-empty diff matches.
// Creates and deletes always match.
type ChangeRule struct {
	tasks.BaseRule

	taskType string
	fields   []string
	events   []tasks.Event
	priority int
}

// RuleOption configures a ChangeRule
type RuleOption func(*ChangeRule)

// WithEvents limits the rule to the given post-commit events
func WithEvents(events ...tasks.Event) RuleOption {
	return func(r *ChangeRule) {
		r.events = r.events[:0]
		for _, ev := range events {
			if ev.Valid() && !ev.PreCommit() {
				r.events = append(r.events, ev)
			}
		}
	}
}

// WithPriority sets the priority of produced tasks
func WithPriority(p int) RuleOption {
	return func(r *ChangeRule) {
		r.priority = p
	}
}

// NewChangeRule creates a rule producing tasks of taskType
func NewChangeRule(taskType string, fields []string, opts ...RuleOption) (*ChangeRule, error) {
	if taskType == "" {
		return nil, ErrTaskTypeEmpty
	}
	r := &ChangeRule{
		taskType: taskType,
		fields:   slices.Clone(fields),
		events:   []tasks.Event{tasks.EventCreated, tasks.EventUpdated, tasks.EventDeleted},
		priority: tasks.DefaultPriority,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *ChangeRule) Name() string {
	return "webhook:" + r.taskType
}

func (r *ChangeRule) IsActualNode(m tasks.Mutation) bool {
	return m.NodeID() != "" && slices.Contains(r.events, m.Event)
}

func (r *ChangeRule) IsActualChanges(m tasks.Mutation) bool {
	if m.Event != tasks.EventUpdated {
		return true
	}
	if len(r.fields) == 0 {
		return len(m.Diff) > 0
	}
	return m.Diff.Has(r.fields...)
}

func (r *ChangeRule) TaskPriority() int {
	return r.priority
}

func (r *ChangeRule) PrepareTasks(_ context.Context, m tasks.Mutation) ([]*tasks.Task, error) {
	changed := make([]string, 0, len(m.Diff))
	for field := range m.Diff {
		changed = append(changed, field)
	}
	slices.Sort(changed)

	return []*tasks.Task{{
		Type: r.taskType,
		AdditionalData: map[string]any{
			"event":   string(m.Event),
			"changed": changed,
		},
	}}, nil
}

var _ tasks.TaskRule = (*ChangeRule)(nil)
