package tasks

import (
	"cmp"
	"time"
)

// BatchSize is the maximum number of tasks a single runner cycle drains.
const BatchSize = 5

// DefaultPriority is stamped on tasks whose rule does not override TaskPriority.
// Lower values execute first.
const DefaultPriority = 1

// Task is a persisted unit of deferred work derived from a node mutation.
type Task struct {
	ID             string     `json:"_id,omitempty" bson:"_id,omitempty"`
	Type           string     `json:"type" bson:"type"`
	NodeID         string     `json:"nodeId" bson:"nodeId"`
	DateTime       time.Time  `json:"dateTime" bson:"dateTime"`
	Priority       int        `json:"priority" bson:"priority"`
	ExecuteDate    *time.Time `json:"executeDate,omitempty" bson:"executeDate,omitempty"`
	ExecutionCount int        `json:"executionCount,omitempty" bson:"executionCount,omitempty"`
	SkipCount      int        `json:"skipCount,omitempty" bson:"skipCount,omitempty"`
	AdditionalData any        `json:"additionalData,omitempty" bson:"additionalData,omitempty"`
}

// IsDue reports whether the task is eligible for execution at now.
// A task without ExecuteDate is always due.
func (t *Task) IsDue(now time.Time) bool {
	return t.ExecuteDate == nil || !t.ExecuteDate.After(now)
}

// Clone returns a shallow copy with its own ExecuteDate pointer.
func (t *Task) Clone() *Task {
	c := *t
	if t.ExecuteDate != nil {
		d := *t.ExecuteDate
		c.ExecuteDate = &d
	}
	return &c
}

// Compare orders tasks by priority ascending, then by ExecuteDate ascending.
// Tasks without ExecuteDate come first within the same priority.
func Compare(a, b *Task) int {
	if a.Priority != b.Priority {
		return cmp.Compare(a.Priority, b.Priority)
	}
	switch {
	case a.ExecuteDate == nil && b.ExecuteDate == nil:
		return 0
	case a.ExecuteDate == nil:
		return -1
	case b.ExecuteDate == nil:
		return 1
	}
	return a.ExecuteDate.Compare(*b.ExecuteDate)
}
