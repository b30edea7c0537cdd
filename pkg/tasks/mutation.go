package tasks

import (
	"reflect"
)

// Event names a lifecycle signal emitted by the CRUD layer
type Event string

// Pre-commit events run sync rules; post-commit events run task rules.
const (
	EventCreating Event = "creating"
	EventUpdating Event = "updating"
	EventDeleting Event = "deleting"
	EventCreated  Event = "created"
	EventUpdated  Event = "updated"
	EventDeleted  Event = "deleted"
)

// Valid reports whether e is one of the six lifecycle events
func (e Event) Valid() bool {
	switch e {
	case EventCreating, EventUpdating, EventDeleting, EventCreated, EventUpdated, EventDeleted:
		return true
	}
	return false
}

// PreCommit reports whether the event fires before the write is committed
func (e Event) PreCommit() bool {
	return e == EventCreating || e == EventUpdating || e == EventDeleting
}

// Node is a schemaless snapshot of a domain record
type Node map[string]any

// ID returns the record identity stored under "_id" or "id"
func (n Node) ID() string {
	if n == nil {
		return ""
	}
	for _, key := range []string{"_id", "id"} {
		switch v := n[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case interface{ Hex() string }:
			return v.Hex()
		case interface{ String() string }:
			return v.String()
		}
	}
	return ""
}

// String returns the string value of a top-level field, or "" when absent
func (n Node) String(field string) string {
	s, _ := n[field].(string)
	return s
}

// FieldChange holds the old and new value of a changed field
type FieldChange struct {
	Old any `json:"old,omitempty"`
	New any `json:"new,omitempty"`
}

// Diff maps top-level field names to their change
type Diff map[string]FieldChange

// Has reports whether any of the given fields changed
func (d Diff) Has(fields ...string) bool {
	for _, f := range fields {
		if _, ok := d[f]; ok {
			return true
		}
	}
	return false
}

// ComputeDiff returns the shallow difference between two node snapshots.
// Fields are compared with reflect.DeepEqual.
func ComputeDiff(before, after Node) Diff {
	d := make(Diff)
	for k, nv := range after {
		ov, ok := before[k]
		if !ok || !reflect.DeepEqual(ov, nv) {
			d[k] = FieldChange{Old: ov, New: nv}
		}
	}
	for k, ov := range before {
		if _, ok := after[k]; !ok {
			d[k] = FieldChange{Old: ov}
		}
	}
	return d
}

// Mutation is the transient input handed to every rule
type Mutation struct {
	Event Event
	// Prev is the state before the write, nil on create.
	Prev Node
	// Current is the state after the write, nil on delete.
	Current Node
	// Diff is the optional change set, computed for updates when not supplied.
	Diff Diff
}

// NodeID returns the identity of the mutated record
func (m Mutation) NodeID() string {
	if id := m.Current.ID(); id != "" {
		return id
	}
	return m.Prev.ID()
}
