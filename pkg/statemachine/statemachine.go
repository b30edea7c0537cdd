package statemachine

import (
	"context"
)

// State is a node of the machine.
type State interface {
	Name() string
}

// Event triggers a transition.
type Event interface {
	Name() string
}

// Action runs during a transition. Returning an error keeps the current state.
type Action func(ctx context.Context, from, to State, event Event, data any) error

// Guard vetoes a transition when it returns false.
type Guard func(ctx context.Context, from State, event Event, data any) bool

// Transition moves the machine from one state to another on an event.
type Transition struct {
	From    State
	To      State
	Event   Event
	Guards  []Guard  // all must pass
	Actions []Action // run in order before the state changes
}

// StateMachine is a finite state machine safe for concurrent use.
type StateMachine interface {
	Current() State
	AddTransition(from, to State, event Event, guards []Guard, actions []Action) error
	// Fire applies the first transition whose guards pass. The check and the
	// state change happen atomically.
	Fire(ctx context.Context, event Event, data any) error
	Reset() error
}

// StringState is a State named by its value.
type StringState string

func (s StringState) Name() string {
	return string(s)
}

// StringEvent is an Event named by its value.
type StringEvent string

func (e StringEvent) Name() string {
	return string(e)
}
