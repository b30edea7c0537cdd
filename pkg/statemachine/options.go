package statemachine

import (
	"errors"
	"fmt"
)

// Option configures a state machine during construction.
type Option func(*SimpleStateMachine) error

// TransitionOption attaches guards and actions to a transition.
type TransitionOption func(*Transition)

// TransitionDef describes a transition for WithTransitions.
type TransitionDef struct {
	From    State
	To      State
	Event   Event
	Guards  []Guard
	Actions []Action
}

// New creates a state machine starting in initialState.
func New(initialState State, opts ...Option) (StateMachine, error) {
	if initialState == nil {
		return nil, errors.New("initial state cannot be nil")
	}

	sm := newSimpleStateMachine(initialState)
	for _, opt := range opts {
		if err := opt(sm); err != nil {
			return nil, err
		}
	}
	return sm, nil
}

// MustNew is like New but panics on a misconfigured machine.
func MustNew(initialState State, opts ...Option) StateMachine {
	sm, err := New(initialState, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create state machine: %v", err))
	}
	return sm
}

// WithTransition adds a single transition.
func WithTransition(from, to State, event Event, opts ...TransitionOption) Option {
	return func(sm *SimpleStateMachine) error {
		t := &Transition{}
		for _, opt := range opts {
			opt(t)
		}
		return sm.AddTransition(from, to, event, t.Guards, t.Actions)
	}
}

// WithTransitions adds a table of transitions.
func WithTransitions(defs []TransitionDef) Option {
	return func(sm *SimpleStateMachine) error {
		for i, d := range defs {
			if err := sm.AddTransition(d.From, d.To, d.Event, d.Guards, d.Actions); err != nil {
				return fmt.Errorf("transition[%d] %s->%s on %s: %w", i, nameOf(d.From), nameOf(d.To), nameOf(d.Event), err)
			}
		}
		return nil
	}
}

// WithGuard adds guards to a transition. Nil guards are ignored.
func WithGuard(guards ...Guard) TransitionOption {
	return func(t *Transition) {
		for _, g := range guards {
			if g != nil {
				t.Guards = append(t.Guards, g)
			}
		}
	}
}

// WithAction adds actions to a transition. Nil actions are ignored.
func WithAction(actions ...Action) TransitionOption {
	return func(t *Transition) {
		for _, a := range actions {
			if a != nil {
				t.Actions = append(t.Actions, a)
			}
		}
	}
}

func nameOf(v interface{ Name() string }) string {
	if v == nil {
		return "<nil>"
	}
	return v.Name()
}
