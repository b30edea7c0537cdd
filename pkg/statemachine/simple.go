package statemachine

import (
	"context"
	"fmt"
	"sync"
)

// SimpleStateMachine keeps transitions in memory indexed by [from][event].
type SimpleStateMachine struct {
	mu           sync.RWMutex
	initialState State
	currentState State
	transitions  map[string]map[string][]Transition
}

func newSimpleStateMachine(initialState State) *SimpleStateMachine {
	return &SimpleStateMachine{
		initialState: initialState,
		currentState: initialState,
		transitions:  make(map[string]map[string][]Transition),
	}
}

func (sm *SimpleStateMachine) Current() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.currentState
}

func (sm *SimpleStateMachine) AddTransition(from, to State, event Event, guards []Guard, actions []Action) error {
	if from == nil || to == nil || event == nil {
		return ErrInvalidTransition
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	byEvent, ok := sm.transitions[from.Name()]
	if !ok {
		byEvent = make(map[string][]Transition)
		sm.transitions[from.Name()] = byEvent
	}

	// several transitions per from/event allow guard-based branching
	byEvent[event.Name()] = append(byEvent[event.Name()], Transition{
		From:    from,
		To:      to,
		Event:   event,
		Guards:  guards,
		Actions: actions,
	})
	return nil
}

func (sm *SimpleStateMachine) Fire(ctx context.Context, event Event, data any) error {
	if event == nil {
		return ErrInvalidEvent
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	t, err := sm.match(ctx, event, data)
	if err != nil {
		return err
	}

	for _, action := range t.Actions {
		if action == nil {
			continue
		}
		if err := action(ctx, sm.currentState, t.To, event, data); err != nil {
			return fmt.Errorf("action failed: %w", err)
		}
	}

	sm.currentState = t.To
	return nil
}

func (sm *SimpleStateMachine) Reset() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.currentState = sm.initialState
	return nil
}

// match returns the first transition for event whose guards all pass.
// Must be called with mu held.
func (sm *SimpleStateMachine) match(ctx context.Context, event Event, data any) (*Transition, error) {
	from, name := sm.currentState.Name(), event.Name()

	candidates := sm.transitions[from][name]
	if len(candidates) == 0 {
		return nil, NewErrNoTransitionAvailable(from, name)
	}

	for i := range candidates {
		if sm.guardsPass(ctx, candidates[i].Guards, event, data) {
			return &candidates[i], nil
		}
	}
	return nil, NewErrTransitionRejected(from, name)
}

func (sm *SimpleStateMachine) guardsPass(ctx context.Context, guards []Guard, event Event, data any) bool {
	for _, guard := range guards {
		if guard != nil && !guard(ctx, sm.currentState, event, data) {
			return false
		}
	}
	return true
}
