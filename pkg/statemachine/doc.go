// Package statemachine is a small finite state machine used to model
// component lifecycles such as the task runner cycle.
//
// A machine is a table of transitions keyed by source state and event.
// Fire looks up the transitions for the current state, picks the first one
// whose guards pass, runs its actions and moves to the target state. The
// lookup and the move happen under one lock, which makes Fire usable as an
// atomic compare-and-set:
//
//	idle := statemachine.StringState("idle")
//	busy := statemachine.StringState("busy")
//	start := statemachine.StringEvent("start")
//	done := statemachine.StringEvent("done")
//
//	sm := statemachine.MustNew(idle, statemachine.WithTransitions([]statemachine.TransitionDef{
//		{From: idle, To: busy, Event: start},
//		{From: busy, To: idle, Event: done},
//	}))
//
//	if err := sm.Fire(ctx, start, nil); err != nil {
//		// already busy
//	}
//
// Fire reports ErrNoTransitionAvailable when the state has no transition for
// the event and ErrTransitionRejected when guards veto all candidates.
package statemachine
