package tasks

import (
	"context"
	"sync"
)

// InvokerMode controls whether Invoke signals the runner right away
type InvokerMode int32

const (
	// ModeImmediate signals the drain loop on every Invoke.
	ModeImmediate InvokerMode = iota
	// ModeDeferred records Invoke calls and flushes one signal on the last Resume.
	ModeDeferred
)

func (m InvokerMode) String() string {
	if m == ModeDeferred {
		return "deferred"
	}
	return "immediate"
}

// Invoker is the fire-and-forget trigger of the runner.
//
// Signals are coalesced: the channel holds at most one pending signal, so a
// burst of mutations wakes the drain loop once. Defer and Resume nest, so
// overlapping runner cycles keep the invoker deferred until the last one ends.
type Invoker struct {
	mu      sync.Mutex
	depth   int
	pending bool
	signals chan struct{}
}

// NewInvoker creates an invoker in immediate mode
func NewInvoker() *Invoker {
	return &Invoker{
		signals: make(chan struct{}, 1),
	}
}

// Invoke requests a runner cycle. It never blocks.
func (i *Invoker) Invoke(ctx context.Context) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.depth > 0 {
		i.pending = true
		return
	}
	i.fire()
}

// Defer switches to deferred mode for the duration of a runner cycle.
// Every Defer must be paired with a Resume.
func (i *Invoker) Defer() {
	i.mu.Lock()
	i.depth++
	i.mu.Unlock()
}

// Resume ends one Defer. The last one switches back to immediate mode and
// flushes a pending request.
func (i *Invoker) Resume() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.depth > 0 {
		i.depth--
	}
	if i.depth > 0 {
		return
	}
	if i.pending {
		i.pending = false
		i.fire()
	}
}

// Mode returns the current mode
func (i *Invoker) Mode() InvokerMode {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.depth > 0 {
		return ModeDeferred
	}
	return ModeImmediate
}

// Signals is consumed by the drain loop
func (i *Invoker) Signals() <-chan struct{} {
	return i.signals
}

// fire must be called with mu held
func (i *Invoker) fire() {
	select {
	case i.signals <- struct{}{}:
	default:
		// a signal is already queued
	}
}
