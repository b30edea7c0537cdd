package webhook

import (
	"sync"
	"time"
)

// CircuitState is the state of a CircuitBreaker
type CircuitState int

const (
	// CircuitClosed lets deliveries through.
	CircuitClosed CircuitState = iota
	// CircuitOpen holds deliveries back until the recovery timeout passes.
	CircuitOpen
	// CircuitHalfOpen lets deliveries through to probe the endpoint.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker tracks consecutive delivery failures of one endpoint.
// Safe for concurrent use.
type CircuitBreaker struct {
	mu sync.Mutex

	failureThreshold int
	successThreshold int
	recoveryTimeout  time.Duration
	now              func() time.Time

	state       CircuitState
	failures    int
	successes   int
	lastFailure time.Time
}

// CircuitOption configures a CircuitBreaker
type CircuitOption func(*CircuitBreaker)

// WithCircuitClock overrides the time source
func WithCircuitClock(now func() time.Time) CircuitOption {
	return func(cb *CircuitBreaker) {
		if now != nil {
			cb.now = now
		}
	}
}

// NewCircuitBreaker creates a closed breaker. Non-positive arguments select
// 5 failures, 2 successes and 30 seconds.
func NewCircuitBreaker(failureThreshold, successThreshold int, recoveryTimeout time.Duration, opts ...CircuitOption) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if successThreshold <= 0 {
		successThreshold = 2
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = 30 * time.Second
	}

	cb := &CircuitBreaker{
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		recoveryTimeout:  recoveryTimeout,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Allow reports whether a delivery may proceed. An open breaker whose
// recovery timeout passed moves to half-open.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != CircuitOpen {
		return true
	}
	if cb.recovered() {
		cb.state = CircuitHalfOpen
		cb.successes = 0
		return true
	}
	return false
}

// RecordSuccess records a delivered payload
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failures = 0
	case CircuitHalfOpen:
		cb.successes++
		if cb.successes >= cb.successThreshold {
			cb.state = CircuitClosed
			cb.failures = 0
			cb.successes = 0
		}
	}
}

// RecordFailure records a failed delivery
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailure = cb.now()

	switch cb.state {
	case CircuitClosed:
		cb.failures++
		if cb.failures >= cb.failureThreshold {
			cb.state = CircuitOpen
		}
	case CircuitHalfOpen:
		cb.state = CircuitOpen
		cb.successes = 0
	}
}

// State returns the state Allow would act on
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen && cb.recovered() {
		return CircuitHalfOpen
	}
	return cb.state
}

// RetryAt returns when an open breaker starts probing again, or the zero
// time when deliveries are allowed.
func (cb *CircuitBreaker) RetryAt() time.Time {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != CircuitOpen || cb.recovered() {
		return time.Time{}
	}
	return cb.lastFailure.Add(cb.recoveryTimeout)
}

// Reset closes the breaker
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = CircuitClosed
	cb.failures = 0
	cb.successes = 0
	cb.lastFailure = time.Time{}
}

// recovered must be called with mu held
func (cb *CircuitBreaker) recovered() bool {
	return cb.now().Sub(cb.lastFailure) > cb.recoveryTimeout
}
