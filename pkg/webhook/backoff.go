package webhook

import (
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy computes the delay before retry number attempt (1-based)
type BackoffStrategy interface {
	NextInterval(attempt int) time.Duration
}

// ExponentialBackoff grows the delay by Multiplier per attempt, capped at
// MaxInterval, with an optional ±JitterFactor spread.
type ExponentialBackoff struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	JitterFactor    float64
}

// NextInterval implements BackoffStrategy
func (e ExponentialBackoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	initial := e.InitialInterval
	if initial <= 0 {
		initial = time.Minute
	}
	ceiling := e.MaxInterval
	if ceiling <= 0 {
		ceiling = 6 * time.Hour
	}
	multiplier := e.Multiplier
	if multiplier <= 0 {
		multiplier = 2
	}

	interval := float64(initial) * math.Pow(multiplier, float64(attempt-1))
	if e.JitterFactor > 0 {
		interval *= 1 + (rand.Float64()*2-1)*e.JitterFactor
	}
	if interval > float64(ceiling) {
		interval = float64(ceiling)
	}
	return time.Duration(interval)
}

// FixedBackoff always waits Interval
type FixedBackoff struct {
	Interval time.Duration
}

// NextInterval implements BackoffStrategy
func (f FixedBackoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return f.Interval
}
