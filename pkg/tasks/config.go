package tasks

import "time"

// Config holds the configuration for the task runner
type Config struct {
	LockResource         string        `env:"TASKS_LOCK_RESOURCE" envDefault:"tasks:runner"`
	LockTTL              time.Duration `env:"TASKS_LOCK_TTL" envDefault:"30s"`
	PollInterval         time.Duration `env:"TASKS_POLL_INTERVAL" envDefault:"1m"`
	RetryDelay           time.Duration `env:"TASKS_RETRY_DELAY" envDefault:"10m"`
	BackoffDelay         time.Duration `env:"TASKS_BACKOFF_DELAY" envDefault:"1h"`
	BackoffAfterAttempts int           `env:"TASKS_BACKOFF_AFTER_ATTEMPTS" envDefault:"3"`
}

// DefaultConfig returns the values used when no environment is loaded
func DefaultConfig() Config {
	return Config{
		LockResource:         DefaultLockResource,
		LockTTL:              DefaultLockTTL,
		PollInterval:         time.Minute,
		RetryDelay:           DefaultRetryDelay,
		BackoffDelay:         DefaultBackoffDelay,
		BackoffAfterAttempts: DefaultBackoffAfterAttempts,
	}
}

// Options converts the config into runner options
func (c Config) Options() []RunnerOption {
	return []RunnerOption{
		WithLockResource(c.LockResource),
		WithLockTTL(c.LockTTL),
		WithRetryPolicy(c.RetryDelay, c.BackoffDelay, c.BackoffAfterAttempts),
	}
}
