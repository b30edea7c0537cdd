package webhook

import (
	"log/slog"
	"time"
)

// Config wires a ChangeRule and its Executor from the environment
type Config struct {
	// URL enables webhook notifications when set.
	URL              string        `env:"WEBHOOK_URL"`
	Secret           string        `env:"WEBHOOK_SECRET"`
	TaskType         string        `env:"WEBHOOK_TASK_TYPE" envDefault:"webhook.notify"`
	WatchFields      []string      `env:"WEBHOOK_WATCH_FIELDS" envSeparator:","`
	Priority         int           `env:"WEBHOOK_TASK_PRIORITY" envDefault:"1"`
	Timeout          time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"10s"`
	FailureThreshold int           `env:"WEBHOOK_FAILURE_THRESHOLD" envDefault:"5"`
	RecoveryTimeout  time.Duration `env:"WEBHOOK_RECOVERY_TIMEOUT" envDefault:"5m"`
}

// Enabled reports whether a webhook endpoint is configured
func (c Config) Enabled() bool {
	return c.URL != ""
}

// NewFromConfig builds the rule and executor described by cfg
func NewFromConfig(cfg Config, log *slog.Logger) (*ChangeRule, *Executor, error) {
	rule, err := NewChangeRule(cfg.TaskType, cfg.WatchFields, WithPriority(cfg.Priority))
	if err != nil {
		return nil, nil, err
	}
	exec, err := NewExecutor(cfg.TaskType, cfg.URL,
		WithSecret(cfg.Secret),
		WithSender(NewSender(nil, cfg.Timeout)),
		WithCircuitBreaker(NewCircuitBreaker(cfg.FailureThreshold, 1, cfg.RecoveryTimeout)),
		WithBackoff(ExponentialBackoff{JitterFactor: 0.1}),
		WithLogger(log),
	)
	if err != nil {
		return nil, nil, err
	}
	return rule, exec, nil
}
