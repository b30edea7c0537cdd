package lock

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config selects and tunes the coordination strategy.
type Config struct {
	// Strategy is one of "none", "memory" or "redis".
	Strategy string `env:"LOCK_STRATEGY" envDefault:"none"`
	// KeyPrefix namespaces redis lock keys.
	KeyPrefix string `env:"LOCK_KEY_PREFIX" envDefault:"lock:"`
	// RetryCount is the number of extra acquisition attempts.
	RetryCount int `env:"LOCK_RETRY_COUNT" envDefault:"3"`
	// RetryDelay is the pause between acquisition attempts.
	RetryDelay time.Duration `env:"LOCK_RETRY_DELAY" envDefault:"200ms"`
}

// New builds a coordinator from cfg. The client is used only by the redis strategy.
func New(cfg Config, client redis.UniversalClient, logger *slog.Logger) (*Coordinator, error) {
	opts := []Option{WithRetry(cfg.RetryCount, cfg.RetryDelay), WithLogger(logger)}

	switch cfg.Strategy {
	case "", string(KindUncoordinated):
		return NewCoordinator(Uncoordinated(), opts...)
	case "memory":
		return NewCoordinator(External(NewMemoryBackend()), opts...)
	case "redis":
		backend, err := NewRedisBackend(client, WithKeyPrefix(cfg.KeyPrefix))
		if err != nil {
			return nil, err
		}
		return NewCoordinator(External(backend), opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, cfg.Strategy)
	}
}
