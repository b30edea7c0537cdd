package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// HealthcheckTimeout bounds a single readiness probe.
const HealthcheckTimeout = 2 * time.Second

// Healthcheck returns a readiness probe for the lock backend. The probe fails
// when the server does not answer PING within HealthcheckTimeout.
func Healthcheck(client redis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		if client == nil {
			return errors.Join(ErrHealthcheckFailed, ErrClientNil)
		}
		ctx, cancel := context.WithTimeout(ctx, HealthcheckTimeout)
		defer cancel()

		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
