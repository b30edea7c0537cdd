package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// HealthcheckTimeout bounds a single readiness probe.
const HealthcheckTimeout = 2 * time.Second

// Healthcheck returns a readiness probe for the task store. Besides pinging
// the pool it fails until the task table exists, so an instance started
// before `taskd migrate` is not reported ready.
func Healthcheck(pool *pgxpool.Pool, table string) func(context.Context) error {
	return func(ctx context.Context) error {
		if pool == nil {
			return errors.Join(ErrHealthcheckFailed, ErrPoolNil)
		}
		ctx, cancel := context.WithTimeout(ctx, HealthcheckTimeout)
		defer cancel()

		if err := pool.Ping(ctx); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}

		var exists bool
		if err := pool.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", table).Scan(&exists); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		if !exists {
			return errors.Join(ErrHealthcheckFailed, fmt.Errorf("%w: %q", ErrTaskTableMissing, table))
		}
		return nil
	}
}
