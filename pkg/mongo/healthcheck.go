package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// HealthcheckTimeout bounds a single readiness probe.
const HealthcheckTimeout = 2 * time.Second

// Healthcheck returns a readiness probe for the task store. It pings the
// primary because the runner writes every drained task back.
func Healthcheck(client *mongo.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if client == nil {
			return errors.Join(ErrHealthcheckFailed, ErrClientNil)
		}
		ctx, cancel := context.WithTimeout(ctx, HealthcheckTimeout)
		defer cancel()

		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
