// Package redis connects to Redis with go-redis and exposes a health check.
// The client returned by Connect backs the distributed lock used by the task
// runner (see lock.NewRedisBackend).
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
package redis
