// Package lock provides TTL-scoped mutual exclusion for background work that
// must run on one instance at a time.
//
// The coordination mode is an explicit Strategy chosen at startup:
//
//   - Uncoordinated runs the critical section directly. Use it for
//     single-instance deployments.
//   - External serialises the critical section through a Backend. The package
//     ships a Redis backend (SET NX PX with an owner token) and an in-process
//     MemoryBackend for tests and single binaries with several goroutines.
//
// # Usage
//
//	client, _ := redis.Connect(ctx, redisCfg)
//	backend, _ := lock.NewRedisBackend(client)
//	coord, _ := lock.NewCoordinator(lock.External(backend), lock.WithRetry(3, 200*time.Millisecond))
//
//	err := coord.WithLock(ctx, "tasks:runner", 30*time.Second, func(ctx context.Context, h lock.Handle) error {
//		// long work may ask for more time
//		return h.Extend(ctx, 90*time.Second)
//	})
//	if lock.IsContention(err) {
//		// another instance holds the lock; try again later
//	}
//
// # Errors
//
// ErrNotAcquired marks contention and is expected under load. Other errors
// come from the backend and are wrapped.
package lock
