package lock

import "errors"

var (
	// ErrNotAcquired signals lock contention: another holder owns the resource.
	ErrNotAcquired = errors.New("lock: resource is held by another owner")

	// ErrNotHeld is returned when extending or releasing a lock that expired or changed owner.
	ErrNotHeld = errors.New("lock: lock is no longer held")

	// ErrBackendNil is returned when the external strategy has no backend.
	ErrBackendNil = errors.New("lock: backend cannot be nil")

	// ErrUnknownStrategy is returned for an unsupported LOCK_STRATEGY value.
	ErrUnknownStrategy = errors.New("lock: unknown strategy")

	// ErrRedisClientNil is returned when the redis strategy is selected without a client.
	ErrRedisClientNil = errors.New("lock: redis client cannot be nil")
)

// IsContention reports whether err means the lock was held by someone else.
func IsContention(err error) bool {
	return errors.Is(err, ErrNotAcquired)
}
