package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces lock keys in Redis.
const DefaultKeyPrefix = "lock:"

// Only the owner token may delete or extend a key.
var (
	releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

	extendScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0`)
)

// RedisBackend implements Backend with SET NX PX and a random owner token.
// It gives best-effort mutual exclusion on a single Redis primary.
type RedisBackend struct {
	client redis.UniversalClient
	prefix string
}

// RedisOption configures a RedisBackend.
type RedisOption func(*RedisBackend)

// WithKeyPrefix sets the key prefix. Empty prefixes are ignored.
func WithKeyPrefix(prefix string) RedisOption {
	return func(b *RedisBackend) {
		if prefix != "" {
			b.prefix = prefix
		}
	}
}

// NewRedisBackend creates a Redis lock backend.
func NewRedisBackend(client redis.UniversalClient, opts ...RedisOption) (*RedisBackend, error) {
	if client == nil {
		return nil, ErrRedisClientNil
	}
	b := &RedisBackend{client: client, prefix: DefaultKeyPrefix}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Acquire implements Backend.
func (b *RedisBackend) Acquire(ctx context.Context, resource string, ttl time.Duration) (Handle, error) {
	token := uuid.NewString()
	key := b.prefix + resource

	ok, err := b.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return &redisHandle{client: b.client, key: key, resource: resource, token: token}, nil
}

type redisHandle struct {
	client   redis.UniversalClient
	key      string
	resource string
	token    string
}

func (h *redisHandle) Resource() string {
	return h.resource
}

func (h *redisHandle) Extend(ctx context.Context, ttl time.Duration) error {
	n, err := extendScript.Run(ctx, h.client, []string{h.key}, h.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return errors.Join(ErrNotHeld, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

func (h *redisHandle) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, h.client, []string{h.key}, h.token).Int64()
	if err != nil {
		return errors.Join(ErrNotHeld, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}
