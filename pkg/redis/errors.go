package redis

import "errors"

var (
	ErrEmptyConnectionURL           = errors.New("empty redis connection URL, use REDIS_URL env var")
	ErrFailedToParseRedisConnString = errors.New("failed to parse redis connection string")
	ErrRedisNotReady                = errors.New("redis did not become ready within the connect timeout")
	ErrHealthcheckFailed            = errors.New("redis lock backend is not reachable")
	ErrClientNil                    = errors.New("redis: client is nil")
)
