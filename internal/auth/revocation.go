package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "jwt:blacklist:"

// RedisRevocations is a revocation list shared with the API that issues tokens.
type RedisRevocations struct {
	rc *redis.Client
}

// NewRedisRevocations connects and pings. The caller decides whether a failed
// ping is fatal.
func NewRedisRevocations(ctx context.Context, addr, password string, db int) (*RedisRevocations, error) {
	rc := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rc.Ping(ctx).Err(); err != nil {
		rc.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisRevocations{rc: rc}, nil
}

func (r *RedisRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	_, err := r.rc.Get(ctx, revokedKeyPrefix+jti).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Revoke blacklists jti until ttl elapses.
func (r *RedisRevocations) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	return r.rc.Set(ctx, revokedKeyPrefix+jti, "1", ttl).Err()
}

func (r *RedisRevocations) Close() error {
	return r.rc.Close()
}
