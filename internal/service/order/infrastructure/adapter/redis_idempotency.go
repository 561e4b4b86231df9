package adapter

import (
	"context"
	"time"

	"demoshop/internal/pkg/apperr"
	"demoshop/internal/pkg/redis"
)

const idempotencyKeyPrefix = "order:checkout:"

// RedisIdempotencyGuard 用 SETNX 实现 port.IdempotencyGuard。
// TTL 到期后键自动消失，数据库唯一约束负责永久防线。
type RedisIdempotencyGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisIdempotencyGuard(client *redis.Client, ttl time.Duration) *RedisIdempotencyGuard {
	return &RedisIdempotencyGuard{client: client, ttl: ttl}
}

func (g *RedisIdempotencyGuard) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := g.client.SetNX(ctx, idempotencyKeyPrefix+key, "1", g.ttl)
	if err != nil {
		return false, apperr.Wrap(err, apperr.Unavailable, "acquire idempotency key")
	}
	return ok, nil
}

func (g *RedisIdempotencyGuard) Release(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, idempotencyKeyPrefix+key); err != nil {
		return apperr.Wrap(err, apperr.Unavailable, "release idempotency key")
	}
	return nil
}
