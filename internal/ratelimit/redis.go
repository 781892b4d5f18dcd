package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounter делит счетчики между экземплярами шлюза
type RedisCounter struct {
	rdb    redis.Cmdable
	prefix string
}

func NewRedisCounter(rdb redis.Cmdable) *RedisCounter {
	return &RedisCounter{rdb: rdb, prefix: "ratelimit"}
}

func (c *RedisCounter) key(k WindowKey) string {
	return fmt.Sprintf("%s:%d:%d", c.prefix, k.UserID, k.WindowStart)
}

func (c *RedisCounter) Incr(ctx context.Context, key WindowKey, ttl time.Duration) (int64, error) {
	pipe := c.rdb.TxPipeline()
	incr := pipe.Incr(ctx, c.key(key))
	// ключ живет не меньше окна
	pipe.Expire(ctx, c.key(key), ttl+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("rate limit incr: %w", err)
	}
	return incr.Val(), nil
}
