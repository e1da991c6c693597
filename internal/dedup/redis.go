package dedup

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis shares the suppression window between API replicas using SET NX with
// an expiry. The key expires after the window, so no pruning is needed.
type Redis struct {
	client *redis.Client
	prefix string
	window time.Duration
	log    *zap.Logger
}

// NewRedis builds a Redis-backed filter.
func NewRedis(client *redis.Client, window time.Duration, log *zap.Logger) *Redis {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Redis{client: client, prefix: "attendance:scan:", window: window, log: log}
}

// Allow fails open: if Redis is unreachable the scan proceeds and the
// recorder's uniqueness guarantee still prevents double records.
func (r *Redis) Allow(ctx context.Context, key string, _ time.Time) bool {
	ok, err := r.client.SetNX(ctx, r.prefix+key, 1, r.window).Result()
	if err != nil {
		r.log.Warn("dedup redis unavailable, allowing scan", zap.String("key", key), zap.Error(err))
		return true
	}
	return ok
}

// Forget deletes the window key. Errors are logged; the key expires anyway.
func (r *Redis) Forget(ctx context.Context, key string) {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		r.log.Warn("dedup redis forget failed", zap.String("key", key), zap.Error(err))
	}
}
