// Package ratelimit provides the Redis-backed login attempt limiter.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "ratelimit:login:"

// RedisLimiter counts login attempts per email+IP in a fixed window.
// It fails open: Redis errors are logged and the attempt is allowed, so a
// Redis outage degrades to no rate limiting rather than locking everyone out.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	log    *zap.Logger
}

// NewRedisLimiter returns a limiter allowing limit attempts per window for
// each email+IP pair. A limit of 0 disables limiting.
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration, log *zap.Logger) *RedisLimiter {
	if window <= 0 {
		window = time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisLimiter{client: client, limit: limit, window: window, log: log}
}

// Allow records one attempt for the email+IP pair and reports whether the
// caller is still within the attempt budget.
func (l *RedisLimiter) Allow(ctx context.Context, email, ip string) (bool, error) {
	if l == nil || l.client == nil || l.limit <= 0 {
		return true, nil
	}
	key := Key(email, ip)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		l.log.Warn("ratelimit: redis unavailable, failing open", zap.Error(err))
		return true, err
	}
	return incr.Val() <= int64(l.limit), nil
}

// Key derives the Redis key for an email+IP pair. The email is hashed so raw
// addresses never appear in Redis.
func Key(email, ip string) string {
	h := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email)) + "|" + ip))
	return keyPrefix + hex.EncodeToString(h[:16])
}
