package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter enforces a fixed-window cap on assistant calls per session. The
// chat widget is public and every message costs an upstream model call, so
// the cap sits in front of the assistant client, not the history store.
type Limiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
}

// NewLimiter connects to Redis and returns a limiter allowing `limit` calls
// per session per window.
func NewLimiter(redisURL string, limit int, window time.Duration) (*Limiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return &Limiter{rdb: redis.NewClient(opts), limit: limit, window: window}, nil
}

// Allow reports whether the session may make another assistant call.
func (l *Limiter) Allow(ctx context.Context, sessionToken string) (bool, error) {
	key := "chat:ratelimit:" + sessionToken

	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, key, l.window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	return count <= int64(l.limit), nil
}

// Close closes the Redis client connection
func (l *Limiter) Close() error {
	return l.rdb.Close()
}
