package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonathanprocter/practice-intelligently-sub010/internal/retry"
)

// NewClient creates a go-redis client from a URL (e.g. "redis://localhost:6379")
// and verifies the connection. The initial ping is retried: at startup the
// service frequently races its Redis dependency.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opts)

	policy := retry.Policy{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.Warn("Redis ping failed, retrying",
				"attempt", attempt,
				"backoff", backoff,
				"error", err,
			)
		},
	}
	transient := func(error) retry.Action { return retry.Retry }

	err = retry.DoVoid(ctx, policy, transient, func() error {
		return rdb.Ping(ctx).Err()
	})
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return rdb, nil
}
