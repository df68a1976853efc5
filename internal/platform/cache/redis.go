package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 3 * time.Second

// New creates a Redis client and verifies it with a ping.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("platform/cache: ping: %w", err)
	}

	return client, nil
}

// Optional connects like New but returns nil when addr is empty or Redis does
// not answer. Callers then run with in-process locks and no shared cache.
func Optional(ctx context.Context, addr string, logger *slog.Logger) *redis.Client {
	if addr == "" {
		return nil
	}
	client, err := New(ctx, addr)
	if err != nil {
		if logger != nil {
			logger.Warn("redis unavailable, running without shared locks and cache", slog.String("addr", addr), slog.Any("error", err))
		}
		return nil
	}
	return client
}
