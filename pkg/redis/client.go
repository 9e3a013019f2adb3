package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Client wraps go-redis client with optional logger.
type Client struct {
	*redis.Client
	logger *zap.Logger
}

// NewClient creates a Redis client and verifies connectivity.
func NewClient(ctx context.Context, addr, password string, db int, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info("Redis client connected", zap.String("addr", addr))
	return &Client{Client: rdb, logger: logger}, nil
}

// TryLease takes key for ttl if nobody holds it. The lease is never renewed;
// it lapses on its own so a crashed holder cannot keep it.
func (c *Client) TryLease(ctx context.Context, key, holder string, ttl time.Duration) (bool, error) {
	ok, err := c.SetNX(ctx, key, holder, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("lease %s: %w", key, err)
	}
	return ok, nil
}
