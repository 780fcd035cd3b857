// Package cache holds the redis-backed ephemeral state. Losing it is
// harmless; postgres stays the source of truth.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	log15 "github.com/inconshreveable/log15/v3"
	"github.com/redis/go-redis/v9"
)

// Delivery dedup marks survive long past any realistic redelivery window.
const deliveryTTL = 24 * time.Hour

type Cache struct {
	rdb *redis.Client
	log log15.Logger
}

// New connects to redis and verifies the connection with a ping.
func New(rawURL string, logger log15.Logger) (*Cache, error) {
	opt, err := redis.ParseURL(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("cache: redis ping: %w", err)
	}
	return NewWithClient(rdb, logger), nil
}

// NewWithClient wraps an existing client; tests pass a miniredis-backed one.
func NewWithClient(rdb *redis.Client, logger log15.Logger) *Cache {
	return &Cache{rdb: rdb, log: logger.New("module", "cache")}
}

// MarkDelivery records a webhook delivery id and reports whether this was
// its first appearance. Platforms redeliver events on slow acks; a repeat
// delivery must not double-apply a vote or a command.
func (c *Cache) MarkDelivery(ctx context.Context, deliveryID string) (first bool, err error) {
	key := "delivery:" + deliveryID
	first, err = c.rdb.SetNX(ctx, key, 1, deliveryTTL).Result()
	if err != nil {
		return false, fmt.Errorf("cache: mark delivery %s: %w", deliveryID, err)
	}
	return first, nil
}

// Close releases the underlying client.
func (c *Cache) Close() error {
	return c.rdb.Close()
}
