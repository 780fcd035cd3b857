package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	log15 "github.com/inconshreveable/log15/v3"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	logger := log15.New()
	logger.SetHandler(log15.DiscardHandler())
	return NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), logger)
}

func TestMarkDeliveryDedupes(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	first, err := c.MarkDelivery(ctx, "d-1")
	if err != nil {
		t.Fatalf("first mark: %v", err)
	}
	if !first {
		t.Fatal("first delivery should be new")
	}

	first, err = c.MarkDelivery(ctx, "d-1")
	if err != nil {
		t.Fatalf("second mark: %v", err)
	}
	if first {
		t.Fatal("redelivery should not be new")
	}

	first, err = c.MarkDelivery(ctx, "d-2")
	if err != nil {
		t.Fatalf("other mark: %v", err)
	}
	if !first {
		t.Fatal("distinct delivery should be new")
	}
}
