package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"shopdesk/internal/domain"
)

func TestNoopCatalogCacheNeverHits(t *testing.T) {
	c := NoopCatalogCache{}
	ctx := context.Background()
	if err := c.Set(ctx, "products", []domain.Product{{ID: 1}}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "products"); ok {
		t.Fatalf("noop cache should never hit")
	}
}

func TestRedisCatalogCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := NewRedisCatalogCache(addr, os.Getenv("REDIS_PASSWORD"), 0)
	defer c.Close()
	if err := c.Ping(ctx); err != nil {
		t.Fatalf("ping redis: %v", err)
	}

	key := "test-products-" + time.Now().Format("150405.000000")
	products := []domain.Product{{ID: 7, Code: "TS-07", SellPrice: decimal.RequireFromString("499.50"), CurrentStock: 3}}
	if err := c.Set(ctx, key, products, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if len(got) != 1 || !got[0].SellPrice.Equal(products[0].SellPrice) {
		t.Fatalf("unexpected cached products: %+v", got)
	}

	if err := c.Invalidate(ctx, key); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok, _ := c.Get(ctx, key); ok {
		t.Fatalf("expected miss after invalidate")
	}
}
