//go:build !integration

package gateway_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"market-ai-pipeline/internal/infra/gateway"
)

func TestMemoryResponseCache_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := gateway.NewMemoryResponseCacheAt(time.Hour, 100, func() time.Time { return now })

	c.Set(ctx, "k", "cached response")
	if got, ok := c.Get(ctx, "k"); !ok || got != "cached response" {
		t.Fatalf("expected fresh hit, got %q ok=%v", got, ok)
	}

	now = now.Add(time.Hour)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("expected entry past TTL to read as absent")
	}
	if c.Size(ctx) != 0 {
		t.Errorf("expected stale entry deleted on read, size=%d", c.Size(ctx))
	}
}

func TestMemoryResponseCache_PruneOldestFirst(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := gateway.NewMemoryResponseCacheAt(time.Hour, 3, func() time.Time { return now })

	for i := 0; i < 3; i++ {
		c.Set(ctx, fmt.Sprintf("k%d", i), "v")
		now = now.Add(time.Minute)
	}
	// The fourth insert goes over the ceiling; the oldest entry is pruned.
	c.Set(ctx, "k3", "v")

	if c.Size(ctx) != 3 {
		t.Fatalf("expected size pruned to 3, got %d", c.Size(ctx))
	}
	if _, ok := c.Get(ctx, "k0"); ok {
		t.Error("expected the oldest entry to be pruned")
	}
	for _, k := range []string{"k1", "k2", "k3"} {
		if _, ok := c.Get(ctx, k); !ok {
			t.Errorf("expected %s to survive pruning", k)
		}
	}
}

func TestMemoryResponseCache_PrunePrefersExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := gateway.NewMemoryResponseCacheAt(30*time.Minute, 2, func() time.Time { return now })

	c.Set(ctx, "stale", "v")
	now = now.Add(45 * time.Minute)
	c.Set(ctx, "fresh-a", "v")
	c.Set(ctx, "fresh-b", "v")

	if c.Size(ctx) != 2 {
		t.Fatalf("expected the expired entry reclaimed first, size=%d", c.Size(ctx))
	}
	for _, k := range []string{"fresh-a", "fresh-b"} {
		if _, ok := c.Get(ctx, k); !ok {
			t.Errorf("expected %s to survive", k)
		}
	}
}
