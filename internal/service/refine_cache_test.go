package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisRefineCache(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	ctx := context.Background()
	c := NewRedisRefineCache(client, time.Minute)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatalf("expected miss on empty cache")
	}
	c.Set(ctx, "k", "refined")
	if v, ok := c.Get(ctx, "k"); !ok || v != "refined" {
		t.Fatalf("expected hit, got %q %t", v, ok)
	}
	if ttl := s.TTL("refine:k"); ttl != time.Minute {
		t.Fatalf("expected ttl 1m, got %v", ttl)
	}

	s.FastForward(2 * time.Minute)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatalf("expected expiry")
	}
}

func TestRedisRefineCacheFailsAsMiss(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()
	c := NewRedisRefineCache(client, time.Minute)
	s.Close()

	c.Set(context.Background(), "k", "v")
	if _, ok := c.Get(context.Background(), "k"); ok {
		t.Fatalf("expected miss when redis is down")
	}
}

func TestRefineCacheDisabledWithZeroTTL(t *testing.T) {
	if NewMemoryRefineCache(0) != nil {
		t.Fatalf("expected nil memory cache")
	}
	if NewRedisRefineCache(redis.NewClient(&redis.Options{Addr: "localhost:0"}), 0) != nil {
		t.Fatalf("expected nil redis cache")
	}
}

func TestMemoryRefineCache(t *testing.T) {
	c := NewMemoryRefineCache(time.Minute)
	c.Set(context.Background(), "k", "v")
	if v, ok := c.Get(context.Background(), "k"); !ok || v != "v" {
		t.Fatalf("expected hit, got %q %t", v, ok)
	}
}
