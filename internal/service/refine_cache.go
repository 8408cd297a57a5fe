package service

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// RefineCache guarda prompts refinados. Los errores del backend se tratan como miss.
type RefineCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
}

type memoryRefineCache struct {
	items *gocache.Cache
}

// NewMemoryRefineCache devuelve nil si ttl <= 0 (cache deshabilitada).
func NewMemoryRefineCache(ttl time.Duration) RefineCache {
	if ttl <= 0 {
		return nil
	}
	return &memoryRefineCache{items: gocache.New(ttl, 2*ttl)}
}

func (c *memoryRefineCache) Get(_ context.Context, key string) (string, bool) {
	v, ok := c.items.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (c *memoryRefineCache) Set(_ context.Context, key, value string) {
	c.items.SetDefault(key, value)
}

type redisRefineCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisRefineCache(client *redis.Client, ttl time.Duration) RefineCache {
	if client == nil || ttl <= 0 {
		return nil
	}
	return &redisRefineCache{
		client: client,
		ttl:    ttl,
		prefix: "refine:",
	}
}

func (c *redisRefineCache) Get(ctx context.Context, key string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	v, err := c.client.Get(ctx, c.prefix+key).Result()
	if err != nil {
		return "", false
	}
	return v, true
}

func (c *redisRefineCache) Set(ctx context.Context, key, value string) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	_ = c.client.Set(ctx, c.prefix+key, value, c.ttl).Err()
}
