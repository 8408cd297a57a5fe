package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// memoryChatRateLimiter es un token bucket por clave para despliegues sin Redis.
type memoryChatRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewMemoryChatRateLimiter permite perMinute peticiones por clave. perMinute <= 0 deshabilita.
func NewMemoryChatRateLimiter(perMinute int) RateLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &memoryChatRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    perMinute,
	}
}

func (l *memoryChatRateLimiter) Allow(_ context.Context, key string) RateDecision {
	if l == nil {
		return RateDecision{Allowed: true, Remaining: -1}
	}
	normalizedKey := strings.ToLower(strings.TrimSpace(key))
	if normalizedKey == "" {
		return RateDecision{}
	}
	l.mu.Lock()
	limiter, ok := l.limiters[normalizedKey]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[normalizedKey] = limiter
	}
	l.mu.Unlock()

	now := time.Now()
	r := limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return RateDecision{RetryAfter: delay}
	}
	remaining := int(limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return RateDecision{Allowed: true, Remaining: remaining}
}
