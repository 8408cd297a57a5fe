package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateDecision es la respuesta del limiter para una peticion.
// Remaining es -1 cuando el backend no pudo consultarse.
type RateDecision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter decide si una clave (ruta + cliente) puede hacer otra peticion.
type RateLimiter interface {
	Allow(ctx context.Context, key string) RateDecision
}

// Un contador por ventana alineada al reloj; devuelve el conteo y los ms que le quedan a la ventana.
const redisChatWindowScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {count, redis.call("PTTL", KEYS[1])}
`

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type redisChatRateLimiter struct {
	client redisEvaler
	window time.Duration
	max    int
	prefix string
	now    func() time.Time
}

// NewRedisChatRateLimiter permite max peticiones por ventana y clave. max <= 0 deshabilita.
func NewRedisChatRateLimiter(client *redis.Client, window time.Duration, max int) RateLimiter {
	if client == nil || max <= 0 {
		return nil
	}
	if window < time.Second {
		window = time.Minute
	}
	return &redisChatRateLimiter{
		client: client,
		window: window,
		max:    max,
		prefix: "chat:rl:",
		now:    time.Now,
	}
}

// Allow deja pasar si Redis falla: el chat no depende de Redis.
func (l *redisChatRateLimiter) Allow(ctx context.Context, key string) RateDecision {
	if l == nil || l.client == nil {
		return RateDecision{Allowed: true, Remaining: -1}
	}
	normalizedKey := strings.ToLower(strings.TrimSpace(key))
	if normalizedKey == "" {
		return RateDecision{}
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	windowMs := l.window.Milliseconds()
	bucket := l.now().UnixMilli() / windowMs
	redisKey := l.prefix + normalizedKey + ":" + strconv.FormatInt(bucket, 10)

	res, err := l.client.Eval(ctx, redisChatWindowScript, []string{redisKey}, windowMs).Int64Slice()
	if err != nil || len(res) != 2 {
		return RateDecision{Allowed: true, Remaining: -1}
	}
	count, ttlMs := int(res[0]), res[1]
	if ttlMs < 0 {
		ttlMs = windowMs
	}
	if count > l.max {
		return RateDecision{Remaining: 0, RetryAfter: time.Duration(ttlMs) * time.Millisecond}
	}
	return RateDecision{Allowed: true, Remaining: l.max - count}
}
