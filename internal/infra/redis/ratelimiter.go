package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/notify-gateway/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultLimitPerSec int64 = 30
	keyPrefix                = "notify:ratelimit"
	window                   = time.Second
	minWait                  = 5 * time.Millisecond
)

// takeScript counts one call in the provider's current window. It returns 0
// when the call fits, otherwise the milliseconds left until the window resets.
var takeScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
if current <= tonumber(ARGV[1]) then
  return 0
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
  return tonumber(ARGV[2])
end
return ttl
`)

var _ ratelimit.RateLimiter = (*RedisRateLimiter)(nil)

// RedisRateLimiter is a fixed one-second window limiter shared by every
// gateway instance talking to the same Redis. Each provider has its own window.
type RedisRateLimiter struct {
	client      *goredis.Client
	limitPerSec int64
	limits      map[string]int64
	sleep       func(ctx context.Context, d time.Duration) error
}

type Option func(*RedisRateLimiter)

// WithProviderLimit overrides the per-second budget of one provider.
func WithProviderLimit(provider string, limitPerSec int) Option {
	return func(r *RedisRateLimiter) {
		if limitPerSec > 0 {
			r.limits[normalizeKey(provider)] = int64(limitPerSec)
		}
	}
}

func withSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *RedisRateLimiter) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

func NewRedisRateLimiter(client *goredis.Client, limitPerSec int, opts ...Option) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	r := &RedisRateLimiter{
		client:      client,
		limitPerSec: int64(limitPerSec),
		limits:      make(map[string]int64),
		sleep:       sleepWithContext,
	}
	if r.limitPerSec <= 0 {
		r.limitPerSec = defaultLimitPerSec
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Wait blocks until the provider's window has room or ctx is done. Denied
// calls sleep until the window resets instead of polling.
func (r *RedisRateLimiter) Wait(ctx context.Context, provider string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		wait, err := r.take(ctx, provider)
		if err != nil {
			return err
		}
		if wait == 0 {
			return nil
		}

		if err := r.sleep(ctx, min(max(wait, minWait), window)); err != nil {
			return err
		}
	}
}

func (r *RedisRateLimiter) take(ctx context.Context, provider string) (time.Duration, error) {
	if r == nil || r.client == nil {
		return 0, fmt.Errorf("rate limiter is not initialized")
	}

	key := normalizeKey(provider)
	if key == "" {
		return 0, fmt.Errorf("provider is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	limit, ok := r.limits[key]
	if !ok {
		limit = r.limitPerSec
	}

	waitMs, err := takeScript.Run(ctx, r.client, []string{keyPrefix + ":" + key}, limit, window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to evaluate rate limit for %s: %w", key, err)
	}
	return time.Duration(waitMs) * time.Millisecond, nil
}

func normalizeKey(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
