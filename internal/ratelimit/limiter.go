package ratelimit

import "context"

// RateLimiter throttles provider calls. Keys are provider labels such as "telegram".
type RateLimiter interface {
	Wait(ctx context.Context, provider string) error
}
