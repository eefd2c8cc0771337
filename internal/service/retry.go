package service

import (
	"context"
	"time"
)

const (
	defaultMaxAttempts    = 3
	defaultAttemptTimeout = 10 * time.Second
	defaultBaseDelay      = time.Second
	defaultMaxDelay       = 30 * time.Second
	defaultJitter         = 250 * time.Millisecond
)

// RetryPolicy bounds how often and how far apart a dispatch retries.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: defaultMaxAttempts,
		BaseDelay:   defaultBaseDelay,
		MaxDelay:    defaultMaxDelay,
		Jitter:      defaultJitter,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	return p
}

// RetryState is owned by a single dispatch.
type RetryState struct {
	Attempt     int
	NextDelay   time.Duration
	MaxAttempts int
}

func (s RetryState) exhausted() bool {
	return s.Attempt >= s.MaxAttempts
}

// backoff returns the wait before retry n (0-based): BaseDelay*2^n plus
// jitter, never less than the provider's retry-after hint. The result never
// exceeds MaxDelay.
func (p RetryPolicy) backoff(n int, retryAfter time.Duration, randIntn func(n int) int) time.Duration {
	if n < 0 {
		n = 0
	}

	delay := p.BaseDelay
	for i := 0; i < n; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	jitterMillis := int(p.Jitter / time.Millisecond)
	if randIntn != nil && jitterMillis > 0 {
		delay += time.Duration(randIntn(jitterMillis+1)) * time.Millisecond
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	if retryAfter > p.MaxDelay {
		retryAfter = p.MaxDelay
	}
	if delay < retryAfter {
		delay = retryAfter
	}

	return delay
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
