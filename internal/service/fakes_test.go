package service

import (
	"context"
	"sync"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
	"github.com/kursadbilgin/notify-gateway/internal/provider"
	"github.com/kursadbilgin/notify-gateway/internal/queue"
)

type scriptedStep struct {
	status int
	body   string
	err    error
}

// fakeTransport replays steps in order and repeats the last one once exhausted.
type fakeTransport struct {
	mu    sync.Mutex
	steps []scriptedStep
	calls int
	doFn  func(ctx context.Context, req *provider.Request) (*provider.Response, error)
}

func (f *fakeTransport) Do(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()

	if f.doFn != nil {
		return f.doFn(ctx, req)
	}
	if len(f.steps) == 0 {
		return &provider.Response{StatusCode: 200, Body: []byte(`{"ok":true,"result":{"message_id":1}}`)}, nil
	}

	idx := call - 1
	if idx >= len(f.steps) {
		idx = len(f.steps) - 1
	}
	step := f.steps[idx]
	if step.err != nil {
		return nil, step.err
	}
	return &provider.Response{StatusCode: step.status, Body: []byte(step.body)}, nil
}

func (f *fakeTransport) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeAttemptRepo struct {
	mu       sync.Mutex
	attempts []domain.DeliveryAttempt
	createFn func(ctx context.Context, a *domain.DeliveryAttempt) error
}

func (f *fakeAttemptRepo) Create(ctx context.Context, a *domain.DeliveryAttempt) error {
	if f.createFn != nil {
		if err := f.createFn(ctx, a); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, *a)
	return nil
}

func (f *fakeAttemptRepo) GetByDispatchID(ctx context.Context, dispatchID string) ([]domain.DeliveryAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.DeliveryAttempt
	for _, a := range f.attempts {
		if a.DispatchID == dispatchID {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return nil, domain.ErrNotFound
	}
	return out, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	events    []queue.DeliveryEvent
	publishFn func(ctx context.Context, event queue.DeliveryEvent) error
}

func (f *fakePublisher) Publish(ctx context.Context, event queue.DeliveryEvent) error {
	if f.publishFn != nil {
		return f.publishFn(ctx, event)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

type fakeRateLimiter struct {
	waitFn func(ctx context.Context, provider string) error
}

func (f *fakeRateLimiter) Wait(ctx context.Context, provider string) error {
	if f.waitFn != nil {
		return f.waitFn(ctx, provider)
	}
	return nil
}
