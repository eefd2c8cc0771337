package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/notify-gateway/internal/address"
	"github.com/kursadbilgin/notify-gateway/internal/domain"
	"github.com/kursadbilgin/notify-gateway/internal/observability"
	"github.com/kursadbilgin/notify-gateway/internal/provider"
	"github.com/kursadbilgin/notify-gateway/internal/queue"
	"github.com/kursadbilgin/notify-gateway/internal/ratelimit"
	"github.com/kursadbilgin/notify-gateway/internal/repository"
	"go.uber.org/zap"
)

const sideEffectTimeout = 5 * time.Second

// AdapterResolver looks up the adapter for a provider.
type AdapterResolver interface {
	Resolve(p domain.Provider) (provider.Adapter, error)
}

// Dispatcher delivers one SendRequest through its provider adapter and
// retries transient failures. It holds no per-dispatch state and is safe
// for concurrent use once configured.
type Dispatcher struct {
	adapters       AdapterResolver
	transport      provider.Transport
	rateLimiter    ratelimit.RateLimiter
	attempts       repository.AttemptRepository
	publisher      queue.Publisher
	policy         RetryPolicy
	attemptTimeout time.Duration
	logger         *zap.Logger
	metrics        *observability.Metrics
	now            func() time.Time
	randIntn       func(n int) int
	sleep          func(ctx context.Context, d time.Duration) error
	newID          func() string
}

func NewDispatcher(
	adapters AdapterResolver,
	transport provider.Transport,
	policy RetryPolicy,
	attemptTimeout time.Duration,
	logger *zap.Logger,
) (*Dispatcher, error) {
	if adapters == nil {
		return nil, fmt.Errorf("adapter resolver is required")
	}
	if transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if attemptTimeout <= 0 {
		attemptTimeout = defaultAttemptTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		adapters:       adapters,
		transport:      transport,
		policy:         policy.withDefaults(),
		attemptTimeout: attemptTimeout,
		logger:         logger,
		now:            time.Now,
		randIntn:       rand.Intn,
		sleep:          sleepWithContext,
		newID:          uuid.NewString,
	}, nil
}

func (d *Dispatcher) SetMetrics(metrics *observability.Metrics) {
	if d == nil {
		return
	}
	d.metrics = metrics
}

// SetRateLimiter makes every attempt wait for a slot in the provider's window.
func (d *Dispatcher) SetRateLimiter(limiter ratelimit.RateLimiter) {
	if d == nil {
		return
	}
	d.rateLimiter = limiter
}

// SetAttemptRepository enables the per-attempt delivery ledger.
func (d *Dispatcher) SetAttemptRepository(attempts repository.AttemptRepository) {
	if d == nil {
		return
	}
	d.attempts = attempts
}

// SetPublisher enables terminal delivery events.
func (d *Dispatcher) SetPublisher(publisher queue.Publisher) {
	if d == nil {
		return
	}
	d.publisher = publisher
}

func (d *Dispatcher) Dispatch(ctx context.Context, req domain.SendRequest) (domain.DeliveryOutcome, error) {
	return d.DispatchWithTimeout(ctx, req, d.attemptTimeout)
}

// DispatchWithTimeout delivers req, bounding each provider call by attemptTimeout.
// Requests rejected before any provider call return an error wrapping one of
// domain.ErrInvalidRequest, domain.ErrUnsupportedProvider or
// domain.ErrInvalidDestination. Everything else is reported as an outcome.
func (d *Dispatcher) DispatchWithTimeout(ctx context.Context, req domain.SendRequest, attemptTimeout time.Duration) (domain.DeliveryOutcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if attemptTimeout <= 0 {
		attemptTimeout = d.attemptTimeout
	}

	if err := req.Validate(); err != nil {
		return domain.DeliveryOutcome{}, err
	}
	if req.ID == "" {
		req.ID = d.newID()
	}

	ctx = observability.WithDispatchID(ctx, req.ID)
	logger := observability.WithContextLogger(d.logger, ctx).With(zap.String("provider", req.Provider.String()))

	adapter, err := d.adapters.Resolve(req.Provider)
	if err != nil {
		if errors.Is(err, domain.ErrConfig) {
			logger.Error("provider not configured", zap.Error(err))
			outcome := domain.ConfigErrorOutcome(err.Error())
			d.finish(ctx, logger, req, outcome)
			return outcome, nil
		}
		return domain.DeliveryOutcome{}, err
	}

	destination, err := address.Normalize(req.Provider, req.Destination)
	if err != nil {
		return domain.DeliveryOutcome{}, err
	}

	wireReq, err := adapter.BuildRequest(destination, req.Body, req.Metadata)
	if err != nil {
		return domain.DeliveryOutcome{}, fmt.Errorf("failed to build %s request: %w", req.Provider.DisplayName(), err)
	}

	label := req.Provider.Label()
	d.metrics.IncDispatchInFlight(label)
	defer d.metrics.DecDispatchInFlight(label)

	state := RetryState{MaxAttempts: d.policy.MaxAttempts}
	var outcome domain.DeliveryOutcome

	for {
		if ctx.Err() != nil {
			outcome = domain.CancelledOutcome()
			break
		}
		if err := d.waitForSlot(ctx, logger, label); err != nil {
			outcome = domain.CancelledOutcome()
			break
		}

		state.Attempt++
		result := d.attempt(ctx, adapter, wireReq, attemptTimeout)
		d.metrics.IncProviderAttempt(label, result.Status.String())
		d.recordAttempt(ctx, logger, req, state.Attempt, result)

		// The call ran to completion, but a caller that already left gets "cancelled".
		if ctx.Err() != nil {
			outcome = domain.CancelledOutcome()
			break
		}

		outcome = result
		if outcome.IsSuccess() || !outcome.Retryable() || state.exhausted() {
			break
		}

		state.NextDelay = d.policy.backoff(state.Attempt-1, outcome.RetryAfter, d.randIntn)
		d.metrics.IncRetry(label)
		logger.Warn("provider attempt failed, retrying",
			zap.Int("attempt", state.Attempt),
			zap.String("status", outcome.Status.String()),
			zap.Int("httpStatus", outcome.HTTPStatus),
			zap.Duration("delay", state.NextDelay),
		)

		if err := d.sleep(ctx, state.NextDelay); err != nil {
			outcome = domain.CancelledOutcome()
			break
		}
	}

	outcome.Attempts = state.Attempt
	d.finish(ctx, logger, req, outcome)
	return outcome, nil
}

// attempt runs one provider call. Its context is detached from the caller so
// a cancelled caller never cuts a request off mid-flight.
func (d *Dispatcher) attempt(ctx context.Context, adapter provider.Adapter, req *provider.Request, timeout time.Duration) domain.DeliveryOutcome {
	attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	start := d.now()
	resp, err := d.transport.Do(attemptCtx, req)
	d.metrics.ObserveProviderDuration(adapter.Provider().Label(), d.now().Sub(start))

	if err != nil {
		switch {
		case errors.Is(attemptCtx.Err(), context.DeadlineExceeded):
			return domain.TransportFailureOutcome(fmt.Sprintf("request timed out after %s", timeout))
		case errors.Is(err, provider.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
			return domain.TransportFailureOutcome(fmt.Sprintf("request timed out: %v", err))
		}
		return domain.TransportFailureOutcome(err.Error())
	}

	return adapter.ParseResponse(resp.StatusCode, resp.Body)
}

// waitForSlot only fails when ctx is done; limiter outages let the attempt through.
func (d *Dispatcher) waitForSlot(ctx context.Context, logger *zap.Logger, label string) error {
	if d.rateLimiter == nil {
		return nil
	}

	err := d.rateLimiter.Wait(ctx, label)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	logger.Warn("rate limiter unavailable, continuing without limit", zap.Error(err))
	return nil
}

func (d *Dispatcher) recordAttempt(ctx context.Context, logger *zap.Logger, req domain.SendRequest, attemptNumber int, outcome domain.DeliveryOutcome) {
	if d.attempts == nil {
		return
	}

	attempt := &domain.DeliveryAttempt{
		ID:            uuid.NewString(),
		DispatchID:    req.ID,
		Provider:      req.Provider,
		AttemptNumber: attemptNumber,
		Status:        outcome.Status,
		CreatedAt:     d.now().UTC(),
	}
	if outcome.HTTPStatus > 0 {
		value := outcome.HTTPStatus
		attempt.HTTPStatus = &value
	}
	if outcome.ProviderMessageID != "" {
		value := outcome.ProviderMessageID
		attempt.ProviderMessageID = &value
	}
	if outcome.ErrorDetail != "" {
		value := outcome.ErrorDetail
		attempt.Error = &value
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if err := d.attempts.Create(writeCtx, attempt); err != nil {
		logger.Error("failed to record delivery attempt",
			zap.Int("attempt", attemptNumber),
			zap.Error(err),
		)
	}
}

func (d *Dispatcher) finish(ctx context.Context, logger *zap.Logger, req domain.SendRequest, outcome domain.DeliveryOutcome) {
	d.metrics.IncDispatch(req.Provider.Label(), outcome.Status.String())

	fields := []zap.Field{
		zap.String("status", outcome.Status.String()),
		zap.Int("attempts", outcome.Attempts),
		zap.Int("httpStatus", outcome.HTTPStatus),
	}
	if outcome.IsSuccess() {
		logger.Info("dispatch delivered", append(fields, zap.String("providerMessageId", outcome.ProviderMessageID))...)
	} else {
		logger.Warn("dispatch failed", append(fields, zap.String("errorDetail", outcome.ErrorDetail))...)
	}

	if d.publisher == nil {
		return
	}

	correlationID, _ := observability.CorrelationIDFromContext(ctx)
	event := queue.NewDeliveryEvent(req.ID, correlationID, req.Provider, outcome, d.now())

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if err := d.publisher.Publish(publishCtx, event); err != nil {
		logger.Error("failed to publish delivery event", zap.Error(err))
	}
}
