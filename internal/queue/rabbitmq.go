package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	connectTimeout    = 15 * time.Second
	redialBackoff     = 500 * time.Millisecond
	maxRedialBackoff  = 5 * time.Second
	heartbeat         = 10 * time.Second
	exchangeKindTopic = "topic"
	exchangeKindDLX   = "direct"
)

var errPublishNacked = errors.New("broker did not confirm publish")

type dialFunc func(ctx context.Context, url string) (*amqp.Connection, error)

// RabbitMQ owns one connection and one confirm-mode channel used for
// publishing. A broken channel or connection is reopened on the next publish.
// sem guards conn and ch and is only held until the message is handed to the
// channel; confirms are awaited outside it.
type RabbitMQ struct {
	url  string
	dial dialFunc

	sem  chan struct{}
	conn *amqp.Connection
	ch   *amqp.Channel
}

func newRabbitMQ(url string) *RabbitMQ {
	return &RabbitMQ{
		url:  url,
		dial: dialContext,
		sem:  make(chan struct{}, 1),
	}
}

// NewRabbitMQ connects and declares the event topology, retrying the dial
// until ctx is done or connectTimeout elapses.
func NewRabbitMQ(ctx context.Context, url string) (*RabbitMQ, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("rabbitmq url is required")
	}

	r := newRabbitMQ(url)

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := r.lock(connectCtx); err != nil {
		return nil, err
	}
	_, err := r.channelLocked(connectCtx)
	r.unlock()
	if err != nil {
		return nil, err
	}

	return r, nil
}

func (r *RabbitMQ) Close() error {
	if err := r.lock(context.Background()); err != nil {
		return err
	}
	defer r.unlock()

	r.ch = nil
	conn := r.conn
	r.conn = nil

	if conn == nil || conn.IsClosed() {
		return nil
	}
	return conn.Close()
}

// lock acquires sem unless ctx is done first.
func (r *RabbitMQ) lock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case r.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *RabbitMQ) unlock() {
	<-r.sem
}

// publish sends msg and waits for the broker's confirm.
func (r *RabbitMQ) publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error {
	if err := r.lock(ctx); err != nil {
		return fmt.Errorf("failed to publish to %q: %w", routingKey, err)
	}

	ch, err := r.channelLocked(ctx)
	if err != nil {
		r.unlock()
		return err
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, exchange, routingKey, false, false, msg)
	if err != nil {
		r.dropChannelLocked()
		r.unlock()
		return fmt.Errorf("failed to publish to %q: %w", routingKey, err)
	}
	r.unlock()

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to confirm publish to %q: %w", routingKey, err)
	}
	if !acked {
		return fmt.Errorf("%w: %s", errPublishNacked, routingKey)
	}
	return nil
}

func (r *RabbitMQ) channelLocked(ctx context.Context) (*amqp.Channel, error) {
	if r.ch != nil && !r.ch.IsClosed() {
		return r.ch, nil
	}

	if r.conn == nil || r.conn.IsClosed() {
		conn, err := dialWithBackoff(ctx, r.url, r.dial)
		if err != nil {
			return nil, err
		}
		r.conn = conn
	}

	ch, err := r.conn.Channel()
	if err != nil {
		_ = r.conn.Close()
		r.conn = nil
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}
	if err := declareTopology(ch); err != nil {
		_ = ch.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	r.ch = ch
	return ch, nil
}

func (r *RabbitMQ) dropChannelLocked() {
	if r.ch != nil {
		_ = r.ch.Close()
		r.ch = nil
	}
}

func dialWithBackoff(ctx context.Context, url string, dial dialFunc) (*amqp.Connection, error) {
	wait := redialBackoff
	var lastErr error
	for {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				return nil, fmt.Errorf("rabbitmq dial canceled: %w", err)
			}
			return nil, fmt.Errorf("rabbitmq dial canceled: %w (last error: %v)", err, lastErr)
		}

		conn, err := dial(ctx, url)
		if err == nil {
			return conn, nil
		}
		lastErr = err

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}

		wait = min(wait*2, maxRedialBackoff)
	}
}

// dialContext dials with a socket and handshake timeout bounded by the ctx
// deadline. amqp.Dial ignores ctx and would wait up to 30s on its own.
func dialContext(ctx context.Context, url string) (*amqp.Connection, error) {
	timeout := connectTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return nil, context.DeadlineExceeded
		}
	}

	return amqp.DialConfig(url, amqp.Config{
		Heartbeat: heartbeat,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
}

// declareTopology declares the events exchange and one durable queue per
// provider bound to delivery.<provider>.*, each dead-lettering to its own DLQ.
func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(EventsExchange, exchangeKindTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %q: %w", EventsExchange, err)
	}
	if err := ch.ExchangeDeclare(dlxExchangeName, exchangeKindDLX, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %q: %w", dlxExchangeName, err)
	}

	for _, p := range domain.SupportedProviders() {
		if err := declareProviderQueues(ch, p); err != nil {
			return err
		}
	}
	return nil
}

func declareProviderQueues(ch *amqp.Channel, p domain.Provider) error {
	name := QueueName(p)
	dlq := DLQName(p)

	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %q: %w", dlq, err)
	}
	if err := ch.QueueBind(dlq, name, dlxExchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %q: %w", dlq, err)
	}

	if _, err := ch.QueueDeclare(name, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    dlxExchangeName,
		"x-dead-letter-routing-key": name,
	}); err != nil {
		return fmt.Errorf("failed to declare queue %q: %w", name, err)
	}
	if err := ch.QueueBind(name, bindingKey(p), EventsExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %q: %w", name, err)
	}
	return nil
}
