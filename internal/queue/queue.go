package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
)

// Publisher publishes terminal delivery events.
type Publisher interface {
	Publish(ctx context.Context, event DeliveryEvent) error
	Close() error
}

const (
	// EventsExchange is the topic exchange delivery events are published to.
	EventsExchange  = "notify.events"
	dlxExchangeName = "notify.dlx"
	routingPrefix   = "delivery"
)

// RoutingKey returns the event routing key, e.g. delivery.telegram.success.
func RoutingKey(provider domain.Provider, status domain.OutcomeStatus) string {
	return fmt.Sprintf("%s.%s.%s", routingPrefix, provider.Label(), strings.ToLower(status.String()))
}

// QueueName returns the per-provider event queue, e.g. delivery.telegram.
func QueueName(provider domain.Provider) string {
	return fmt.Sprintf("%s.%s", routingPrefix, provider.Label())
}

// DLQName returns the dead-letter queue for a provider's events, e.g. dlq.delivery.telegram.
func DLQName(provider domain.Provider) string {
	return fmt.Sprintf("dlq.%s", QueueName(provider))
}

func QueueNames() []string {
	providers := domain.SupportedProviders()
	queues := make([]string, 0, len(providers))
	for _, p := range providers {
		queues = append(queues, QueueName(p))
	}
	return queues
}

func DLQNames() []string {
	providers := domain.SupportedProviders()
	queues := make([]string, 0, len(providers))
	for _, p := range providers {
		queues = append(queues, DLQName(p))
	}
	return queues
}

func bindingKey(provider domain.Provider) string {
	return QueueName(provider) + ".*"
}
