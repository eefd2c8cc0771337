package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
)

// DeliveryEvent is the broker payload published once per finished dispatch.
type DeliveryEvent struct {
	DispatchID        string               `json:"dispatchId"`
	CorrelationID     string               `json:"correlationId,omitempty"`
	Provider          domain.Provider      `json:"provider"`
	Status            domain.OutcomeStatus `json:"status"`
	Attempts          int                  `json:"attempts"`
	HTTPStatus        int                  `json:"httpStatus,omitempty"`
	ProviderMessageID string               `json:"providerMessageId,omitempty"`
	ErrorDetail       string               `json:"errorDetail,omitempty"`
	OccurredAt        time.Time            `json:"occurredAt"`
}

func NewDeliveryEvent(dispatchID string, correlationID string, provider domain.Provider, outcome domain.DeliveryOutcome, occurredAt time.Time) DeliveryEvent {
	return DeliveryEvent{
		DispatchID:        dispatchID,
		CorrelationID:     correlationID,
		Provider:          provider,
		Status:            outcome.Status,
		Attempts:          outcome.Attempts,
		HTTPStatus:        outcome.HTTPStatus,
		ProviderMessageID: outcome.ProviderMessageID,
		ErrorDetail:       outcome.ErrorDetail,
		OccurredAt:        occurredAt.UTC(),
	}
}

func (e DeliveryEvent) Validate() error {
	if strings.TrimSpace(e.DispatchID) == "" {
		return fmt.Errorf("dispatchId is required")
	}
	if !e.Provider.IsValid() {
		return fmt.Errorf("invalid provider %q", e.Provider)
	}
	switch e.Status {
	case domain.OutcomeSuccess, domain.OutcomeProviderRejected, domain.OutcomeTransportFailure, domain.OutcomeConfigError:
	default:
		return fmt.Errorf("invalid status %q", e.Status)
	}
	return nil
}

func (e DeliveryEvent) RoutingKey() string {
	return RoutingKey(e.Provider, e.Status)
}
