package domain

import "time"

// DeliveryAttempt records a single provider call made for a dispatch.
// Message bodies and destinations are never stored.
type DeliveryAttempt struct {
	ID                string
	DispatchID        string
	Provider          Provider
	AttemptNumber     int
	Status            OutcomeStatus
	HTTPStatus        *int
	ProviderMessageID *string
	Error             *string
	CreatedAt         time.Time
}
