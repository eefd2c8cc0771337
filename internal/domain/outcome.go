package domain

import (
	"net/http"
	"time"
)

// OutcomeStatus classifies the result of a delivery attempt.
type OutcomeStatus string

const (
	OutcomeSuccess          OutcomeStatus = "SUCCESS"
	OutcomeProviderRejected OutcomeStatus = "PROVIDER_REJECTED"
	OutcomeTransportFailure OutcomeStatus = "TRANSPORT_FAILURE"
	OutcomeConfigError      OutcomeStatus = "CONFIG_ERROR"
)

func (s OutcomeStatus) String() string { return string(s) }

// CancelledDetail is the error detail of a dispatch aborted by its caller.
const CancelledDetail = "cancelled"

// DeliveryOutcome is the classified result of an attempt, and of a dispatch
// once it is terminal. HTTPStatus is zero when no provider response was read.
type DeliveryOutcome struct {
	Status            OutcomeStatus
	ProviderMessageID string
	HTTPStatus        int
	ErrorDetail       string
	RetryAfter        time.Duration
	Attempts          int
}

func (o DeliveryOutcome) IsSuccess() bool {
	return o.Status == OutcomeSuccess
}

// Retryable reports whether another attempt could change the result:
// transport failures, rate limiting and provider server errors.
func (o DeliveryOutcome) Retryable() bool {
	switch o.Status {
	case OutcomeTransportFailure:
		return o.ErrorDetail != CancelledDetail
	case OutcomeProviderRejected:
		return o.HTTPStatus == http.StatusTooManyRequests ||
			(o.HTTPStatus >= http.StatusInternalServerError && o.HTTPStatus <= 599)
	}
	return false
}

func SuccessOutcome(httpStatus int, providerMessageID string) DeliveryOutcome {
	return DeliveryOutcome{
		Status:            OutcomeSuccess,
		HTTPStatus:        httpStatus,
		ProviderMessageID: providerMessageID,
	}
}

func RejectedOutcome(httpStatus int, detail string) DeliveryOutcome {
	return DeliveryOutcome{
		Status:      OutcomeProviderRejected,
		HTTPStatus:  httpStatus,
		ErrorDetail: detail,
	}
}

func TransportFailureOutcome(detail string) DeliveryOutcome {
	return DeliveryOutcome{
		Status:      OutcomeTransportFailure,
		ErrorDetail: detail,
	}
}

func CancelledOutcome() DeliveryOutcome {
	return TransportFailureOutcome(CancelledDetail)
}

func ConfigErrorOutcome(detail string) DeliveryOutcome {
	return DeliveryOutcome{
		Status:      OutcomeConfigError,
		ErrorDetail: detail,
	}
}
