// Package report maps dispatch results onto the HTTP response contract.
// Every function here is pure.
package report

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
)

// Response is the status code and JSON body returned to the caller.
type Response struct {
	StatusCode int
	Body       map[string]any
}

const (
	transportFailureMessage = "Failed to send message"
	internalErrorMessage    = "internal server error"
)

// Outcome maps a terminal delivery outcome.
func Outcome(p domain.Provider, o domain.DeliveryOutcome) Response {
	switch o.Status {
	case domain.OutcomeSuccess:
		return Response{
			StatusCode: http.StatusOK,
			Body:       map[string]any{"success": true, "message_id": messageID(p, o.ProviderMessageID)},
		}
	case domain.OutcomeProviderRejected:
		return Response{
			StatusCode: rejectedStatus(o.HTTPStatus),
			Body:       map[string]any{"error": fmt.Sprintf("%s API error", p.DisplayName()), "details": o.ErrorDetail},
		}
	case domain.OutcomeTransportFailure:
		return Response{
			StatusCode: http.StatusInternalServerError,
			Body:       map[string]any{"error": transportFailureMessage, "details": o.ErrorDetail},
		}
	case domain.OutcomeConfigError:
		detail := o.ErrorDetail
		if detail == "" {
			detail = fmt.Sprintf("%s not configured", p.DisplayName())
		}
		return Response{
			StatusCode: http.StatusInternalServerError,
			Body:       map[string]any{"error": detail},
		}
	}

	return Response{
		StatusCode: http.StatusInternalServerError,
		Body:       map[string]any{"error": internalErrorMessage},
	}
}

// Error maps an error returned before any outcome existed.
func Error(p domain.Provider, err error) Response {
	switch {
	case err == nil:
		return Response{StatusCode: http.StatusInternalServerError, Body: map[string]any{"error": internalErrorMessage}}
	case errors.Is(err, domain.ErrInvalidRequest):
		return badRequest(map[string]any{"error": fmt.Sprintf("%s and message are required", p.DestinationField())})
	case errors.Is(err, domain.ErrInvalidDestination):
		return badRequest(map[string]any{
			"error":   fmt.Sprintf("invalid %s", p.DestinationField()),
			"details": strings.TrimPrefix(err.Error(), domain.ErrInvalidDestination.Error()+": "),
		})
	case errors.Is(err, domain.ErrUnsupportedProvider):
		return Response{StatusCode: http.StatusNotFound, Body: map[string]any{"error": "unsupported provider"}}
	case errors.Is(err, domain.ErrConfig):
		return Response{StatusCode: http.StatusInternalServerError, Body: map[string]any{"error": err.Error()}}
	case errors.Is(err, domain.ErrNotFound):
		return Response{StatusCode: http.StatusNotFound, Body: map[string]any{"error": "not found"}}
	}

	return Response{StatusCode: http.StatusInternalServerError, Body: map[string]any{"error": internalErrorMessage}}
}

func badRequest(body map[string]any) Response {
	return Response{StatusCode: http.StatusBadRequest, Body: body}
}

// rejectedStatus returns the provider's 4xx/5xx status unchanged. A rejection
// read from a 2xx reply (unparseable body, missing id) becomes 502 Bad Gateway:
// echoing the provider's 200 would tell the caller the send succeeded.
func rejectedStatus(httpStatus int) int {
	if httpStatus >= http.StatusBadRequest && httpStatus <= 599 {
		return httpStatus
	}
	return http.StatusBadGateway
}

// Telegram message ids are integers on the wire; other providers use opaque strings.
func messageID(p domain.Provider, id string) any {
	if p == domain.ProviderTelegram {
		if n, err := strconv.ParseInt(id, 10, 64); err == nil {
			return n
		}
	}
	return id
}
