package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
)

// Metadata keys understood by the adapters.
const (
	MetaParseMode           = "parse_mode"
	MetaDisableNotification = "disable_notification"
	MetaPreviewURL          = "preview_url"
	MetaTTS                 = "tts"
)

// Adapter translates between the gateway's normalized model and one
// provider's wire protocol. Implementations are immutable after construction.
type Adapter interface {
	Provider() domain.Provider
	BuildRequest(destination string, body string, metadata map[string]string) (*Request, error)
	ParseResponse(statusCode int, body []byte) domain.DeliveryOutcome
}

// Transport issues provider requests. A non-nil error means no HTTP response was read.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Request is a provider wire request. Its contents are only visible inside this package.
type Request struct {
	method string
	url    string
	header map[string]string
	body   []byte
}

// Response is the raw provider reply handed back to the adapter for parsing.
type Response struct {
	StatusCode int
	Body       []byte
}

func newJSONRequest(url string, payload any, header map[string]string) (*Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal provider payload: %w", err)
	}

	h := map[string]string{"Content-Type": "application/json"}
	for k, v := range header {
		h[k] = v
	}

	return &Request{
		method: http.MethodPost,
		url:    url,
		header: h,
		body:   body,
	}, nil
}

func isSuccessStatus(statusCode int) bool {
	return statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices
}

func metaEnabled(metadata map[string]string, key string) bool {
	switch metadata[key] {
	case "true", "1", "yes":
		return true
	}
	return false
}
