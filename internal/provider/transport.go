package provider

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/go-resty/resty/v2"
)

var _ Transport = (*HTTPTransport)(nil)

// ErrTimeout marks a provider call the HTTP client gave up on.
var ErrTimeout = errors.New("provider request timed out")

// HTTPTransport executes provider requests with resty. Retries are owned by
// the dispatcher, so the client never retries on its own. Calls are bounded
// by the request context; NewHTTPTransport sets no client timeout of its own.
type HTTPTransport struct {
	client *resty.Client
}

func NewHTTPTransport() *HTTPTransport {
	client := resty.New()
	client.SetTimeout(0)

	transport, _ := NewHTTPTransportWithClient(client)
	return transport
}

func NewHTTPTransportWithClient(client *resty.Client) (*HTTPTransport, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	client.SetRetryCount(0)

	return &HTTPTransport{client: client}, nil
}

func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	if t == nil || t.client == nil {
		return nil, fmt.Errorf("transport is not initialized")
	}
	if req == nil {
		return nil, fmt.Errorf("provider request is required")
	}

	response, err := t.client.R().
		SetContext(ctx).
		SetHeaders(req.header).
		SetBody(req.body).
		Execute(req.method, req.url)
	if err != nil {
		// Provider URLs can embed credentials (Telegram bot tokens), keep them out of errors.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			if urlErr.Timeout() {
				return nil, fmt.Errorf("%w: %s request failed: %w", ErrTimeout, urlErr.Op, urlErr.Err)
			}
			return nil, fmt.Errorf("%s request failed: %w", urlErr.Op, urlErr.Err)
		}
		return nil, err
	}

	return &Response{
		StatusCode: response.StatusCode(),
		Body:       response.Body(),
	}, nil
}
