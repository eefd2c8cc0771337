package domain

import (
	"fmt"
	"maps"
)

// SendRequest is the normalized input of one dispatch. Build it with
// NewSendRequest so the metadata map is owned by the request.
type SendRequest struct {
	ID          string
	Provider    Provider
	Destination string
	Body        string
	Metadata    map[string]string
}

func NewSendRequest(id string, provider Provider, destination, body string, metadata map[string]string) SendRequest {
	return SendRequest{
		ID:          id,
		Provider:    provider,
		Destination: destination,
		Body:        body,
		Metadata:    maps.Clone(metadata),
	}
}

func (r SendRequest) Validate() error {
	if r.Destination == "" {
		return fmt.Errorf("%w: destination is required", ErrInvalidRequest)
	}
	if r.Body == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidRequest)
	}
	return nil
}
