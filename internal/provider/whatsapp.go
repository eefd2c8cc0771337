package provider

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
)

const (
	defaultWhatsAppBaseURL    = "https://graph.facebook.com"
	defaultWhatsAppAPIVersion = "v18.0"
)

var _ Adapter = (*WhatsAppAdapter)(nil)

type WhatsAppCredentials struct {
	APIToken      string
	PhoneNumberID string
	BaseURL       string
	APIVersion    string
}

// WhatsAppAdapter sends text messages through the WhatsApp Business Cloud API.
type WhatsAppAdapter struct {
	token    string
	endpoint string
}

type whatsAppText struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url,omitempty"`
}

type whatsAppSendMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             whatsAppText `json:"text"`
}

type whatsAppSendResponse struct {
	MessagingProduct string `json:"messaging_product"`
	Messages         []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

func NewWhatsAppAdapter(creds WhatsAppCredentials) (*WhatsAppAdapter, error) {
	token := strings.TrimSpace(creds.APIToken)
	if token == "" {
		return nil, missingSetting(domain.ProviderWhatsApp, WhatsAppTokenSetting)
	}
	phoneNumberID := strings.TrimSpace(creds.PhoneNumberID)
	if phoneNumberID == "" {
		return nil, missingSetting(domain.ProviderWhatsApp, WhatsAppPhoneIDSetting)
	}

	baseURL := strings.TrimRight(strings.TrimSpace(creds.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultWhatsAppBaseURL
	}
	version := strings.Trim(strings.TrimSpace(creds.APIVersion), "/")
	if version == "" {
		version = defaultWhatsAppAPIVersion
	}

	return &WhatsAppAdapter{
		token:    token,
		endpoint: fmt.Sprintf("%s/%s/%s/messages", baseURL, version, phoneNumberID),
	}, nil
}

func (a *WhatsAppAdapter) Provider() domain.Provider { return domain.ProviderWhatsApp }

func (a *WhatsAppAdapter) BuildRequest(destination string, body string, metadata map[string]string) (*Request, error) {
	payload := whatsAppSendMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               destination,
		Type:             "text",
		Text: whatsAppText{
			Body:       body,
			PreviewURL: metaEnabled(metadata, MetaPreviewURL),
		},
	}

	return newJSONRequest(a.endpoint, payload, map[string]string{
		"Authorization": "Bearer " + a.token,
	})
}

func (a *WhatsAppAdapter) ParseResponse(statusCode int, body []byte) domain.DeliveryOutcome {
	if !isSuccessStatus(statusCode) {
		return domain.RejectedOutcome(statusCode, string(body))
	}

	var resp whatsAppSendResponse
	decodeErr := json.Unmarshal(body, &resp)
	if len(resp.Messages) > 0 && resp.Messages[0].ID != "" {
		return domain.SuccessOutcome(statusCode, resp.Messages[0].ID)
	}

	if decodeErr != nil {
		return domain.RejectedOutcome(statusCode, fmt.Sprintf("failed to parse WhatsApp response: %v", decodeErr))
	}
	return domain.RejectedOutcome(statusCode, "WhatsApp response missing messages[0].id")
}
