package domain

import (
	"fmt"
	"strings"
)

// Provider identifies a messaging channel the gateway can deliver to.
type Provider string

const (
	ProviderTelegram Provider = "TELEGRAM"
	ProviderWhatsApp Provider = "WHATSAPP"
	ProviderDiscord  Provider = "DISCORD"
)

func (p Provider) String() string { return string(p) }

func (p Provider) IsValid() bool {
	switch p {
	case ProviderTelegram, ProviderWhatsApp, ProviderDiscord:
		return true
	}
	return false
}

// DisplayName is the human-facing provider name used in error messages.
func (p Provider) DisplayName() string {
	switch p {
	case ProviderTelegram:
		return "Telegram"
	case ProviderWhatsApp:
		return "WhatsApp"
	case ProviderDiscord:
		return "Discord"
	}
	return string(p)
}

// DestinationField is the request body field carrying the raw destination.
func (p Provider) DestinationField() string {
	switch p {
	case ProviderTelegram:
		return "chat_id"
	case ProviderWhatsApp:
		return "phone"
	case ProviderDiscord:
		return "channel_id"
	}
	return "destination"
}

// Label is the lowercase form used for routes, metrics and routing keys.
func (p Provider) Label() string {
	return strings.ToLower(string(p))
}

func ParseProviderFromString(s string) (Provider, error) {
	p := Provider(strings.ToUpper(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedProvider, s)
	}
	return p, nil
}

// SupportedProviders lists every provider known to the gateway.
func SupportedProviders() []Provider {
	return []Provider{ProviderTelegram, ProviderWhatsApp, ProviderDiscord}
}
