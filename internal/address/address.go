// Package address canonicalizes raw destinations before an adapter sees them.
package address

import (
	"fmt"
	"strings"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
)

var phoneSeparators = strings.NewReplacer("+", "", "-", "", "(", "", ")", "", " ", "")

// Normalize returns the provider-specific canonical form of raw.
func Normalize(provider domain.Provider, raw string) (string, error) {
	switch provider {
	case domain.ProviderWhatsApp:
		return normalizePhone(raw)
	case domain.ProviderTelegram:
		return normalizeChatID(raw)
	case domain.ProviderDiscord:
		return normalizeSnowflake(raw)
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedProvider, provider)
}

func normalizePhone(raw string) (string, error) {
	phone := phoneSeparators.Replace(raw)
	if phone == "" {
		return "", fmt.Errorf("%w: phone number is empty", domain.ErrInvalidDestination)
	}
	if !isDigits(phone) {
		return "", fmt.Errorf("%w: phone number %q must contain only digits", domain.ErrInvalidDestination, raw)
	}
	return phone, nil
}

// Telegram accepts numeric chat ids and @channel usernames as-is.
func normalizeChatID(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: chat id is empty", domain.ErrInvalidDestination)
	}
	return raw, nil
}

func normalizeSnowflake(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", fmt.Errorf("%w: channel id is empty", domain.ErrInvalidDestination)
	}
	if !isDigits(id) {
		return "", fmt.Errorf("%w: channel id %q must be numeric", domain.ErrInvalidDestination, raw)
	}
	return id, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
