package provider

import (
	"fmt"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
)

// Setting names reported when an adapter credential is missing.
const (
	TelegramTokenSetting   = "TELEGRAM_BOT_TOKEN"
	WhatsAppTokenSetting   = "WHATSAPP_API_TOKEN"
	WhatsAppPhoneIDSetting = "WHATSAPP_PHONE_ID"
	DiscordTokenSetting    = "DISCORD_BOT_TOKEN"
)

// ConfigError reports an adapter that cannot be built because a credential is absent.
type ConfigError struct {
	Provider domain.Provider
	Setting  string
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s not configured", e.Setting)
}

func (e *ConfigError) Unwrap() error {
	return domain.ErrConfig
}

func missingSetting(provider domain.Provider, setting string) error {
	return &ConfigError{Provider: provider, Setting: setting}
}
