package provider

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/kursadbilgin/notify-gateway/internal/domain"
)

var _ Adapter = (*DiscordAdapter)(nil)

type DiscordCredentials struct {
	BotToken string
	// BaseURL overrides the discordgo API endpoint, e.g. http://127.0.0.1:8080/api/v10.
	BaseURL string
}

// DiscordAdapter posts channel messages with a bot token.
type DiscordAdapter struct {
	token   string
	baseURL string
}

type discordRateLimit struct {
	RetryAfter float64 `json:"retry_after"`
}

func NewDiscordAdapter(creds DiscordCredentials) (*DiscordAdapter, error) {
	token := strings.TrimSpace(creds.BotToken)
	if token == "" {
		return nil, missingSetting(domain.ProviderDiscord, DiscordTokenSetting)
	}

	return &DiscordAdapter{
		token:   token,
		baseURL: strings.TrimRight(strings.TrimSpace(creds.BaseURL), "/"),
	}, nil
}

func (a *DiscordAdapter) Provider() domain.Provider { return domain.ProviderDiscord }

func (a *DiscordAdapter) BuildRequest(destination string, body string, metadata map[string]string) (*Request, error) {
	payload := discordgo.MessageSend{
		Content: body,
		TTS:     metaEnabled(metadata, MetaTTS),
	}

	return newJSONRequest(a.endpoint(destination), payload, map[string]string{
		"Authorization": "Bot " + a.token,
	})
}

func (a *DiscordAdapter) ParseResponse(statusCode int, body []byte) domain.DeliveryOutcome {
	if !isSuccessStatus(statusCode) {
		outcome := domain.RejectedOutcome(statusCode, string(body))
		var limit discordRateLimit
		if err := json.Unmarshal(body, &limit); err == nil && limit.RetryAfter > 0 {
			outcome.RetryAfter = time.Duration(limit.RetryAfter * float64(time.Second))
		}
		return outcome
	}

	var msg discordgo.Message
	decodeErr := json.Unmarshal(body, &msg)
	if msg.ID == "" {
		// discordgo rejects the whole message on a bad field; the id alone is enough.
		var idOnly struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(body, &idOnly); err == nil {
			msg.ID = idOnly.ID
		}
	}
	if msg.ID != "" {
		return domain.SuccessOutcome(statusCode, msg.ID)
	}

	if decodeErr != nil {
		return domain.RejectedOutcome(statusCode, fmt.Sprintf("failed to parse Discord response: %v", decodeErr))
	}
	return domain.RejectedOutcome(statusCode, "Discord response missing id")
}

func (a *DiscordAdapter) endpoint(channelID string) string {
	if a.baseURL == "" {
		return discordgo.EndpointChannelMessages(channelID)
	}
	return fmt.Sprintf("%s/channels/%s/messages", a.baseURL, channelID)
}
