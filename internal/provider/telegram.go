package provider

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/kursadbilgin/notify-gateway/internal/domain"
	"github.com/microcosm-cc/bluemonday"
)

const (
	telegramSendMethod    = "sendMessage"
	telegramParseModeNone = "none"
)

var _ Adapter = (*TelegramAdapter)(nil)

type TelegramCredentials struct {
	BotToken string
	// BaseURL overrides https://api.telegram.org, mainly for tests and local Bot API servers.
	BaseURL string
}

// TelegramAdapter sends text messages through the Bot API sendMessage method.
type TelegramAdapter struct {
	token     string
	baseURL   string
	sanitizer *bluemonday.Policy
}

type telegramSendMessage struct {
	ChatID              string `json:"chat_id"`
	Text                string `json:"text"`
	ParseMode           string `json:"parse_mode,omitempty"`
	DisableNotification bool   `json:"disable_notification,omitempty"`
}

func NewTelegramAdapter(creds TelegramCredentials) (*TelegramAdapter, error) {
	token := strings.TrimSpace(creds.BotToken)
	if token == "" {
		return nil, missingSetting(domain.ProviderTelegram, TelegramTokenSetting)
	}

	return &TelegramAdapter{
		token:     token,
		baseURL:   strings.TrimRight(strings.TrimSpace(creds.BaseURL), "/"),
		sanitizer: telegramHTMLPolicy(),
	}, nil
}

func (a *TelegramAdapter) Provider() domain.Provider { return domain.ProviderTelegram }

func (a *TelegramAdapter) BuildRequest(destination string, body string, metadata map[string]string) (*Request, error) {
	parseMode := strings.TrimSpace(metadata[MetaParseMode])
	if parseMode == "" {
		parseMode = tgbotapi.ModeHTML
	}
	if strings.EqualFold(parseMode, telegramParseModeNone) {
		parseMode = ""
	}

	text := body
	if strings.EqualFold(parseMode, tgbotapi.ModeHTML) {
		text = a.sanitizer.Sanitize(body)
	}

	payload := telegramSendMessage{
		ChatID:              destination,
		Text:                text,
		ParseMode:           parseMode,
		DisableNotification: metaEnabled(metadata, MetaDisableNotification),
	}

	return newJSONRequest(a.endpoint(), payload, nil)
}

func (a *TelegramAdapter) ParseResponse(statusCode int, body []byte) domain.DeliveryOutcome {
	var resp tgbotapi.APIResponse
	decodeErr := json.Unmarshal(body, &resp)

	if !isSuccessStatus(statusCode) {
		outcome := domain.RejectedOutcome(statusCode, string(body))
		if resp.Parameters != nil && resp.Parameters.RetryAfter > 0 {
			outcome.RetryAfter = time.Duration(resp.Parameters.RetryAfter) * time.Second
		}
		return outcome
	}

	// Partial decodes still count when the message id made it through.
	var msg tgbotapi.Message
	if len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, &msg); err != nil && decodeErr == nil {
			decodeErr = err
		}
	}
	if msg.MessageID != 0 {
		return domain.SuccessOutcome(statusCode, strconv.Itoa(msg.MessageID))
	}

	if decodeErr != nil {
		return domain.RejectedOutcome(statusCode, fmt.Sprintf("failed to parse Telegram response: %v", decodeErr))
	}
	if !resp.Ok {
		return domain.RejectedOutcome(statusCode, fmt.Sprintf("Telegram response not ok: %s", resp.Description))
	}
	return domain.RejectedOutcome(statusCode, "Telegram response missing result.message_id")
}

func (a *TelegramAdapter) endpoint() string {
	if a.baseURL == "" {
		return fmt.Sprintf(tgbotapi.APIEndpoint, a.token, telegramSendMethod)
	}
	return fmt.Sprintf("%s/bot%s/%s", a.baseURL, a.token, telegramSendMethod)
}

// telegramHTMLPolicy keeps only the tags Telegram's HTML parse mode accepts.
func telegramHTMLPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "strong", "i", "em", "u", "ins", "s", "strike", "del", "pre", "blockquote", "tg-spoiler")
	p.AllowURLSchemes("http", "https", "tg", "mailto")
	p.RequireParseableURLs(true)
	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^tg-spoiler$`)).OnElements("span")
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^language-[A-Za-z0-9_+-]+$`)).OnElements("code")
	p.AllowElements("code")
	return p
}
