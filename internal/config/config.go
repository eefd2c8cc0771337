package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/kursadbilgin/notify-gateway/internal/domain"
)

type Config struct {
	APIPort            int    `env:"API_PORT,default=8080"`
	LogLevel           string `env:"LOG_LEVEL,default=info"`
	ShutdownTimeoutSec int    `env:"SHUTDOWN_TIMEOUT_SEC,default=10"`

	TelegramBotToken   string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramAPIBaseURL string `env:"TELEGRAM_API_BASE_URL"`
	WhatsAppAPIToken   string `env:"WHATSAPP_API_TOKEN"`
	WhatsAppPhoneID    string `env:"WHATSAPP_PHONE_ID"`
	WhatsAppAPIBaseURL string `env:"WHATSAPP_API_BASE_URL,default=https://graph.facebook.com"`
	WhatsAppAPIVersion string `env:"WHATSAPP_API_VERSION,default=v18.0"`
	DiscordBotToken    string `env:"DISCORD_BOT_TOKEN"`
	DiscordAPIBaseURL  string `env:"DISCORD_API_BASE_URL"`

	DispatchMaxAttempts       int `env:"DISPATCH_MAX_ATTEMPTS,default=3"`
	DispatchAttemptTimeoutSec int `env:"DISPATCH_ATTEMPT_TIMEOUT_SEC,default=10"`
	DispatchBaseDelayMS       int `env:"DISPATCH_BASE_DELAY_MS,default=1000"`
	DispatchMaxDelayMS        int `env:"DISPATCH_MAX_DELAY_MS,default=30000"`
	DispatchJitterMS          int `env:"DISPATCH_JITTER_MS,default=250"`

	// Optional backends. An empty value disables the feature.
	DatabaseDSN     string `env:"DATABASE_DSN"`
	RedisURL        string `env:"REDIS_URL"`
	RateLimitPerSec int    `env:"RATE_LIMIT_PER_SEC,default=30"`
	RabbitMQURL     string `env:"RABBITMQ_URL"`

	// Per-provider budgets; 0 keeps RATE_LIMIT_PER_SEC.
	RateLimitTelegramPerSec int `env:"RATE_LIMIT_TELEGRAM_PER_SEC,default=0"`
	RateLimitWhatsAppPerSec int `env:"RATE_LIMIT_WHATSAPP_PER_SEC,default=0"`
	RateLimitDiscordPerSec  int `env:"RATE_LIMIT_DISCORD_PER_SEC,default=0"`
}

// Load reads the configuration from the environment after applying the
// given .env files, or ./.env when none are named. Variables already set in
// the environment take precedence over file values. A missing ./.env is not
// an error; a missing named file is.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil {
		if len(files) > 0 || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("API_PORT must be between 1 and 65535, got %d", c.APIPort)
	}
	if c.DispatchMaxAttempts < 1 {
		return fmt.Errorf("DISPATCH_MAX_ATTEMPTS must be at least 1, got %d", c.DispatchMaxAttempts)
	}
	if c.DispatchAttemptTimeoutSec < 1 {
		return fmt.Errorf("DISPATCH_ATTEMPT_TIMEOUT_SEC must be at least 1, got %d", c.DispatchAttemptTimeoutSec)
	}
	if c.DispatchBaseDelayMS < 0 || c.DispatchMaxDelayMS < 0 || c.DispatchJitterMS < 0 {
		return errors.New("dispatch delays must not be negative")
	}
	if c.RateLimitPerSec < 1 {
		return fmt.Errorf("RATE_LIMIT_PER_SEC must be at least 1, got %d", c.RateLimitPerSec)
	}
	if c.RateLimitTelegramPerSec < 0 || c.RateLimitWhatsAppPerSec < 0 || c.RateLimitDiscordPerSec < 0 {
		return errors.New("provider rate limits must not be negative")
	}
	return nil
}

// ProviderRateLimits returns the providers whose budget overrides
// RATE_LIMIT_PER_SEC.
func (c *Config) ProviderRateLimits() map[domain.Provider]int {
	limits := make(map[domain.Provider]int)
	for p, limit := range map[domain.Provider]int{
		domain.ProviderTelegram: c.RateLimitTelegramPerSec,
		domain.ProviderWhatsApp: c.RateLimitWhatsAppPerSec,
		domain.ProviderDiscord:  c.RateLimitDiscordPerSec,
	} {
		if limit > 0 {
			limits[p] = limit
		}
	}
	return limits
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}

func (c *Config) AttemptTimeout() time.Duration {
	return time.Duration(c.DispatchAttemptTimeoutSec) * time.Second
}

func (c *Config) BaseDelay() time.Duration {
	return time.Duration(c.DispatchBaseDelayMS) * time.Millisecond
}

func (c *Config) MaxDelay() time.Duration {
	return time.Duration(c.DispatchMaxDelayMS) * time.Millisecond
}

func (c *Config) Jitter() time.Duration {
	return time.Duration(c.DispatchJitterMS) * time.Millisecond
}
