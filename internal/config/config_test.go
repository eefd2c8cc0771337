package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", cfg.APIPort)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %s, want info", cfg.LogLevel)
	}
	if cfg.ShutdownTimeout() != 10*time.Second {
		t.Errorf("ShutdownTimeout() = %s, want 10s", cfg.ShutdownTimeout())
	}
	if cfg.WhatsAppAPIBaseURL != "https://graph.facebook.com" {
		t.Errorf("WhatsAppAPIBaseURL = %s", cfg.WhatsAppAPIBaseURL)
	}
	if cfg.WhatsAppAPIVersion != "v18.0" {
		t.Errorf("WhatsAppAPIVersion = %s, want v18.0", cfg.WhatsAppAPIVersion)
	}
	if cfg.DispatchMaxAttempts != 3 {
		t.Errorf("DispatchMaxAttempts = %d, want 3", cfg.DispatchMaxAttempts)
	}
	if cfg.AttemptTimeout() != 10*time.Second {
		t.Errorf("AttemptTimeout() = %s, want 10s", cfg.AttemptTimeout())
	}
	if cfg.BaseDelay() != time.Second || cfg.MaxDelay() != 30*time.Second || cfg.Jitter() != 250*time.Millisecond {
		t.Errorf("delays = %s/%s/%s, want 1s/30s/250ms", cfg.BaseDelay(), cfg.MaxDelay(), cfg.Jitter())
	}
	if cfg.RateLimitPerSec != 30 {
		t.Errorf("RateLimitPerSec = %d, want 30", cfg.RateLimitPerSec)
	}
	if cfg.TelegramBotToken != "" {
		t.Errorf("TelegramBotToken = %q, want empty", cfg.TelegramBotToken)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("API_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DISPATCH_MAX_ATTEMPTS", "5")
	t.Setenv("DISPATCH_BASE_DELAY_MS", "200")
	t.Setenv("RATE_LIMIT_PER_SEC", "250")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("DATABASE_DSN", "host=localhost user=test password=test dbname=test port=5432 sslmode=disable")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIPort != 9090 {
		t.Errorf("APIPort = %d, want 9090", cfg.APIPort)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", cfg.LogLevel)
	}
	if cfg.DispatchMaxAttempts != 5 {
		t.Errorf("DispatchMaxAttempts = %d, want 5", cfg.DispatchMaxAttempts)
	}
	if cfg.BaseDelay() != 200*time.Millisecond {
		t.Errorf("BaseDelay() = %s, want 200ms", cfg.BaseDelay())
	}
	if cfg.RateLimitPerSec != 250 {
		t.Errorf("RateLimitPerSec = %d, want 250", cfg.RateLimitPerSec)
	}
	if cfg.TelegramBotToken != "123:abc" {
		t.Errorf("TelegramBotToken = %q", cfg.TelegramBotToken)
	}
	if cfg.DatabaseDSN == "" {
		t.Error("DatabaseDSN should not be empty")
	}
}

func TestLoad_ProviderRateLimits(t *testing.T) {
	t.Setenv("RATE_LIMIT_TELEGRAM_PER_SEC", "25")
	t.Setenv("RATE_LIMIT_WHATSAPP_PER_SEC", "0")
	t.Setenv("RATE_LIMIT_DISCORD_PER_SEC", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := cfg.ProviderRateLimits()
	want := map[domain.Provider]int{
		domain.ProviderTelegram: 25,
		domain.ProviderDiscord:  5,
	}
	if len(got) != len(want) {
		t.Fatalf("ProviderRateLimits() = %v, want %v", got, want)
	}
	for p, limit := range want {
		if got[p] != limit {
			t.Errorf("ProviderRateLimits()[%s] = %d, want %d", p, got[p], limit)
		}
	}
	if _, ok := got[domain.ProviderWhatsApp]; ok {
		t.Error("whatsapp should keep the global limit")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "non numeric port", key: "API_PORT", value: "http"},
		{name: "port out of range", key: "API_PORT", value: "70000"},
		{name: "zero attempts", key: "DISPATCH_MAX_ATTEMPTS", value: "0"},
		{name: "zero attempt timeout", key: "DISPATCH_ATTEMPT_TIMEOUT_SEC", value: "0"},
		{name: "negative jitter", key: "DISPATCH_JITTER_MS", value: "-1"},
		{name: "zero rate limit", key: "RATE_LIMIT_PER_SEC", value: "0"},
		{name: "negative provider rate limit", key: "RATE_LIMIT_DISCORD_PER_SEC", value: "-5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s, got nil", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	content := "WHATSAPP_API_TOKEN=file-token\nWHATSAPP_PHONE_ID=1234567890\nLOG_LEVEL=warn\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}

	// godotenv sets variables with os.Setenv; register them with t.Setenv
	// first so they are restored after the test.
	t.Setenv("WHATSAPP_API_TOKEN", "")
	t.Setenv("WHATSAPP_PHONE_ID", "")
	os.Unsetenv("WHATSAPP_API_TOKEN")
	os.Unsetenv("WHATSAPP_PHONE_ID")
	t.Setenv("LOG_LEVEL", "error")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.WhatsAppAPIToken != "file-token" {
		t.Errorf("WhatsAppAPIToken = %q, want file-token", cfg.WhatsAppAPIToken)
	}
	if cfg.WhatsAppPhoneID != "1234567890" {
		t.Errorf("WhatsAppPhoneID = %q, want 1234567890", cfg.WhatsAppPhoneID)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %s, want error (environment wins over file)", cfg.LogLevel)
	}
}

func TestLoad_MissingEnvFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err == nil {
		t.Fatal("expected error for missing env file, got nil")
	}
}
