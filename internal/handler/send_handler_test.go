package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/notify-gateway/internal/domain"
	"github.com/kursadbilgin/notify-gateway/internal/observability"
	"github.com/kursadbilgin/notify-gateway/internal/provider"
	"github.com/kursadbilgin/notify-gateway/internal/service"
	"go.uber.org/zap"
)

type stubDispatcher struct {
	dispatchFn func(ctx context.Context, req domain.SendRequest) (domain.DeliveryOutcome, error)
}

func (s *stubDispatcher) Dispatch(ctx context.Context, req domain.SendRequest) (domain.DeliveryOutcome, error) {
	return s.dispatchFn(ctx, req)
}

func newSendTestApp(t *testing.T, dispatcher Dispatcher) *fiber.App {
	t.Helper()

	app := newTestApp()
	if err := RegisterSendRoutes(app, dispatcher, zap.NewNop()); err != nil {
		t.Fatalf("RegisterSendRoutes() error = %v", err)
	}
	return app
}

func decodeBody(t *testing.T, body []byte) map[string]any {
	t.Helper()

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v, body=%s", err, string(body))
	}
	return parsed
}

func TestSendIntegration_Preflight(t *testing.T) {
	t.Parallel()

	app := newSendTestApp(t, &stubDispatcher{dispatchFn: func(ctx context.Context, req domain.SendRequest) (domain.DeliveryOutcome, error) {
		t.Fatal("preflight must not dispatch")
		return domain.DeliveryOutcome{}, nil
	}})

	for _, path := range []string{"/send/telegram", "/send/whatsapp", "/anything"} {
		resp, body := performRequest(t, app, http.MethodOptions, path, "")
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("%s status = %d, want 200", path, resp.StatusCode)
		}
		if len(body) != 0 {
			t.Fatalf("%s body = %q, want empty", path, string(body))
		}

		wantHeaders := map[string]string{
			"Access-Control-Allow-Origin":  "*",
			"Access-Control-Allow-Methods": "POST, OPTIONS",
			"Access-Control-Allow-Headers": "Content-Type, X-Api-Key",
			"Access-Control-Max-Age":       "86400",
		}
		for header, want := range wantHeaders {
			if got := resp.Header.Get(header); got != want {
				t.Fatalf("%s %s = %q, want %q", path, header, got, want)
			}
		}
	}
}

func TestSendIntegration_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	app := newSendTestApp(t, &stubDispatcher{})

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodPatch} {
		resp, body := performRequest(t, app, method, "/send/telegram", "")
		if resp.StatusCode != fiber.StatusMethodNotAllowed {
			t.Fatalf("%s status = %d, want 405", method, resp.StatusCode)
		}
		if got := decodeBody(t, body)["error"]; got != "Method not allowed" {
			t.Fatalf("%s error = %v", method, got)
		}
		if got := resp.Header.Get(fiber.HeaderAccessControlAllowOrigin); got != "*" {
			t.Fatalf("%s Access-Control-Allow-Origin = %q", method, got)
		}
		if got := resp.Header.Get(fiber.HeaderContentType); got != fiber.MIMEApplicationJSON {
			t.Fatalf("%s Content-Type = %q", method, got)
		}
	}
}

func TestSendIntegration_RequestMapping(t *testing.T) {
	t.Parallel()

	var got domain.SendRequest
	var gotCorrelationID string
	dispatcher := &stubDispatcher{dispatchFn: func(ctx context.Context, req domain.SendRequest) (domain.DeliveryOutcome, error) {
		got = req
		gotCorrelationID, _ = observability.CorrelationIDFromContext(ctx)
		return domain.SuccessOutcome(200, "wamid.1"), nil
	}}
	app := newSendTestApp(t, dispatcher)

	req := httptest.NewRequest(http.MethodPost, "/send/WhatsApp", strings.NewReader(`{"phone":"+1 (555) 123-4567","message":"hi","options":{"preview_url":true}}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(fiber.HeaderXRequestID, "req-123")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}
	parsed := decodeBody(t, body)
	if parsed["success"] != true || parsed["message_id"] != "wamid.1" {
		t.Fatalf("body = %v", parsed)
	}

	if got.Provider != domain.ProviderWhatsApp || got.Destination != "+1 (555) 123-4567" || got.Body != "hi" {
		t.Fatalf("dispatched request = %+v", got)
	}
	if got.Metadata[provider.MetaPreviewURL] != "true" {
		t.Fatalf("metadata = %v, want preview_url=true", got.Metadata)
	}
	if got.ID == "" || resp.Header.Get(HeaderDispatchID) != got.ID {
		t.Fatalf("X-Dispatch-ID = %q, dispatch id = %q", resp.Header.Get(HeaderDispatchID), got.ID)
	}
	if gotCorrelationID != "req-123" {
		t.Fatalf("correlation id = %q, want req-123", gotCorrelationID)
	}
}

func TestSendIntegration_ClientErrors(t *testing.T) {
	t.Parallel()

	app := newSendTestApp(t, &stubDispatcher{dispatchFn: func(ctx context.Context, req domain.SendRequest) (domain.DeliveryOutcome, error) {
		if err := req.Validate(); err != nil {
			return domain.DeliveryOutcome{}, err
		}
		return domain.SuccessOutcome(200, "1"), nil
	}})

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantError  string
	}{
		{name: "unknown provider", path: "/send/sms", body: `{}`, wantStatus: 404, wantError: "unsupported provider"},
		{name: "malformed json", path: "/send/telegram", body: `{"chat_id":`, wantStatus: 400, wantError: "invalid request body"},
		{name: "missing message", path: "/send/telegram", body: `{"chat_id":"1"}`, wantStatus: 400, wantError: "chat_id and message are required"},
		{name: "zero chat id is missing", path: "/send/telegram", body: `{"chat_id":0,"message":"hi"}`, wantStatus: 400, wantError: "chat_id and message are required"},
		{name: "empty body", path: "/send/whatsapp", body: ``, wantStatus: 400, wantError: "phone and message are required"},
		{name: "discord missing channel", path: "/send/discord", body: `{"message":"hi"}`, wantStatus: 400, wantError: "channel_id and message are required"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp, body := performRequest(t, app, http.MethodPost, tt.path, tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body=%s", resp.StatusCode, tt.wantStatus, string(body))
			}
			if got := decodeBody(t, body)["error"]; got != tt.wantError {
				t.Fatalf("error = %v, want %q", got, tt.wantError)
			}
			if got := resp.Header.Get(fiber.HeaderAccessControlAllowOrigin); got != "*" {
				t.Fatalf("Access-Control-Allow-Origin = %q, want *", got)
			}
		})
	}
}

func TestSendIntegration_EndToEnd(t *testing.T) {
	t.Parallel()

	telegramAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)

		w.Header().Set("Content-Type", "application/json")
		if payload["chat_id"] == "404" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":42}}`))
	}))
	defer telegramAPI.Close()

	telegram, err := provider.NewTelegramAdapter(provider.TelegramCredentials{BotToken: "123:abc", BaseURL: telegramAPI.URL})
	if err != nil {
		t.Fatalf("NewTelegramAdapter() error = %v", err)
	}
	registry, err := provider.NewRegistry(telegram)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	whatsapp, waErr := provider.NewWhatsAppAdapter(provider.WhatsAppCredentials{})
	if err := registry.Install(domain.ProviderWhatsApp, whatsapp, waErr); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	dispatcher, err := service.NewDispatcher(registry, provider.NewHTTPTransport(), service.RetryPolicy{MaxAttempts: 1}, 2*time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	app := newSendTestApp(t, dispatcher)

	resp, body := performRequest(t, app, http.MethodPost, "/send/telegram", `{"chat_id":12345,"message":"<b>deploy</b> finished"}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}
	if parsed := decodeBody(t, body); parsed["success"] != true || parsed["message_id"] != float64(42) {
		t.Fatalf("body = %v", parsed)
	}

	resp, body = performRequest(t, app, http.MethodPost, "/send/telegram", `{"chat_id":"404","message":"hi"}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body=%s", resp.StatusCode, string(body))
	}
	parsed := decodeBody(t, body)
	if parsed["error"] != "Telegram API error" {
		t.Fatalf("error = %v", parsed["error"])
	}
	if parsed["details"] != `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}` {
		t.Fatalf("details = %v", parsed["details"])
	}

	resp, body = performRequest(t, app, http.MethodPost, "/send/whatsapp", `{"phone":"15551234567","message":"hi"}`)
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("status = %d, want 500, body=%s", resp.StatusCode, string(body))
	}
	if got := decodeBody(t, body)["error"]; got != "WHATSAPP_API_TOKEN not configured" {
		t.Fatalf("error = %v", got)
	}
}

func TestParseSendPayload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		body            string
		wantDestination string
		wantMessage     string
		wantOptions     map[string]string
	}{
		{name: "string chat id", body: `{"chat_id":"@news","message":"hi"}`, wantDestination: "@news", wantMessage: "hi"},
		{name: "numeric chat id", body: `{"chat_id":-1001234567890,"message":"hi"}`, wantDestination: "-1001234567890", wantMessage: "hi"},
		{name: "null chat id", body: `{"chat_id":null,"message":"hi"}`, wantMessage: "hi"},
		{name: "non string message", body: `{"chat_id":"1","message":42}`, wantDestination: "1"},
		{
			name:            "options are stringified",
			body:            `{"chat_id":"1","message":"m","options":{"parse_mode":"MarkdownV2","disable_notification":true}}`,
			wantDestination: "1",
			wantMessage:     "m",
			wantOptions:     map[string]string{"parse_mode": "MarkdownV2", "disable_notification": "true"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseSendPayload([]byte(tt.body), "chat_id")
			if err != nil {
				t.Fatalf("parseSendPayload() error = %v", err)
			}
			if got.destination != tt.wantDestination {
				t.Fatalf("destination = %q, want %q", got.destination, tt.wantDestination)
			}
			if got.message != tt.wantMessage {
				t.Fatalf("message = %q, want %q", got.message, tt.wantMessage)
			}
			for key, want := range tt.wantOptions {
				if got.options[key] != want {
					t.Fatalf("options[%s] = %q, want %q", key, got.options[key], want)
				}
			}
		})
	}
}
