package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/kursadbilgin/notify-gateway/internal/domain"
	"github.com/kursadbilgin/notify-gateway/internal/observability"
	"github.com/kursadbilgin/notify-gateway/internal/report"
	"go.uber.org/zap"
)

// HeaderDispatchID carries the id under which a send request was dispatched.
const HeaderDispatchID = "X-Dispatch-ID"

type Dispatcher interface {
	Dispatch(ctx context.Context, req domain.SendRequest) (domain.DeliveryOutcome, error)
}

type SendHandler struct {
	dispatcher Dispatcher
	logger     *zap.Logger
	newID      func() string
}

func NewSendHandler(dispatcher Dispatcher, logger *zap.Logger) (*SendHandler, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SendHandler{dispatcher: dispatcher, logger: logger, newID: uuid.NewString}, nil
}

func RegisterSendRoutes(router fiber.Router, dispatcher Dispatcher, logger *zap.Logger) error {
	h, err := NewSendHandler(dispatcher, logger)
	if err != nil {
		return err
	}

	send := router.Group("/send")
	send.Post("/:provider", h.Send)
	send.All("/:provider", MethodNotAllowed)

	return nil
}

func MethodNotAllowed(c *fiber.Ctx) error {
	return c.Status(fiber.StatusMethodNotAllowed).JSON(fiber.Map{
		"error": "Method not allowed",
	})
}

func (h *SendHandler) Send(c *fiber.Ctx) error {
	p, err := domain.ParseProviderFromString(c.Params("provider"))
	if err != nil {
		return writeReport(c, report.Error(p, err))
	}

	payload, err := parseSendPayload(c.Body(), p.DestinationField())
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	dispatchID := h.newID()
	c.Set(HeaderDispatchID, dispatchID)

	ctx := observability.WithDispatchID(c.UserContext(), dispatchID)
	if correlationID := requestCorrelationID(c); correlationID != "" {
		ctx = observability.WithCorrelationID(ctx, correlationID)
	}

	req := domain.NewSendRequest(dispatchID, p, payload.destination, payload.message, payload.options)
	outcome, err := h.dispatcher.Dispatch(ctx, req)
	if err != nil {
		observability.WithContextLogger(h.logger, ctx).Info("send request rejected",
			zap.String("provider", p.String()),
			zap.Error(err),
		)
		return writeReport(c, report.Error(p, err))
	}

	return writeReport(c, report.Outcome(p, outcome))
}

func writeReport(c *fiber.Ctx, resp report.Response) error {
	return c.Status(resp.StatusCode).JSON(resp.Body)
}

type sendPayload struct {
	destination string
	message     string
	options     map[string]string
}

// parseSendPayload reads {<destinationField>, message, options}. Only malformed
// JSON is an error; missing or falsy fields come back empty and are rejected
// by request validation.
func parseSendPayload(body []byte, destinationField string) (sendPayload, error) {
	var payload sendPayload
	if len(bytes.TrimSpace(body)) == 0 {
		return payload, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return payload, err
	}

	payload.destination = scalarText(fields[destinationField])
	payload.message = stringValue(fields["message"])

	if raw, ok := fields["options"]; ok {
		var options map[string]json.RawMessage
		if err := json.Unmarshal(raw, &options); err == nil {
			payload.options = make(map[string]string, len(options))
			for key, value := range options {
				payload.options[key] = scalarText(value)
			}
		}
	}

	return payload, nil
}

func stringValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// scalarText renders a JSON string, number or boolean as text. Zero and
// false render empty, matching how callers omit a destination.
func scalarText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}

	switch trimmed[0] {
	case '"':
		return stringValue(trimmed)
	case 't':
		return "true"
	}

	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return ""
	}
	if f, err := n.Float64(); err == nil && f == 0 {
		return ""
	}
	return n.String()
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); value != "" {
		return value
	}
	if value, ok := c.Locals("requestid").(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}
