package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/notify-gateway/internal/domain"
)

type AttemptLister interface {
	GetByDispatchID(ctx context.Context, dispatchID string) ([]domain.DeliveryAttempt, error)
}

type AttemptHandler struct {
	attempts AttemptLister
}

func NewAttemptHandler(attempts AttemptLister) (*AttemptHandler, error) {
	if attempts == nil {
		return nil, fmt.Errorf("attempt lister is required")
	}
	return &AttemptHandler{attempts: attempts}, nil
}

func RegisterAttemptRoutes(router fiber.Router, attempts AttemptLister) error {
	h, err := NewAttemptHandler(attempts)
	if err != nil {
		return err
	}

	router.Get("/dispatches/:id/attempts", h.ListAttempts)
	return nil
}

type attemptResponse struct {
	AttemptNumber     int       `json:"attemptNumber"`
	Provider          string    `json:"provider"`
	Status            string    `json:"status"`
	HTTPStatus        *int      `json:"httpStatus,omitempty"`
	ProviderMessageID *string   `json:"providerMessageId,omitempty"`
	Error             *string   `json:"error,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

type listAttemptsResponse struct {
	DispatchID string            `json:"dispatchId"`
	Attempts   []attemptResponse `json:"attempts"`
}

func (h *AttemptHandler) ListAttempts(c *fiber.Ctx) error {
	dispatchID := c.Params("id")

	attempts, err := h.attempts.GetByDispatchID(c.UserContext(), dispatchID)
	if err != nil {
		return toHTTPError(err)
	}

	resp := listAttemptsResponse{
		DispatchID: dispatchID,
		Attempts:   make([]attemptResponse, 0, len(attempts)),
	}
	for _, a := range attempts {
		resp.Attempts = append(resp.Attempts, attemptResponse{
			AttemptNumber:     a.AttemptNumber,
			Provider:          a.Provider.String(),
			Status:            a.Status.String(),
			HTTPStatus:        a.HTTPStatus,
			ProviderMessageID: a.ProviderMessageID,
			Error:             a.Error,
			CreatedAt:         a.CreatedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		return err
	}
}
