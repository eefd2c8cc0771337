package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
	"gorm.io/gorm"
)

// AttemptRepository is the delivery ledger.
type AttemptRepository interface {
	Create(ctx context.Context, a *domain.DeliveryAttempt) error
	GetByDispatchID(ctx context.Context, dispatchID string) ([]domain.DeliveryAttempt, error)
}

var _ AttemptRepository = (*GormAttemptRepo)(nil)

type GormAttemptRepo struct {
	db *gorm.DB
}

func NewGormAttemptRepo(db *gorm.DB) *GormAttemptRepo {
	return &GormAttemptRepo{db: db}
}

func (r *GormAttemptRepo) Create(ctx context.Context, a *domain.DeliveryAttempt) error {
	if a == nil {
		return fmt.Errorf("delivery attempt is required")
	}

	model := attemptModelFromDomain(a)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create delivery attempt: %w", err)
	}
	*a = *attemptModelToDomain(model)
	return nil
}

// GetByDispatchID returns attempts in attempt order, or domain.ErrNotFound
// when the dispatch has no recorded attempts.
func (r *GormAttemptRepo) GetByDispatchID(ctx context.Context, dispatchID string) ([]domain.DeliveryAttempt, error) {
	dispatchID = strings.TrimSpace(dispatchID)
	if dispatchID == "" {
		return nil, fmt.Errorf("%w: dispatch id is required", domain.ErrInvalidRequest)
	}

	var models []DeliveryAttemptModel
	err := r.db.WithContext(ctx).
		Where("dispatch_id = ?", dispatchID).
		Order("attempt_number ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery attempts: %w", err)
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("%w: dispatch %s", domain.ErrNotFound, dispatchID)
	}

	attempts := make([]domain.DeliveryAttempt, 0, len(models))
	for i := range models {
		attempts = append(attempts, *attemptModelToDomain(&models[i]))
	}

	return attempts, nil
}
