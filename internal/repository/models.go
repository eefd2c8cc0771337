package repository

import (
	"time"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
)

// DeliveryAttemptModel is the persistence model for the delivery_attempts table.
// It stores status metadata only; message bodies and destinations never reach it.
type DeliveryAttemptModel struct {
	ID                string               `gorm:"type:uuid;primaryKey"`
	DispatchID        string               `gorm:"type:varchar(36);not null"`
	Provider          domain.Provider      `gorm:"type:varchar(16);not null"`
	AttemptNumber     int                  `gorm:"not null"`
	Status            domain.OutcomeStatus `gorm:"type:varchar(32);not null"`
	HTTPStatus        *int                 `gorm:"type:int"`
	ProviderMessageID *string              `gorm:"type:varchar(255)"`
	Error             *string              `gorm:"type:text"`
	CreatedAt         time.Time
}

func (DeliveryAttemptModel) TableName() string {
	return "delivery_attempts"
}

func attemptModelFromDomain(a *domain.DeliveryAttempt) *DeliveryAttemptModel {
	if a == nil {
		return nil
	}

	return &DeliveryAttemptModel{
		ID:                a.ID,
		DispatchID:        a.DispatchID,
		Provider:          a.Provider,
		AttemptNumber:     a.AttemptNumber,
		Status:            a.Status,
		HTTPStatus:        a.HTTPStatus,
		ProviderMessageID: a.ProviderMessageID,
		Error:             a.Error,
		CreatedAt:         a.CreatedAt,
	}
}

func attemptModelToDomain(m *DeliveryAttemptModel) *domain.DeliveryAttempt {
	if m == nil {
		return nil
	}

	return &domain.DeliveryAttempt{
		ID:                m.ID,
		DispatchID:        m.DispatchID,
		Provider:          m.Provider,
		AttemptNumber:     m.AttemptNumber,
		Status:            m.Status,
		HTTPStatus:        m.HTTPStatus,
		ProviderMessageID: m.ProviderMessageID,
		Error:             m.Error,
		CreatedAt:         m.CreatedAt,
	}
}
