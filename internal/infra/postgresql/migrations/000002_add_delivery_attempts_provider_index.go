package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func addDeliveryAttemptsProviderIndex() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_add_delivery_attempts_provider_index",
		Migrate: func(tx *gorm.DB) error {
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_delivery_attempts_provider_created ON delivery_attempts (provider, status, created_at)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec(`DROP INDEX IF EXISTS idx_delivery_attempts_provider_created`).Error
		},
	}
}
