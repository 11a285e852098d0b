package database

import (
	"fmt"

	"landlordpay/server/internal/models"
)

func (d *Database) RunMigrations() error {
	err := d.db.AutoMigrate(
		&models.Property{},
		&models.Unit{},
		&models.Tenant{},
		&models.Payment{},
		&models.RentCharge{},
		&models.Notification{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	// Payment history screens sort by date per tenant
	err = d.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_payments_tenant_paid_at
		ON payments(tenant_id, paid_at);
	`).Error
	if err != nil {
		return fmt.Errorf("failed to create payment index: %w", err)
	}

	return nil
}
