package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"landlordpay/server/internal/ledger"
	"landlordpay/server/internal/models"
)

// ReceiptExists reports whether a payment with the given gateway receipt was recorded.
func ReceiptExists(tx *gorm.DB, receiptID string) (bool, error) {
	var count int64
	err := tx.Model(&models.Payment{}).Where("receipt_id = ?", receiptID).Count(&count).Error
	return count > 0, err
}

// HasReceipt is ReceiptExists outside a transaction.
func (d *Database) HasReceipt(ctx context.Context, receiptID string) (bool, error) {
	return ReceiptExists(d.db.WithContext(ctx), receiptID)
}

// InsertPayment appends a ledger entry. A receipt that is already recorded is
// reported as ledger.ErrDuplicateReceipt.
func InsertPayment(tx *gorm.DB, p *models.Payment) error {
	if err := tx.Create(p).Error; err != nil {
		if IsUniqueViolation(err) && p.ReceiptID != nil {
			return fmt.Errorf("receipt %s: %w", *p.ReceiptID, ledger.ErrDuplicateReceipt)
		}
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

// ListPayments returns the payment history, newest first, with tenant and property names.
func (d *Database) ListPayments(ctx context.Context, limit int) ([]models.PaymentRecord, error) {
	records := []models.PaymentRecord{}
	query := d.db.WithContext(ctx).
		Table("payments").
		Select("payments.*, tenants.name AS tenant_name, properties.name AS property_name").
		Joins("LEFT JOIN tenants ON tenants.id = payments.tenant_id").
		Joins("LEFT JOIN properties ON properties.id = tenants.property_id").
		Order("payments.paid_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// ListTenantPayments returns a tenant's statement, newest first.
func (d *Database) ListTenantPayments(ctx context.Context, tenantID string) ([]models.Payment, error) {
	payments := []models.Payment{}
	err := d.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("paid_at DESC").
		Find(&payments).Error
	return payments, err
}

// InsertRentCharge records rent for a period. It reports false when the tenant was
// already charged for that period.
func InsertRentCharge(tx *gorm.DB, c *models.RentCharge) (bool, error) {
	if err := tx.Create(c).Error; err != nil {
		if IsUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert rent charge: %w", err)
	}
	return true, nil
}

// ListUnitPayments returns every payment made against a unit across tenancies, newest first.
func (d *Database) ListUnitPayments(ctx context.Context, unitID string) ([]models.Payment, error) {
	payments := []models.Payment{}
	err := d.db.WithContext(ctx).
		Where("unit_id = ?", unitID).
		Order("paid_at DESC").
		Find(&payments).Error
	return payments, err
}
