package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentSuccess PaymentStatus = "success"
	PaymentPending PaymentStatus = "pending"
	PaymentFailed  PaymentStatus = "failed"
)

type PaymentMethod string

const (
	MethodManual PaymentMethod = "manual"
	MethodMpesa  PaymentMethod = "mpesa"
)

// Payment is an immutable ledger entry. Corrections are new entries.
type Payment struct {
	ID            string          `json:"id" gorm:"primaryKey;size:36"`
	TenantID      string          `json:"tenant_id" gorm:"index;not null"`
	UnitID        string          `json:"unit_id" gorm:"index;not null"`
	UnitLabel     string          `json:"unit_label" gorm:"not null"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"`
	BalanceAfter  decimal.Decimal `json:"balance_after" gorm:"type:decimal(12,2);not null"`
	IsFullPayment bool            `json:"is_full_payment"`
	Status        PaymentStatus   `json:"status" gorm:"type:varchar(16);not null"`
	Method        PaymentMethod   `json:"method" gorm:"type:varchar(16);not null"`
	ReceiptID     *string         `json:"receipt_id,omitempty" gorm:"uniqueIndex"`
	PaidAt        time.Time       `json:"paid_at" gorm:"index;not null"`
	CreatedAt     time.Time       `json:"created_at"`
}

// PaymentRecord is a payment joined with the names a payment history screen shows.
type PaymentRecord struct {
	Payment
	TenantName   string `json:"tenant_name"`
	PropertyName string `json:"property_name"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
