package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"landlordpay/server/internal/ledger"
)

type Tenant struct {
	ID            string          `json:"id" gorm:"primaryKey;size:36"`
	PropertyID    string          `json:"property_id" gorm:"index;not null"`
	UnitID        string          `json:"unit_id" gorm:"not null;uniqueIndex:idx_tenants_active_unit,where:is_archived = 0"`
	UnitLabel     string          `json:"unit_label" gorm:"not null"`
	Name          string          `json:"name" gorm:"not null"`
	Email         string          `json:"email"`
	Phone         string          `json:"phone"`
	RentAmount    decimal.Decimal `json:"rent_amount" gorm:"type:decimal(12,2);not null"`
	Balance       decimal.Decimal `json:"balance" gorm:"type:decimal(12,2);not null"`
	PaymentStatus ledger.Status   `json:"payment_status" gorm:"type:varchar(16);not null;default:unpaid"`
	IsArchived    bool            `json:"is_archived" gorm:"not null;default:false;index"`
	ArchivedAt    *time.Time      `json:"archived_at,omitempty"`
	RowVersion    int64           `json:"row_version" gorm:"not null;default:1"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// RentCharge records one accrual of rent for a billing period (YYYY-MM).
type RentCharge struct {
	ID        uint            `json:"id" gorm:"primaryKey;autoIncrement"`
	TenantID  string          `json:"tenant_id" gorm:"uniqueIndex:idx_rent_charges_tenant_period;not null"`
	Period    string          `json:"period" gorm:"uniqueIndex:idx_rent_charges_tenant_period;size:7;not null"`
	Amount    decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"`
	CreatedAt time.Time       `json:"created_at"`
}

func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
