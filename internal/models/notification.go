package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const NotificationPayment = "paymentNotification"

// Notification is a persisted event shown in the notification log and pushed to
// connected clients.
type Notification struct {
	ID         uint            `json:"id" gorm:"primaryKey;autoIncrement"`
	Type       string          `json:"type" gorm:"type:varchar(32);not null"`
	Message    string          `json:"message" gorm:"not null"`
	TenantName string          `json:"tenantName"`
	Phone      string          `json:"-" gorm:"-"`
	UnitLabel  string          `json:"unitLabel"`
	Amount     decimal.Decimal `json:"amount" gorm:"type:decimal(12,2)"`
	NewBalance decimal.Decimal `json:"newBalance" gorm:"type:decimal(12,2)"`
	Timestamp  time.Time       `json:"timestamp" gorm:"index;not null"`
}
