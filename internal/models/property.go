package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"landlordpay/server/internal/units"
)

type PropertyType string

const (
	PropertyTypeFlat     PropertyType = "flat"
	PropertyTypeBungalow PropertyType = "bungalow"
)

type Property struct {
	ID            string       `json:"id" gorm:"primaryKey;size:36"`
	OwnerID       string       `json:"owner_id" gorm:"index"`
	Name          string       `json:"name" gorm:"not null"`
	Location      string       `json:"location" gorm:"not null"`
	Type          PropertyType `json:"type" gorm:"type:varchar(16);not null"`
	NumUnits      int          `json:"num_units" gorm:"not null"`
	NumFloors     int          `json:"num_floors" gorm:"not null"`
	UnitsPerFloor int          `json:"units_per_floor" gorm:"not null"`
	GroundUnits   int          `json:"ground_units"`
	Units         []Unit       `json:"units,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Unit is a rentable space. The label is a display attribute; tenants and payments
// reference the unit by ID.
type Unit struct {
	ID         string          `json:"id" gorm:"primaryKey;size:36"`
	PropertyID string          `json:"property_id" gorm:"uniqueIndex:idx_units_property_label;not null"`
	Label      string          `json:"label" gorm:"uniqueIndex:idx_units_property_label;not null"`
	Type       string          `json:"type" gorm:"default:bedsitter"`
	Rent       decimal.Decimal `json:"rent" gorm:"type:decimal(12,2);not null"`
	Floor      int             `json:"floor" gorm:"not null"`
	Position   int             `json:"position" gorm:"not null"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// UnitOccupancy pairs a unit with its current tenant, if any.
type UnitOccupancy struct {
	Unit
	Tenant *Tenant `json:"tenant"`
}

// PropertyDetail is a property with each unit's occupancy.
type PropertyDetail struct {
	Property
	Occupancy []UnitOccupancy `json:"occupancy"`
}

// PropertySummary is a property with its active tenants, used for listings.
type PropertySummary struct {
	Property
	Tenants []Tenant `json:"tenants"`
}

type RentSummary struct {
	TotalProperties    int64           `json:"total_properties"`
	TotalTenants       int64           `json:"total_tenants"`
	TotalUnits         int64           `json:"total_units"`
	Occupied           int64           `json:"occupied"`
	Vacant             int64           `json:"vacant"`
	TotalDue           decimal.Decimal `json:"total_due"`
	CollectedThisMonth decimal.Decimal `json:"collected_this_month"`
	TotalArrears       decimal.Decimal `json:"total_arrears"`
	TotalPayments      decimal.Decimal `json:"total_payments"`
}

type MonthlyTotal struct {
	Month     string          `json:"month"`
	Collected decimal.Decimal `json:"collected"`
}

// Layout returns the floor layout the property's unit labels were generated from.
func (p *Property) Layout() units.Layout {
	return units.Layout{Floors: p.NumFloors, UnitsPerFloor: p.UnitsPerFloor, GroundUnits: p.GroundUnits}
}

func (p *Property) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

func (u *Unit) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
