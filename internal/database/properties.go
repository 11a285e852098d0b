package database

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"landlordpay/server/internal/ledger"
	"landlordpay/server/internal/models"
	"landlordpay/server/internal/units"
)

// PropertyInput is what a landlord supplies when registering a property.
type PropertyInput struct {
	OwnerID     string
	Name        string
	Location    string
	Type        models.PropertyType
	NumUnits    int
	Layout      units.Layout
	DefaultRent decimal.Decimal
	UnitType    string
}

// NewProperty builds a property and its units from the layout. Bungalows ignore
// the floor layout and get NumUnits ground floor units. For flats a non-zero
// NumUnits must agree with the layout.
func NewProperty(in PropertyInput) (*models.Property, error) {
	layout := in.Layout
	switch in.Type {
	case models.PropertyTypeBungalow:
		layout = units.SingleStorey(in.NumUnits)
	case models.PropertyTypeFlat:
	default:
		return nil, fmt.Errorf("%w: unknown property type %q", units.ErrInvalidLayout, in.Type)
	}

	positions, err := layout.Generate()
	if err != nil {
		return nil, err
	}
	if in.NumUnits != 0 && in.NumUnits != len(positions) {
		return nil, fmt.Errorf("%w: layout has %d units but %d were declared", units.ErrInvalidLayout, len(positions), in.NumUnits)
	}
	if in.DefaultRent.IsNegative() {
		return nil, fmt.Errorf("%w: rent cannot be negative", units.ErrInvalidLayout)
	}

	unitType := in.UnitType
	if unitType == "" {
		unitType = "bedsitter"
	}

	p := &models.Property{
		OwnerID:       in.OwnerID,
		Name:          in.Name,
		Location:      in.Location,
		Type:          in.Type,
		NumUnits:      len(positions),
		NumFloors:     layout.Floors,
		UnitsPerFloor: layout.UnitsPerFloor,
		GroundUnits:   layout.GroundUnits,
		Units:         make([]models.Unit, len(positions)),
	}
	for i, pos := range positions {
		p.Units[i] = models.Unit{
			Label:    pos.Label,
			Type:     unitType,
			Rent:     in.DefaultRent,
			Floor:    pos.Floor,
			Position: pos.Position,
		}
	}
	return p, nil
}

func orderUnits(db *gorm.DB) *gorm.DB {
	return db.Order("floor ASC, position ASC")
}

// CreateProperty stores a property together with its units.
func (d *Database) CreateProperty(ctx context.Context, p *models.Property) error {
	return d.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return fmt.Errorf("failed to create property: %w", err)
		}
		return nil
	})
}

func (d *Database) GetProperty(ctx context.Context, id string) (*models.Property, error) {
	var p models.Property
	err := d.db.WithContext(ctx).Preload("Units", orderUnits).First(&p, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "property", id)
	}
	return &p, nil
}

// ListProperties returns properties, newest first, each with its active tenants.
// An empty ownerID lists every property.
func (d *Database) ListProperties(ctx context.Context, ownerID string) ([]models.PropertySummary, error) {
	query := d.db.WithContext(ctx).Preload("Units", orderUnits).Order("created_at DESC")
	if ownerID != "" {
		query = query.Where("owner_id = ?", ownerID)
	}

	var properties []models.Property
	if err := query.Find(&properties).Error; err != nil {
		return nil, err
	}
	if len(properties) == 0 {
		return []models.PropertySummary{}, nil
	}

	ids := make([]string, len(properties))
	for i, p := range properties {
		ids[i] = p.ID
	}

	var tenants []models.Tenant
	err := d.db.WithContext(ctx).
		Where("property_id IN ? AND is_archived = ?", ids, false).
		Order("unit_label ASC").
		Find(&tenants).Error
	if err != nil {
		return nil, err
	}

	byProperty := make(map[string][]models.Tenant, len(properties))
	for _, t := range tenants {
		byProperty[t.PropertyID] = append(byProperty[t.PropertyID], t)
	}

	summaries := make([]models.PropertySummary, len(properties))
	for i, p := range properties {
		summaries[i] = models.PropertySummary{Property: p, Tenants: byProperty[p.ID]}
		if summaries[i].Tenants == nil {
			summaries[i].Tenants = []models.Tenant{}
		}
	}
	return summaries, nil
}

// GetPropertyDetail returns the property with each unit's current tenant.
func (d *Database) GetPropertyDetail(ctx context.Context, id string) (*models.PropertyDetail, error) {
	p, err := d.GetProperty(ctx, id)
	if err != nil {
		return nil, err
	}

	var tenants []models.Tenant
	err = d.db.WithContext(ctx).
		Where("property_id = ? AND is_archived = ?", id, false).
		Find(&tenants).Error
	if err != nil {
		return nil, err
	}

	byUnit := make(map[string]models.Tenant, len(tenants))
	for _, t := range tenants {
		byUnit[t.UnitID] = t
	}

	detail := &models.PropertyDetail{Property: *p, Occupancy: make([]models.UnitOccupancy, len(p.Units))}
	for i, u := range p.Units {
		detail.Occupancy[i] = models.UnitOccupancy{Unit: u}
		if t, ok := byUnit[u.ID]; ok {
			detail.Occupancy[i].Tenant = &t
		}
	}
	detail.Units = nil
	return detail, nil
}

// DeleteProperty removes a property and its units. Properties with active tenants
// are kept so their ledger stays reachable.
func (d *Database) DeleteProperty(ctx context.Context, id string) error {
	return d.Transaction(ctx, func(tx *gorm.DB) error {
		var p models.Property
		if err := tx.First(&p, "id = ?", id).Error; err != nil {
			return notFound(err, "property", id)
		}

		var active int64
		err := tx.Model(&models.Tenant{}).
			Where("property_id = ? AND is_archived = ?", id, false).
			Count(&active).Error
		if err != nil {
			return err
		}
		if active > 0 {
			return fmt.Errorf("%w: %d", ErrPropertyOccupied, active)
		}

		if err := tx.Where("property_id = ?", id).Delete(&models.Unit{}).Error; err != nil {
			return err
		}
		return tx.Delete(&p).Error
	})
}

// UnitUpdate carries the optional unit fields a landlord can change.
type UnitUpdate struct {
	Rent *decimal.Decimal
	Type *string
}

// UpdateUnit changes a unit's rent or type. Tenants keep the rent snapshot taken
// when they were assigned.
func (d *Database) UpdateUnit(ctx context.Context, id string, update UnitUpdate) (*models.Unit, error) {
	var u models.Unit
	err := d.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.First(&u, "id = ?", id).Error; err != nil {
			return notFound(err, "unit", id)
		}

		changes := map[string]interface{}{}
		if update.Rent != nil {
			changes["rent"] = *update.Rent
		}
		if update.Type != nil {
			changes["type"] = *update.Type
		}
		if len(changes) == 0 {
			return nil
		}
		if err := tx.Model(&u).Updates(changes).Error; err != nil {
			return err
		}
		return tx.First(&u, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUnitByLabel resolves a label within a property. The label must fall inside the
// property's generated layout before the unit table is consulted.
func (d *Database) GetUnitByLabel(ctx context.Context, propertyID, label string) (*models.Unit, error) {
	p, err := d.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	return unitByLabel(d.db.WithContext(ctx), p, label)
}

func unitByLabel(db *gorm.DB, p *models.Property, label string) (*models.Unit, error) {
	pos, err := p.Layout().Locate(label)
	if err != nil {
		return nil, fmt.Errorf("unit %s in property %s: %v: %w", label, p.ID, err, ledger.ErrNotFound)
	}

	var u models.Unit
	err = db.Where("property_id = ? AND label = ?", p.ID, pos.Label).First(&u).Error
	if err != nil {
		return nil, notFound(err, "unit", pos.Label)
	}
	return &u, nil
}

// FindUnitTenant resolves a property id and unit label to the unit and the
// non-archived tenant occupying it.
func (d *Database) FindUnitTenant(ctx context.Context, propertyID, label string) (*models.Unit, *models.Tenant, error) {
	u, err := d.GetUnitByLabel(ctx, propertyID, label)
	if err != nil {
		return nil, nil, err
	}

	var t models.Tenant
	err = d.db.WithContext(ctx).
		Where("unit_id = ? AND is_archived = ?", u.ID, false).
		First(&t).Error
	if err != nil {
		return u, nil, notFound(err, "tenant for unit", u.Label)
	}
	return u, &t, nil
}
