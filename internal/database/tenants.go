package database

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"landlordpay/server/internal/ledger"
	"landlordpay/server/internal/models"
)

// CreateTenant assigns a tenant to a unit. The unit must belong to the tenant's
// property and must not already have an active tenant. When openingPeriod is set,
// the opening balance counts as that period's rent and accrual skips it.
func (d *Database) CreateTenant(ctx context.Context, t *models.Tenant, openingPeriod string) error {
	return d.Transaction(ctx, func(tx *gorm.DB) error {
		var u models.Unit
		err := tx.Where("id = ? AND property_id = ?", t.UnitID, t.PropertyID).First(&u).Error
		if err != nil {
			return notFound(err, "unit", t.UnitID)
		}
		t.UnitLabel = u.Label

		if err := tx.Create(t).Error; err != nil {
			if IsUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrUnitOccupied, u.Label)
			}
			return fmt.Errorf("failed to create tenant: %w", err)
		}

		if openingPeriod == "" {
			return nil
		}
		_, err = InsertRentCharge(tx, &models.RentCharge{
			TenantID: t.ID,
			Period:   openingPeriod,
			Amount:   t.RentAmount,
		})
		return err
	})
}

// GetTenant returns a tenant, archived or not.
func (d *Database) GetTenant(ctx context.Context, id string) (*models.Tenant, error) {
	var t models.Tenant
	if err := d.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "tenant", id)
	}
	return &t, nil
}

// TenantFilter narrows ListTenants. Zero values match everything except that
// archived tenants are only listed when Archived is true.
type TenantFilter struct {
	PropertyID string
	Archived   bool
	Statuses   []ledger.Status
}

// ListTenants lists tenants matching the filter.
func (d *Database) ListTenants(ctx context.Context, filter TenantFilter) ([]models.Tenant, error) {
	query := d.db.WithContext(ctx).Where("is_archived = ?", filter.Archived)
	if filter.PropertyID != "" {
		query = query.Where("property_id = ?", filter.PropertyID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("payment_status IN ?", filter.Statuses)
	}

	tenants := []models.Tenant{}
	if err := query.Order("property_id, unit_label").Find(&tenants).Error; err != nil {
		return nil, err
	}
	return tenants, nil
}

// ListActiveTenantIDs returns the ids of every non-archived tenant.
func (d *Database) ListActiveTenantIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := d.db.WithContext(ctx).Model(&models.Tenant{}).
		Where("is_archived = ?", false).
		Order("created_at").
		Pluck("id", &ids).Error
	return ids, err
}

// ArchiveTenant soft-deletes a tenant, freeing the unit while keeping the ledger.
func (d *Database) ArchiveTenant(ctx context.Context, id string) (*models.Tenant, error) {
	var t models.Tenant
	err := d.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		t, err = LoadActiveTenant(tx, id)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		res := tx.Model(&models.Tenant{}).
			Where("id = ? AND row_version = ?", id, t.RowVersion).
			Updates(map[string]interface{}{
				"is_archived": true,
				"archived_at": now,
				"row_version": t.RowVersion + 1,
				"updated_at":  now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ledger.ErrConflict
		}
		t.IsArchived = true
		t.ArchivedAt = &now
		t.RowVersion++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ContactUpdate holds the tenant fields that can change outside the ledger.
// Nil fields are left as they are.
type ContactUpdate struct {
	Name  *string
	Email *string
	Phone *string
}

// UpdateTenantContact changes contact details of an active tenant. Balance and
// status are never touched here; they only move through payments and accrual.
func (d *Database) UpdateTenantContact(ctx context.Context, id string, update ContactUpdate) (*models.Tenant, error) {
	var t models.Tenant
	err := d.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		t, err = LoadActiveTenant(tx, id)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		changes := map[string]interface{}{
			"row_version": t.RowVersion + 1,
			"updated_at":  now,
		}
		if update.Name != nil {
			changes["name"] = *update.Name
			t.Name = *update.Name
		}
		if update.Email != nil {
			changes["email"] = *update.Email
			t.Email = *update.Email
		}
		if update.Phone != nil {
			changes["phone"] = *update.Phone
			t.Phone = *update.Phone
		}

		res := tx.Model(&models.Tenant{}).
			Where("id = ? AND row_version = ?", id, t.RowVersion).
			Updates(changes)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ledger.ErrConflict
		}
		t.RowVersion++
		t.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListArrears returns active tenants that still owe rent, largest balance first.
func (d *Database) ListArrears(ctx context.Context, propertyID string) ([]models.Tenant, error) {
	query := d.db.WithContext(ctx).Where("is_archived = ? AND payment_status <> ?", false, ledger.StatusPaid)
	if propertyID != "" {
		query = query.Where("property_id = ?", propertyID)
	}

	tenants := []models.Tenant{}
	if err := query.Find(&tenants).Error; err != nil {
		return nil, err
	}
	// balance is stored as TEXT, so order in Go rather than in SQL
	sort.SliceStable(tenants, func(i, j int) bool {
		return tenants[i].Balance.GreaterThan(tenants[j].Balance)
	})
	return tenants, nil
}

// LoadActiveTenant reads a non-archived tenant inside a transaction.
func LoadActiveTenant(tx *gorm.DB, id string) (models.Tenant, error) {
	var t models.Tenant
	err := tx.Where("id = ? AND is_archived = ?", id, false).First(&t).Error
	if err != nil {
		return models.Tenant{}, notFound(err, "tenant", id)
	}
	return t, nil
}

// UpdateTenantLedgerIfVersion writes balance and status only when the stored row
// version still equals expected. It reports whether the row was updated.
func UpdateTenantLedgerIfVersion(tx *gorm.DB, t *models.Tenant, expected int64) (bool, error) {
	res := tx.Model(&models.Tenant{}).
		Where("id = ? AND row_version = ? AND is_archived = ?", t.ID, expected, false).
		Updates(map[string]interface{}{
			"balance":        t.Balance,
			"payment_status": t.PaymentStatus,
			"row_version":    expected + 1,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected != 1 {
		return false, nil
	}
	t.RowVersion = expected + 1
	return true, nil
}
