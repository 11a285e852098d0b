package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"landlordpay/server/internal/database"
	"landlordpay/server/internal/ledger"
	"landlordpay/server/internal/models"
)

const periodLayout = "2006-01"

// AccrualResult counts what one accrual run did.
type AccrualResult struct {
	Period  string `json:"period"`
	Charged int    `json:"charged"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
}

// Period formats t as a billing period (YYYY-MM, UTC).
func Period(t time.Time) string {
	return t.UTC().Format(periodLayout)
}

// AccrueRent adds each active tenant's rent to their balance for period. A tenant
// is charged at most once per period, so reruns are harmless.
func (s *Service) AccrueRent(ctx context.Context, period string) (AccrualResult, error) {
	if period == "" {
		period = Period(s.now())
	}
	if _, err := time.Parse(periodLayout, period); err != nil {
		return AccrualResult{}, fmt.Errorf("invalid period %q: %w", period, err)
	}

	ids, err := s.db.ListActiveTenantIDs(ctx)
	if err != nil {
		return AccrualResult{}, err
	}

	result := AccrualResult{Period: period}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		charged, err := s.chargeTenant(ctx, id, period)
		switch {
		case err != nil:
			result.Failed++
			s.logger.WithError(err).WithFields(logrus.Fields{
				"tenant_id": id,
				"period":    period,
			}).Error("Failed to accrue rent")
		case charged:
			result.Charged++
		default:
			result.Skipped++
		}
	}

	s.logger.WithFields(logrus.Fields{
		"period":  period,
		"charged": result.Charged,
		"skipped": result.Skipped,
		"failed":  result.Failed,
	}).Info("Rent accrual completed")
	return result, nil
}

// chargeTenant reports false when the tenant was archived or already charged.
func (s *Service) chargeTenant(ctx context.Context, tenantID, period string) (bool, error) {
	unlock := s.locks.Lock(tenantID)
	defer unlock()

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		var charged bool
		err := s.db.Transaction(ctx, func(tx *gorm.DB) error {
			tenant, err := database.LoadActiveTenant(tx, tenantID)
			if err != nil {
				return err
			}

			created, err := database.InsertRentCharge(tx, &models.RentCharge{
				TenantID: tenant.ID,
				Period:   period,
				Amount:   tenant.RentAmount,
			})
			if err != nil || !created {
				return err
			}

			expected := tenant.RowVersion
			tenant.Balance, tenant.PaymentStatus = ledger.Charge(tenant.Balance, tenant.RentAmount, tenant.RentAmount)
			ok, err := database.UpdateTenantLedgerIfVersion(tx, &tenant, expected)
			if err != nil {
				return err
			}
			if !ok {
				return errStale
			}
			charged = true
			return nil
		})
		switch {
		case errors.Is(err, errStale):
			continue
		case errors.Is(err, ledger.ErrNotFound):
			return false, nil
		case err != nil:
			return false, err
		}
		return charged, nil
	}
	return false, fmt.Errorf("tenant %s: %w", tenantID, ledger.ErrConflict)
}
