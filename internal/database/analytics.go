package database

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"landlordpay/server/internal/models"
)

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func sum(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// GetRentSummary aggregates occupancy and money totals across all properties.
// Money is summed in Go so SQLite's floating point SUM never touches it.
func (d *Database) GetRentSummary(ctx context.Context, now time.Time) (models.RentSummary, error) {
	db := d.db.WithContext(ctx)
	var stats models.RentSummary

	if err := db.Model(&models.Property{}).Count(&stats.TotalProperties).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&models.Unit{}).Count(&stats.TotalUnits).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&models.Tenant{}).Where("is_archived = ?", false).Count(&stats.TotalTenants).Error; err != nil {
		return stats, err
	}
	stats.Occupied = stats.TotalTenants
	stats.Vacant = stats.TotalUnits - stats.Occupied
	if stats.Vacant < 0 {
		stats.Vacant = 0
	}

	var rents, balances, collected, all []decimal.Decimal
	if err := db.Model(&models.Tenant{}).Where("is_archived = ?", false).Pluck("rent_amount", &rents).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&models.Tenant{}).Where("is_archived = ? AND balance > 0", false).Pluck("balance", &balances).Error; err != nil {
		return stats, err
	}

	start := monthStart(now.UTC())
	err := db.Model(&models.Payment{}).
		Where("status = ? AND paid_at >= ? AND paid_at < ?", models.PaymentSuccess, start, start.AddDate(0, 1, 0)).
		Pluck("amount", &collected).Error
	if err != nil {
		return stats, err
	}
	if err := db.Model(&models.Payment{}).Where("status = ?", models.PaymentSuccess).Pluck("amount", &all).Error; err != nil {
		return stats, err
	}

	stats.TotalDue = sum(rents)
	stats.TotalArrears = sum(balances)
	stats.CollectedThisMonth = sum(collected)
	stats.TotalPayments = sum(all)
	return stats, nil
}

// GetPaymentsTrend returns the amount collected in each of the last months
// calendar months, oldest first, including the current month.
func (d *Database) GetPaymentsTrend(ctx context.Context, now time.Time, months int) ([]models.MonthlyTotal, error) {
	if months <= 0 {
		months = 6
	}

	current := monthStart(now.UTC())
	first := current.AddDate(0, -(months - 1), 0)

	var payments []models.Payment
	err := d.db.WithContext(ctx).
		Select("amount", "paid_at").
		Where("status = ? AND paid_at >= ? AND paid_at < ?", models.PaymentSuccess, first, current.AddDate(0, 1, 0)).
		Find(&payments).Error
	if err != nil {
		return nil, err
	}

	trend := make([]models.MonthlyTotal, months)
	index := make(map[string]int, months)
	for i := 0; i < months; i++ {
		key := first.AddDate(0, i, 0).Format("2006-01")
		trend[i] = models.MonthlyTotal{Month: key, Collected: decimal.Zero}
		index[key] = i
	}
	for _, p := range payments {
		if i, ok := index[p.PaidAt.UTC().Format("2006-01")]; ok {
			trend[i].Collected = trend[i].Collected.Add(p.Amount)
		}
	}
	return trend, nil
}
