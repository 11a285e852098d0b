package database

import (
	"context"

	"landlordpay/server/internal/models"
)

// SaveNotification appends an event to the notification log and trims the log to
// the newest keep rows.
func (d *Database) SaveNotification(ctx context.Context, n *models.Notification, keep int) error {
	db := d.db.WithContext(ctx)
	if err := db.Create(n).Error; err != nil {
		return err
	}
	if keep <= 0 {
		return nil
	}

	return db.Exec(`
		DELETE FROM notifications
		WHERE id NOT IN (
			SELECT id FROM notifications ORDER BY id DESC LIMIT ?
		)
	`, keep).Error
}

// ListNotifications returns the newest notifications first.
func (d *Database) ListNotifications(ctx context.Context, limit int) ([]models.Notification, error) {
	notifications := []models.Notification{}
	query := d.db.WithContext(ctx).Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&notifications).Error
	return notifications, err
}
