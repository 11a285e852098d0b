package notify

import (
	"context"

	"landlordpay/server/internal/database"
	"landlordpay/server/internal/models"
)

// LogSink persists notifications to the bounded notification table.
type LogSink struct {
	db   *database.Database
	keep int
}

func NewLogSink(db *database.Database, keep int) *LogSink {
	return &LogSink{db: db, keep: keep}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Send(ctx context.Context, n models.Notification) error {
	return s.db.SaveNotification(ctx, &n, s.keep)
}
