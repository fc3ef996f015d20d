package repository

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-mailinglist/app/entity"
)

const maxLastErrorLen = 1024

type DeliveryLogRepository struct {
	db *sql.DB
}

// NewDeliveryLogRepository constructs a repository backed by MySQL.
func NewDeliveryLogRepository(db *sql.DB) *DeliveryLogRepository {
	return &DeliveryLogRepository{db: db}
}

// Record upserts the outcome for a stream message. Replays of the same
// message overwrite the previous row.
func (r *DeliveryLogRepository) Record(ctx context.Context, rec entity.DeliveryRecord) error {
	const query = `
		INSERT INTO delivery_log (message_id, kind, recipient, status, attempts, last_error)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			status = VALUES(status),
			attempts = VALUES(attempts),
			last_error = VALUES(last_error)
	`
	_, err := r.db.ExecContext(ctx, query, rec.MessageID, rec.Kind, rec.Recipient, rec.Status, rec.Attempts, truncate(rec.LastError, maxLastErrorLen))
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
