package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vibast-solutions/ms-go-mailinglist/app/entity"
)

type SubscriberRepository struct {
	db *sql.DB
}

// NewSubscriberRepository constructs a read-only repository over the subscribers table.
func NewSubscriberRepository(db *sql.DB) *SubscriberRepository {
	return &SubscriberRepository{db: db}
}

// ListConfirmed returns every confirmed subscriber. An empty list is not an error.
func (r *SubscriberRepository) ListConfirmed(ctx context.Context) ([]entity.Subscriber, error) {
	const query = `
		SELECT email, code
		FROM subscribers
		WHERE confirmed = 1
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query confirmed subscribers: %w", err)
	}
	defer rows.Close()

	var subscribers []entity.Subscriber
	for rows.Next() {
		s := entity.Subscriber{Confirmed: true}
		if err := rows.Scan(&s.Email, &s.Code); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		subscribers = append(subscribers, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscribers: %w", err)
	}
	return subscribers, nil
}
