package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsdesk/support-engine/internal/domain"
)

type postgresInAppNotificationStore struct {
	pool *pgxpool.Pool
}

// NewPostgresInAppNotificationStore instantiates the Postgres-backed
// in-app notification store.
func NewPostgresInAppNotificationStore(pool *pgxpool.Pool) InAppNotificationStore {
	return &postgresInAppNotificationStore{pool: pool}
}

func (r *postgresInAppNotificationStore) Append(ctx context.Context, notification *domain.InAppNotification) error {
	const query = `
        INSERT INTO in_app_notifications (user_id, ticket_id, title, body)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		notification.UserID,
		nullableID(notification.TicketID),
		notification.Title,
		notification.Body,
	).Scan(&notification.ID, &notification.CreatedAt)
}

func (r *postgresInAppNotificationStore) ListByUser(ctx context.Context, userID string, limit int) ([]domain.InAppNotification, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
        SELECT id, user_id, COALESCE(ticket_id::text, ''), title, body, read, created_at
        FROM in_app_notifications
        WHERE user_id=$1
        ORDER BY created_at DESC
        LIMIT $2`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.InAppNotification
	for rows.Next() {
		var n domain.InAppNotification
		if err := rows.Scan(&n.ID, &n.UserID, &n.TicketID, &n.Title, &n.Body, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func nullableID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
