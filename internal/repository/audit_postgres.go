package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsdesk/support-engine/internal/domain"
)

type postgresAuditLogStore struct {
	pool *pgxpool.Pool
}

// NewPostgresAuditLogStore instantiates the Postgres-backed audit log.
func NewPostgresAuditLogStore(pool *pgxpool.Pool) AuditLogStore {
	return &postgresAuditLogStore{pool: pool}
}

func (r *postgresAuditLogStore) Append(ctx context.Context, event *domain.AuditLogEvent) error {
	const query = `
        INSERT INTO audit_log (actor_id, actor_role, action, details)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		event.ActorID,
		event.ActorRole,
		event.Action,
		event.Details,
	).Scan(&event.ID, &event.CreatedAt)
}
