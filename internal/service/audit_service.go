package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/opsdesk/support-engine/internal/domain"
	"github.com/opsdesk/support-engine/internal/repository"
)

// AuditService appends audit events best-effort: a failed append is logged
// locally and never surfaced to the caller or allowed to roll back the
// primary operation.
type AuditService struct {
	store  repository.AuditLogStore
	logger *zap.Logger
}

// NewAuditService constructs the service.
func NewAuditService(store repository.AuditLogStore, logger *zap.Logger) *AuditService {
	return &AuditService{store: store, logger: logger}
}

// Log records a state-changing action.
func (a *AuditService) Log(ctx context.Context, actor domain.AuthenticatedUser, action domain.AuditAction, details map[string]any) {
	if a == nil || a.store == nil {
		return
	}
	event := &domain.AuditLogEvent{
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Action:    action,
		Details:   details,
	}
	if err := a.store.Append(ctx, event); err != nil {
		a.logger.Warn("audit append failed",
			zap.String("action", string(action)),
			zap.String("actor_id", actor.ID),
			zap.Error(err),
		)
	}
}
