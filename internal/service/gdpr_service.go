package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/opsdesk/support-engine/internal/domain"
	"github.com/opsdesk/support-engine/internal/repository"
	apperrors "github.com/opsdesk/support-engine/pkg/util"
)

// GDPRService implements the confirmed-deletion workflow: users flag their
// tickets for deletion, admins review and confirm. There is no automatic
// time-based purge.
type GDPRService struct {
	store  repository.TicketStore
	audit  *AuditService
	logger *zap.Logger
}

// NewGDPRService constructs the service.
func NewGDPRService(store repository.TicketStore, audit *AuditService, logger *zap.Logger) *GDPRService {
	return &GDPRService{store: store, audit: audit, logger: logger}
}

// RequestDeletion soft-marks every ticket owned by the caller. Returns the
// IDs of tickets flagged.
func (g *GDPRService) RequestDeletion(ctx context.Context, user domain.AuthenticatedUser) ([]string, error) {
	userID := user.ID
	tickets, err := g.store.List(ctx, repository.TicketFilter{UserID: &userID, Limit: 1000})
	if err != nil {
		return nil, apperrors.NewDependencyError("ticket store", err)
	}

	flagged := make([]string, 0, len(tickets))
	for i := range tickets {
		ticket := &tickets[i]
		if ticket.DeletionRequested {
			flagged = append(flagged, ticket.ID)
			continue
		}
		ticket.DeletionRequested = true
		if err := g.store.Update(ctx, ticket, ticket.UpdatedAt); err != nil {
			if errors.Is(err, repository.ErrStaleTicket) || errors.Is(err, repository.ErrNotFound) {
				g.logger.Warn("skipping concurrently modified ticket during deletion request",
					zap.String("ticket_id", ticket.ID))
				continue
			}
			return nil, apperrors.NewDependencyError("ticket store", err)
		}
		flagged = append(flagged, ticket.ID)
	}

	g.audit.Log(ctx, user, domain.AuditDeletionRequested, map[string]any{"tickets": flagged})
	return flagged, nil
}

// ListDeletionRequests returns all tickets flagged for deletion.
func (g *GDPRService) ListDeletionRequests(ctx context.Context, admin domain.AuthenticatedUser) ([]domain.Ticket, error) {
	if !admin.IsAdmin() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	requested := true
	tickets, err := g.store.List(ctx, repository.TicketFilter{DeletionRequested: &requested, Limit: 1000})
	if err != nil {
		return nil, apperrors.NewDependencyError("ticket store", err)
	}
	return tickets, nil
}

// ConfirmDeletion hard-deletes every ticket owned by the given user.
// Returns the IDs of tickets removed.
func (g *GDPRService) ConfirmDeletion(ctx context.Context, admin domain.AuthenticatedUser, userID string) ([]string, error) {
	if !admin.IsAdmin() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	if userID == "" {
		return nil, apperrors.NewValidationError("userId required", nil)
	}

	tickets, err := g.store.List(ctx, repository.TicketFilter{UserID: &userID, Limit: 1000})
	if err != nil {
		return nil, apperrors.NewDependencyError("ticket store", err)
	}

	deleted := make([]string, 0, len(tickets))
	for _, ticket := range tickets {
		err := g.store.Delete(ctx, ticket.ID)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, apperrors.NewDependencyError("ticket store", err)
		}
		deleted = append(deleted, ticket.ID)
	}

	g.audit.Log(ctx, admin, domain.AuditDeletionConfirmed, map[string]any{
		"user_id": userID,
		"tickets": deleted,
	})
	return deleted, nil
}
