package repository

import (
	"context"
	"errors"
	"time"

	"github.com/opsdesk/support-engine/internal/domain"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrStaleTicket is returned when an update loses an optimistic-concurrency
// check against updated_at.
var ErrStaleTicket = errors.New("ticket modified concurrently")

// TicketFilter captures ticket listing parameters.
type TicketFilter struct {
	OrganizationID    *string
	UserID            *string
	AssignedTo        *string
	Status            *domain.TicketStatus
	Priority          *domain.TicketPriority
	Subject           *string
	Tag               *string
	CreatedFrom       *time.Time
	CreatedTo         *time.Time
	DeletionRequested *bool
	Limit             int
	Offset            int
}

// TicketStore encapsulates ticket persistence. Implementations key records
// by ticket ID and support the filtered queries the engine needs.
type TicketStore interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// Update persists the ticket only if the stored updated_at still equals
	// expectedUpdatedAt; otherwise it returns ErrStaleTicket. On success the
	// ticket's UpdatedAt is refreshed in place.
	Update(ctx context.Context, ticket *domain.Ticket, expectedUpdatedAt time.Time) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// MarkEscalated conditionally flips the escalation flag. It reports false
	// when the ticket was already escalated, guaranteeing at-most-once
	// escalation under concurrent scanners.
	MarkEscalated(ctx context.Context, id, team string, level int) (bool, error)
}

// AuditLogStore persists append-only audit events.
type AuditLogStore interface {
	Append(ctx context.Context, event *domain.AuditLogEvent) error
}

// InAppNotificationStore persists notifications for in-product display.
type InAppNotificationStore interface {
	Append(ctx context.Context, notification *domain.InAppNotification) error
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.InAppNotification, error)
}
