package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/opsdesk/support-engine/internal/config"
	"github.com/opsdesk/support-engine/internal/domain"
	"github.com/opsdesk/support-engine/internal/notify"
	"github.com/opsdesk/support-engine/internal/repository"
)

// EscalationScanner sweeps open tickets and applies the SLA-breach policy:
// an Open ticket with no first response that has aged past the configured
// threshold is escalated once and handed to the escalation team.
type EscalationScanner struct {
	store      repository.TicketStore
	lease      repository.EscalationLease
	dispatcher notify.Dispatcher
	audit      *AuditService
	logger     *zap.Logger
	cfg        config.EscalationConfig
	now        func() time.Time
}

// NewEscalationScanner constructs the scanner.
func NewEscalationScanner(store repository.TicketStore, lease repository.EscalationLease, dispatcher notify.Dispatcher, audit *AuditService, logger *zap.Logger, cfg config.EscalationConfig) *EscalationScanner {
	return &EscalationScanner{
		store:      store,
		lease:      lease,
		dispatcher: dispatcher,
		audit:      audit,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// SetClock overrides the time source; intended for tests.
func (s *EscalationScanner) SetClock(clock func() time.Time) {
	s.now = clock
}

// Scan runs one sweep and returns the number of tickets escalated.
// Escalation is idempotent: the per-ticket lease plus the conditional
// escalated-flag update guarantee at-most-once escalation even with
// concurrent scanner instances.
func (s *EscalationScanner) Scan(ctx context.Context) (int, error) {
	open := domain.TicketStatusOpen
	tickets, err := s.store.List(ctx, repository.TicketFilter{Status: &open, Limit: 1000})
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-s.cfg.Threshold())
	escalated := 0
	for i := range tickets {
		ticket := &tickets[i]
		if !s.needsEscalation(ticket, cutoff) {
			continue
		}
		if s.escalate(ctx, ticket) {
			escalated++
		}
	}
	return escalated, nil
}

func (s *EscalationScanner) needsEscalation(ticket *domain.Ticket, cutoff time.Time) bool {
	return ticket.Status == domain.TicketStatusOpen &&
		ticket.FirstResponseAt == nil &&
		ticket.ClosedAt == nil &&
		!ticket.Escalated &&
		ticket.CreatedAt.Before(cutoff)
}

func (s *EscalationScanner) escalate(ctx context.Context, ticket *domain.Ticket) bool {
	acquired, err := s.lease.Acquire(ctx, ticket.ID)
	if err != nil {
		s.logger.Warn("escalation lease acquire failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return false
	}
	if !acquired {
		return false
	}
	defer s.lease.Release(ctx, ticket.ID)

	won, err := s.store.MarkEscalated(ctx, ticket.ID, s.cfg.Team, s.cfg.Level)
	if err != nil {
		s.logger.Warn("escalation update failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return false
	}
	if !won {
		// Another scanner escalated the ticket first.
		return false
	}

	s.logger.Info("ticket escalated",
		zap.String("ticket_id", ticket.ID),
		zap.String("team", s.cfg.Team),
		zap.Int("level", s.cfg.Level),
	)
	s.audit.Log(ctx, domain.AuthenticatedUser{ID: "system", Role: domain.RoleAdmin}, domain.AuditTicketEscalated, map[string]any{
		"ticket_id": ticket.ID,
		"team":      s.cfg.Team,
		"level":     s.cfg.Level,
	})
	s.dispatcher.Dispatch(ctx, notify.Event{
		Kind:     notify.KindTicketEscalated,
		TicketID: ticket.ID,
		Subject:  ticket.Subject,
		Status:   ticket.Status,
		Priority: ticket.Priority,
		Summary:  fmt.Sprintf("Ticket %q breached the response SLA and was escalated to %s", ticket.Subject, s.cfg.Team),
	})
	return true
}
