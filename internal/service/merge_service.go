package service

import (
	"context"
	"strings"
	"time"

	"github.com/opsdesk/support-engine/internal/domain"
	"github.com/opsdesk/support-engine/internal/repository"
	apperrors "github.com/opsdesk/support-engine/pkg/util"
)

// DuplicateMergeService detects candidate duplicate tickets and merges two
// tickets into one canonical ticket.
type DuplicateMergeService struct {
	store repository.TicketStore
	audit *AuditService
}

// NewDuplicateMergeService constructs the service.
func NewDuplicateMergeService(store repository.TicketStore, audit *AuditService) *DuplicateMergeService {
	return &DuplicateMergeService{store: store, audit: audit}
}

// FindDuplicates returns candidate duplicates of a prospective ticket. The
// match is intentionally loose (recall-favoring): a case-insensitive subject
// match, or the candidate's message containing the new message as a
// case-insensitive substring.
func (m *DuplicateMergeService) FindDuplicates(ctx context.Context, admin domain.AuthenticatedUser, subject, message string) ([]domain.Ticket, error) {
	if !admin.IsAdmin() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	subject = strings.TrimSpace(subject)
	message = strings.TrimSpace(message)
	if subject == "" && message == "" {
		return nil, apperrors.NewValidationError("subject or message required", nil)
	}

	candidates, err := m.store.List(ctx, repository.TicketFilter{Limit: 1000})
	if err != nil {
		return nil, apperrors.NewDependencyError("ticket store", err)
	}

	lowerSubject := strings.ToLower(subject)
	lowerMessage := strings.ToLower(message)

	var duplicates []domain.Ticket
	for _, candidate := range candidates {
		if candidate.MergedInto != nil {
			continue
		}
		subjectMatch := lowerSubject != "" && strings.ToLower(candidate.Subject) == lowerSubject
		messageMatch := lowerMessage != "" && strings.Contains(strings.ToLower(candidate.Message), lowerMessage)
		if subjectMatch || messageMatch {
			duplicates = append(duplicates, candidate)
		}
	}
	return duplicates, nil
}

// Merge folds the duplicate ticket into the primary: message histories are
// concatenated primary-first, tag sets unioned, internal notes joined with a
// separator. The duplicate is closed with mergedInto set. The two writes are
// independent; the operation is safe to retry because a duplicate already
// pointing at the primary is left alone.
func (m *DuplicateMergeService) Merge(ctx context.Context, admin domain.AuthenticatedUser, primaryID, duplicateID string) (*domain.Ticket, error) {
	if !admin.IsAdmin() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	if primaryID == duplicateID {
		return nil, apperrors.NewValidationError("cannot merge a ticket into itself", nil)
	}

	primary, err := m.fetch(ctx, primaryID)
	if err != nil {
		return nil, err
	}
	duplicate, err := m.fetch(ctx, duplicateID)
	if err != nil {
		return nil, err
	}

	if primary.MergedInto != nil {
		return nil, apperrors.NewConflict("primary ticket is itself merged", map[string]any{"merged_into": *primary.MergedInto})
	}
	if duplicate.MergedInto != nil {
		if *duplicate.MergedInto == primaryID {
			// Retry of a partially completed merge; nothing left to do.
			return primary, nil
		}
		return nil, apperrors.NewConflict("duplicate ticket already merged elsewhere", map[string]any{"merged_into": *duplicate.MergedInto})
	}

	primary.Messages = append(primary.Messages, duplicate.Messages...)
	primary.Tags = unionTags(primary.Tags, duplicate.Tags)
	primary.InternalNotes = joinNotes(primary.InternalNotes, duplicate.InternalNotes)

	if err := m.update(ctx, primary); err != nil {
		return nil, err
	}

	now := time.Now()
	duplicate.Status = domain.TicketStatusClosed
	duplicate.ClosedAt = &now
	duplicate.MergedInto = &primary.ID
	if err := m.update(ctx, duplicate); err != nil {
		return nil, err
	}

	m.audit.Log(ctx, admin, domain.AuditTicketMerged, map[string]any{
		"primary_id":   primary.ID,
		"duplicate_id": duplicate.ID,
	})
	return primary, nil
}

func (m *DuplicateMergeService) fetch(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := m.store.GetByID(ctx, ticketID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.NewDependencyError("ticket store", err)
	}
	return ticket, nil
}

func (m *DuplicateMergeService) update(ctx context.Context, ticket *domain.Ticket) error {
	if err := m.store.Update(ctx, ticket, ticket.UpdatedAt); err != nil {
		if err == repository.ErrStaleTicket {
			return apperrors.NewConflict("ticket was modified concurrently; retry the merge", map[string]any{"ticket_id": ticket.ID})
		}
		return apperrors.NewDependencyError("ticket store", err)
	}
	return nil
}

func unionTags(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	result := make([]string, 0, len(a)+len(b))
	for _, tag := range append(append([]string{}, a...), b...) {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		result = append(result, tag)
	}
	return result
}

func joinNotes(a, b string) string {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "\n---\n" + b
	}
}
