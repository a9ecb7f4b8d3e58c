package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/opsdesk/support-engine/internal/advisor"
	"github.com/opsdesk/support-engine/internal/config"
	"github.com/opsdesk/support-engine/internal/domain"
	"github.com/opsdesk/support-engine/internal/forum"
	"github.com/opsdesk/support-engine/internal/notify"
	"github.com/opsdesk/support-engine/internal/repository"
	apperrors "github.com/opsdesk/support-engine/pkg/util"
)

// LifecycleEngine owns the ticket state machine, authorization rules, and
// the composition of store, advisor, forum, notification, and audit
// collaborators for every ticket operation.
type LifecycleEngine struct {
	store      repository.TicketStore
	advisor    advisor.Advisor
	forum      forum.Client
	dispatcher notify.Dispatcher
	audit      *AuditService
	logger     *zap.Logger
	advisorCfg config.AdvisorConfig
	now        func() time.Time
}

// LifecycleDependencies bundles engine collaborators.
type LifecycleDependencies struct {
	Store      repository.TicketStore
	Advisor    advisor.Advisor
	Forum      forum.Client
	Dispatcher notify.Dispatcher
	Audit      *AuditService
	Logger     *zap.Logger
	AdvisorCfg config.AdvisorConfig
}

// NewLifecycleEngine constructs the engine.
func NewLifecycleEngine(deps LifecycleDependencies) *LifecycleEngine {
	return &LifecycleEngine{
		store:      deps.Store,
		advisor:    deps.Advisor,
		forum:      deps.Forum,
		dispatcher: deps.Dispatcher,
		audit:      deps.Audit,
		logger:     deps.Logger,
		advisorCfg: deps.AdvisorCfg,
		now:        time.Now,
	}
}

// SetClock overrides the time source; intended for tests.
func (e *LifecycleEngine) SetClock(clock func() time.Time) {
	e.now = clock
}

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:      {domain.TicketStatusPending, domain.TicketStatusClosed, domain.TicketStatusConverted},
	domain.TicketStatusPending:   {domain.TicketStatusOpen, domain.TicketStatusClosed, domain.TicketStatusConverted},
	domain.TicketStatusClosed:    {},
	domain.TicketStatusConverted: {},
}

func isValidTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Subject  string
	Message  string
	Priority domain.TicketPriority
	Tags     []string
}

// CreateTicket opens a new ticket for the requester. The advisor is
// consulted synchronously; its failure never blocks creation. AI
// suggestions are attached but the ticket always remains Open.
func (e *LifecycleEngine) CreateTicket(ctx context.Context, requester domain.AuthenticatedUser, input TicketCreateInput) (*domain.Ticket, error) {
	if requester.OrganizationID == "" {
		return nil, apperrors.NewValidationError("requester must belong to an organization", nil)
	}
	subject := strings.TrimSpace(input.Subject)
	message := strings.TrimSpace(input.Message)
	if subject == "" || message == "" {
		return nil, apperrors.NewValidationError("subject and message required", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !domain.ValidPriority(priority) {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": priority})
	}

	ticket := &domain.Ticket{
		OrganizationID: requester.OrganizationID,
		UserID:         requester.ID,
		UserEmail:      requester.Email,
		DisplayName:    requester.DisplayName,
		Subject:        subject,
		Message:        message,
		Messages:       []string{message},
		Status:         domain.TicketStatusOpen,
		Priority:       priority,
		Tags:           uniqueTags(input.Tags),
	}

	suppressed := false
	suggestion, err := e.advisor.Suggest(ctx, subject, message)
	if err != nil {
		e.logger.Warn("advisor unavailable; creating ticket without suggestion",
			zap.String("user_id", requester.ID), zap.Error(err))
	} else if suggestion != nil && strings.TrimSpace(suggestion.Answer) != "" {
		ticket.AISuggestionProvided = true
		ticket.AISuggestedAnswer = suggestion.Answer
		ticket.AISuggestionConfidence = advisor.ClampConfidence(suggestion.Confidence)
		// Review flag only; never changes ticket status.
		ticket.AINeedsHumanReview = suggestion.ShouldEscalate
		suppressed = advisor.SuppressAdminNotification(
			suggestion.AutoAnswered,
			ticket.AISuggestionConfidence,
			e.advisorCfg.SuppressionConfidenceThreshold,
		)
	}

	if err := e.store.Create(ctx, ticket); err != nil {
		return nil, apperrors.NewDependencyError("ticket store", err)
	}

	e.audit.Log(ctx, requester, domain.AuditTicketCreated, map[string]any{
		"ticket_id": ticket.ID,
		"subject":   ticket.Subject,
		"priority":  ticket.Priority,
	})
	if !suppressed {
		e.dispatcher.Dispatch(ctx, notify.Event{
			Kind:     notify.KindTicketCreated,
			TicketID: ticket.ID,
			Subject:  ticket.Subject,
			Status:   ticket.Status,
			Priority: ticket.Priority,
			OwnerID:  ticket.UserID,
			Summary:  fmt.Sprintf("New ticket from %s: %s", ticket.DisplayName, ticket.Subject),
		})
	}
	return ticket, nil
}

// TicketUpdateInput is the allowed-field patch admins may apply.
type TicketUpdateInput struct {
	Status          *domain.TicketStatus
	Priority        *domain.TicketPriority
	Tags            []string
	AssignedTo      *string
	InternalNotes   *string
	EscalationLevel *int
}

// UpdateTicket applies an admin field patch and dispatches a
// status-appropriate notification to the ticket owner.
func (e *LifecycleEngine) UpdateTicket(ctx context.Context, admin domain.AuthenticatedUser, ticketID string, input TicketUpdateInput) (*domain.Ticket, error) {
	if !admin.IsAdmin() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	ticket, err := e.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	if input.AssignedTo != nil && ticket.MergedInto != nil {
		return nil, apperrors.NewConflict("merged tickets cannot be assigned", map[string]any{"merged_into": *ticket.MergedInto})
	}

	closed := false
	if input.Status != nil && *input.Status != ticket.Status {
		if !isValidTransition(ticket.Status, *input.Status) {
			return nil, apperrors.NewValidationError("invalid status transition", map[string]any{
				"from": ticket.Status,
				"to":   *input.Status,
			})
		}
		ticket.Status = *input.Status
		if ticket.Status == domain.TicketStatusClosed {
			now := e.now()
			ticket.ClosedAt = &now
			closed = true
		}
	}
	if input.Priority != nil {
		if !domain.ValidPriority(*input.Priority) {
			return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": *input.Priority})
		}
		ticket.Priority = *input.Priority
	}
	if input.Tags != nil {
		ticket.Tags = uniqueTags(input.Tags)
	}
	if input.AssignedTo != nil {
		ticket.AssignedTo = input.AssignedTo
	}
	if input.InternalNotes != nil {
		ticket.InternalNotes = *input.InternalNotes
	}
	if input.EscalationLevel != nil {
		ticket.EscalationLevel = *input.EscalationLevel
	}
	if ticket.FirstResponseAt == nil {
		now := e.now()
		ticket.FirstResponseAt = &now
	}

	if err := e.updateTicket(ctx, ticket); err != nil {
		return nil, err
	}

	e.audit.Log(ctx, admin, domain.AuditTicketUpdated, map[string]any{
		"ticket_id": ticket.ID,
		"status":    ticket.Status,
	})

	kind := notify.KindTicketUpdated
	summary := fmt.Sprintf("Your ticket %q was updated", ticket.Subject)
	if closed {
		kind = notify.KindTicketClosed
		summary = fmt.Sprintf("Your ticket %q has been closed", ticket.Subject)
	}
	e.dispatcher.Dispatch(ctx, notify.Event{
		Kind:           kind,
		TicketID:       ticket.ID,
		Subject:        ticket.Subject,
		Status:         ticket.Status,
		Priority:       ticket.Priority,
		OwnerID:        ticket.UserID,
		RecipientEmail: ticket.UserEmail,
		Summary:        summary,
	})
	return ticket, nil
}

// ConfirmAIResolution lets the ticket owner accept the AI-suggested answer,
// closing the ticket.
func (e *LifecycleEngine) ConfirmAIResolution(ctx context.Context, user domain.AuthenticatedUser, ticketID string) (*domain.Ticket, error) {
	ticket, err := e.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.UserID != user.ID {
		return nil, apperrors.NewForbidden("only the ticket owner can confirm the AI resolution")
	}
	if !ticket.AISuggestionProvided {
		return nil, apperrors.NewValidationError("no AI suggestion to confirm", nil)
	}
	if ticket.Status.IsTerminal() {
		return nil, apperrors.NewConflict("ticket is already resolved", map[string]any{"status": ticket.Status})
	}

	now := e.now()
	ticket.Status = domain.TicketStatusClosed
	ticket.ClosedAt = &now
	ticket.AIResolutionConfirmedByUser = true

	if err := e.updateTicket(ctx, ticket); err != nil {
		return nil, err
	}

	e.audit.Log(ctx, user, domain.AuditAIResolutionConfirmed, map[string]any{"ticket_id": ticket.ID})
	e.dispatcher.Dispatch(ctx, notify.Event{
		Kind:           notify.KindAIResolutionConfirmed,
		TicketID:       ticket.ID,
		Subject:        ticket.Subject,
		Status:         ticket.Status,
		Priority:       ticket.Priority,
		OwnerID:        ticket.UserID,
		RecipientEmail: ticket.UserEmail,
		Summary:        fmt.Sprintf("Your ticket %q was closed after you accepted the suggested resolution", ticket.Subject),
	})
	return ticket, nil
}

// SubmitSatisfaction records the owner's satisfaction rating on a closed
// ticket.
func (e *LifecycleEngine) SubmitSatisfaction(ctx context.Context, user domain.AuthenticatedUser, ticketID string, rating int, comment string) (*domain.Ticket, error) {
	if rating < 1 || rating > 5 {
		return nil, apperrors.NewValidationError("rating must be between 1 and 5", map[string]any{"rating": rating})
	}
	ticket, err := e.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.UserID != user.ID {
		return nil, apperrors.NewForbidden("only the ticket owner can rate it")
	}
	if ticket.Status != domain.TicketStatusClosed {
		return nil, apperrors.NewValidationError("satisfaction can only be submitted on closed tickets", map[string]any{"status": ticket.Status})
	}

	ticket.SatisfactionRating = &rating
	if comment != "" {
		ticket.SatisfactionComment = &comment
	}

	if err := e.updateTicket(ctx, ticket); err != nil {
		return nil, err
	}

	e.audit.Log(ctx, user, domain.AuditSatisfactionSubmitted, map[string]any{
		"ticket_id": ticket.ID,
		"rating":    rating,
	})
	e.dispatcher.Dispatch(ctx, notify.Event{
		Kind:     notify.KindSatisfactionSubmitted,
		TicketID: ticket.ID,
		Subject:  ticket.Subject,
		Status:   ticket.Status,
		Priority: ticket.Priority,
		Summary:  fmt.Sprintf("Satisfaction rating %d/5 submitted for %q", rating, ticket.Subject),
	})
	return ticket, nil
}

// ConvertToForum turns a ticket into a public forum thread. A missing
// category is replaced by an auto-created default category.
func (e *LifecycleEngine) ConvertToForum(ctx context.Context, admin domain.AuthenticatedUser, ticketID, categoryID string) (*domain.Ticket, error) {
	if !admin.IsAdmin() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	if strings.TrimSpace(categoryID) == "" {
		return nil, apperrors.NewValidationError("categoryId required", nil)
	}
	ticket, err := e.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status.IsTerminal() {
		return nil, apperrors.NewConflict("only open or pending tickets can be converted", map[string]any{"status": ticket.Status})
	}

	category, err := e.forum.EnsureCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	post, err := e.forum.CreatePost(ctx, category.ID, ticket.Subject, ticket.Message)
	if err != nil {
		return nil, err
	}

	ticket.Status = domain.TicketStatusConverted
	ticket.ConvertedToForum = true
	ticket.ForumPostID = &post.ID

	if err := e.updateTicket(ctx, ticket); err != nil {
		return nil, err
	}

	e.audit.Log(ctx, admin, domain.AuditTicketConverted, map[string]any{
		"ticket_id":     ticket.ID,
		"category_id":   category.ID,
		"forum_post_id": post.ID,
	})
	e.dispatcher.Dispatch(ctx, notify.Event{
		Kind:           notify.KindTicketConverted,
		TicketID:       ticket.ID,
		Subject:        ticket.Subject,
		Status:         ticket.Status,
		Priority:       ticket.Priority,
		OwnerID:        ticket.UserID,
		RecipientEmail: ticket.UserEmail,
		ForumURL:       post.URL,
		Summary:        fmt.Sprintf("Your ticket %q is now a public forum thread", ticket.Subject),
	})
	return ticket, nil
}

// DeleteTicket hard-deletes a ticket. There is no recovery.
func (e *LifecycleEngine) DeleteTicket(ctx context.Context, admin domain.AuthenticatedUser, ticketID string) error {
	if !admin.IsAdmin() {
		return apperrors.NewForbidden("admin role required")
	}
	if err := e.store.Delete(ctx, ticketID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return apperrors.NewDependencyError("ticket store", err)
	}
	e.audit.Log(ctx, admin, domain.AuditTicketDeleted, map[string]any{"ticket_id": ticketID})
	return nil
}

// BulkActionType enumerates supported bulk operations.
type BulkActionType string

const (
	BulkClose  BulkActionType = "close"
	BulkAssign BulkActionType = "assign"
	BulkDelete BulkActionType = "delete"
)

// BulkAction applies the action to each ticket independently. Missing
// tickets are silently skipped; the returned slice lists the ticket IDs
// actually processed.
func (e *LifecycleEngine) BulkAction(ctx context.Context, admin domain.AuthenticatedUser, action BulkActionType, ticketIDs []string, assignedTo *string) ([]string, error) {
	if !admin.IsAdmin() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	if action == BulkAssign && (assignedTo == nil || strings.TrimSpace(*assignedTo) == "") {
		return nil, apperrors.NewValidationError("assignedTo required for assign action", nil)
	}

	processed := make([]string, 0, len(ticketIDs))
	for _, id := range ticketIDs {
		ok, err := e.applyBulkAction(ctx, action, id, assignedTo)
		if err != nil {
			return nil, err
		}
		if ok {
			processed = append(processed, id)
		}
	}

	e.audit.Log(ctx, admin, domain.AuditBulkAction, map[string]any{
		"action":    action,
		"processed": processed,
	})
	return processed, nil
}

func (e *LifecycleEngine) applyBulkAction(ctx context.Context, action BulkActionType, ticketID string, assignedTo *string) (bool, error) {
	switch action {
	case BulkDelete:
		err := e.store.Delete(ctx, ticketID)
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, apperrors.NewDependencyError("ticket store", err)
		}
		return true, nil
	case BulkClose, BulkAssign:
		ticket, err := e.store.GetByID(ctx, ticketID)
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, apperrors.NewDependencyError("ticket store", err)
		}
		if action == BulkClose {
			if ticket.Status.IsTerminal() {
				return false, nil
			}
			now := e.now()
			ticket.Status = domain.TicketStatusClosed
			ticket.ClosedAt = &now
		} else {
			if ticket.MergedInto != nil {
				return false, nil
			}
			ticket.AssignedTo = assignedTo
		}
		err = e.store.Update(ctx, ticket, ticket.UpdatedAt)
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrStaleTicket) {
			// Lost a concurrent race on this ticket; treat as skipped.
			return false, nil
		}
		if err != nil {
			return false, apperrors.NewDependencyError("ticket store", err)
		}
		return true, nil
	default:
		return false, apperrors.NewValidationError("unknown bulk action", map[string]any{"action": action})
	}
}

// GetTicket fetches a single ticket, enforcing ownership for non-admins.
func (e *LifecycleEngine) GetTicket(ctx context.Context, caller domain.AuthenticatedUser, ticketID string) (*domain.Ticket, error) {
	ticket, err := e.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && ticket.UserID != caller.ID {
		return nil, apperrors.NewForbidden("access denied")
	}
	return ticket, nil
}

// TicketListInput describes listing filters.
type TicketListInput struct {
	Status      *domain.TicketStatus
	Priority    *domain.TicketPriority
	Subject     *string
	UserID      *string
	AssignedTo  *string
	Tag         *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// ListTickets returns tickets visible to the caller: admins see all, users
// see only their own.
func (e *LifecycleEngine) ListTickets(ctx context.Context, caller domain.AuthenticatedUser, input TicketListInput) ([]domain.Ticket, error) {
	filter := repository.TicketFilter{
		Status:      input.Status,
		Priority:    input.Priority,
		Subject:     input.Subject,
		UserID:      input.UserID,
		AssignedTo:  input.AssignedTo,
		Tag:         input.Tag,
		CreatedFrom: input.CreatedFrom,
		CreatedTo:   input.CreatedTo,
		Limit:       input.Limit,
		Offset:      input.Offset,
	}
	if !caller.IsAdmin() {
		userID := caller.ID
		filter.UserID = &userID
	}
	tickets, err := e.store.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewDependencyError("ticket store", err)
	}
	return tickets, nil
}

func (e *LifecycleEngine) getTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := e.store.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.NewDependencyError("ticket store", err)
	}
	return ticket, nil
}

func (e *LifecycleEngine) updateTicket(ctx context.Context, ticket *domain.Ticket) error {
	err := e.store.Update(ctx, ticket, ticket.UpdatedAt)
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrStaleTicket) {
		return apperrors.NewConflict("ticket was modified concurrently; retry with fresh data", map[string]any{"ticket_id": ticket.ID})
	}
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticket.ID})
	}
	return apperrors.NewDependencyError("ticket store", err)
}

func uniqueTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		result = append(result, tag)
	}
	return result
}
