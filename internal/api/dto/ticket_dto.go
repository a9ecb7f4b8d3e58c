package dto

import (
	"time"

	"github.com/opsdesk/support-engine/internal/domain"
)

// TicketMutationRequest is the POST /tickets payload. The operation is
// disambiguated by shape: Action selects a bulk operation, DuplicateCheck a
// duplicate search, MergeTickets a merge; otherwise it is a ticket creation.
type TicketMutationRequest struct {
	// Creation fields.
	Subject  string                `json:"subject"`
	Message  string                `json:"message"`
	Priority domain.TicketPriority `json:"priority"`
	Tags     []string              `json:"tags"`

	// Bulk action fields.
	Action     string   `json:"action,omitempty"`
	TicketIDs  []string `json:"ticketIds,omitempty"`
	AssignedTo *string  `json:"assignedTo,omitempty"`

	// Duplicate check / merge flags.
	DuplicateCheck bool `json:"duplicateCheck,omitempty"`
	MergeTickets   bool `json:"mergeTickets,omitempty"`
}

// TicketPatchRequest is the PATCH /tickets payload. The engine operation is
// chosen from which fields are present.
type TicketPatchRequest struct {
	TicketID string `json:"ticketId"`

	// Satisfaction submission.
	SatisfactionRating  *int    `json:"satisfactionRating,omitempty"`
	SatisfactionComment *string `json:"satisfactionComment,omitempty"`

	// AI resolution confirmation.
	ConfirmAIResolution bool `json:"confirmAiResolution,omitempty"`

	// Forum conversion.
	ConvertToForum bool    `json:"convertToForum,omitempty"`
	CategoryID     *string `json:"categoryId,omitempty"`

	// Generic admin update.
	Status          *domain.TicketStatus   `json:"status,omitempty"`
	Priority        *domain.TicketPriority `json:"priority,omitempty"`
	Tags            []string               `json:"tags,omitempty"`
	AssignedTo      *string                `json:"assignedTo,omitempty"`
	InternalNotes   *string                `json:"internalNotes,omitempty"`
	EscalationLevel *int                   `json:"escalationLevel,omitempty"`
}

// TicketResponse is the full ticket representation.
type TicketResponse struct {
	ID             string                `json:"id"`
	OrganizationID string                `json:"organizationId"`
	UserID         string                `json:"userId"`
	DisplayName    string                `json:"displayName"`
	AssignedTo     *string               `json:"assignedTo"`
	Subject        string                `json:"subject"`
	Message        string                `json:"message"`
	Messages       []string              `json:"messages"`
	Status         domain.TicketStatus   `json:"status"`
	Priority       domain.TicketPriority `json:"priority"`
	Tags           []string              `json:"tags"`

	Escalated       bool       `json:"escalated"`
	EscalationLevel int        `json:"escalationLevel"`
	FirstResponseAt *time.Time `json:"firstResponseAt"`
	ClosedAt        *time.Time `json:"closedAt"`

	AISuggestionProvided        bool    `json:"aiSuggestionProvided"`
	AISuggestedAnswer           string  `json:"aiSuggestedAnswer,omitempty"`
	AISuggestionConfidence      float64 `json:"aiSuggestionConfidence"`
	AINeedsHumanReview          bool    `json:"aiNeedsHumanReview"`
	AIResolutionConfirmedByUser bool    `json:"aiResolutionConfirmedByUser"`

	SatisfactionRating  *int    `json:"satisfactionRating"`
	SatisfactionComment *string `json:"satisfactionComment"`

	ConvertedToForum bool    `json:"convertedToForum"`
	ForumPostID      *string `json:"forumPostId"`
	MergedInto       *string `json:"mergedInto"`

	DeletionRequested bool `json:"deletionRequested"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FromTicket maps a domain ticket to its response representation.
func FromTicket(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:             t.ID,
		OrganizationID: t.OrganizationID,
		UserID:         t.UserID,
		DisplayName:    t.DisplayName,
		AssignedTo:     t.AssignedTo,
		Subject:        t.Subject,
		Message:        t.Message,
		Messages:       t.Messages,
		Status:         t.Status,
		Priority:       t.Priority,
		Tags:           t.Tags,

		Escalated:       t.Escalated,
		EscalationLevel: t.EscalationLevel,
		FirstResponseAt: t.FirstResponseAt,
		ClosedAt:        t.ClosedAt,

		AISuggestionProvided:        t.AISuggestionProvided,
		AISuggestedAnswer:           t.AISuggestedAnswer,
		AISuggestionConfidence:      t.AISuggestionConfidence,
		AINeedsHumanReview:          t.AINeedsHumanReview,
		AIResolutionConfirmedByUser: t.AIResolutionConfirmedByUser,

		SatisfactionRating:  t.SatisfactionRating,
		SatisfactionComment: t.SatisfactionComment,

		ConvertedToForum: t.ConvertedToForum,
		ForumPostID:      t.ForumPostID,
		MergedInto:       t.MergedInto,

		DeletionRequested: t.DeletionRequested,

		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// FromTickets maps a ticket slice.
func FromTickets(tickets []domain.Ticket) []TicketResponse {
	result := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		result = append(result, FromTicket(&tickets[i]))
	}
	return result
}

// BulkActionResponse reports which ticket IDs were actually processed.
type BulkActionResponse struct {
	Results []string `json:"results"`
}

// GDPRConfirmRequest is the deletion-confirmation payload.
type GDPRConfirmRequest struct {
	UserID string `json:"userId"`
}
