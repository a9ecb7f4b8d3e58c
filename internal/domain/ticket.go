package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen      TicketStatus = "OPEN"
	TicketStatusPending   TicketStatus = "PENDING"
	TicketStatusClosed    TicketStatus = "CLOSED"
	TicketStatusConverted TicketStatus = "CONVERTED"
)

// IsTerminal reports whether no further status transitions are allowed.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusClosed || s == TicketStatusConverted
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// ValidPriority reports whether p is a known priority value.
func ValidPriority(p TicketPriority) bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID             string
	OrganizationID string
	UserID         string
	UserEmail      string
	DisplayName    string
	AssignedTo     *string

	Subject       string
	Message       string
	Messages      []string
	InternalNotes string

	Status   TicketStatus
	Priority TicketPriority
	Tags     []string

	Escalated       bool
	EscalationLevel int
	FirstResponseAt *time.Time
	ClosedAt        *time.Time

	AISuggestionProvided        bool
	AISuggestedAnswer           string
	AISuggestionConfidence      float64
	AINeedsHumanReview          bool
	AIResolutionConfirmedByUser bool

	SatisfactionRating  *int
	SatisfactionComment *string

	ConvertedToForum bool
	ForumPostID      *string

	MergedInto *string

	DeletionRequested bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasTag reports whether the ticket carries the given tag.
func (t *Ticket) HasTag(tag string) bool {
	for _, existing := range t.Tags {
		if existing == tag {
			return true
		}
	}
	return false
}
