package notify

import (
	"time"

	"github.com/opsdesk/support-engine/internal/domain"
)

// Kind enumerates notification event identifiers.
type Kind string

const (
	KindTicketCreated         Kind = "ticket_created"
	KindTicketUpdated         Kind = "ticket_updated"
	KindTicketClosed          Kind = "ticket_closed"
	KindTicketEscalated       Kind = "ticket_escalated"
	KindTicketConverted       Kind = "ticket_converted"
	KindSatisfactionSubmitted Kind = "satisfaction_submitted"
	KindAIResolutionConfirmed Kind = "ai_resolution_confirmed"
)

// Event is one notification fanned out to the routed sinks.
type Event struct {
	ID       string
	Kind     Kind
	TicketID string
	Subject  string
	Status   domain.TicketStatus
	Priority domain.TicketPriority

	// OwnerID is the ticket creator; in-app notifications target them.
	OwnerID string
	// RecipientEmail, when set, makes the email sink deliver to it.
	RecipientEmail string

	// Summary is the human-readable message body shared by all sinks.
	Summary string
	// ForumURL is set for conversion events.
	ForumURL string

	Timestamp time.Time
}
