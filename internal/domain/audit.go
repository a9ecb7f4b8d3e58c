package domain

import "time"

// AuditAction enumerates state-changing operations recorded in the audit log.
type AuditAction string

const (
	AuditTicketCreated         AuditAction = "ticket_created"
	AuditTicketUpdated         AuditAction = "ticket_updated"
	AuditTicketDeleted         AuditAction = "ticket_deleted"
	AuditTicketConverted       AuditAction = "ticket_converted"
	AuditTicketMerged          AuditAction = "ticket_merged"
	AuditTicketEscalated       AuditAction = "ticket_escalated"
	AuditBulkAction            AuditAction = "ticket_bulk_action"
	AuditAIResolutionConfirmed AuditAction = "ai_resolution_confirmed"
	AuditSatisfactionSubmitted AuditAction = "satisfaction_submitted"
	AuditDeletionRequested     AuditAction = "gdpr_deletion_requested"
	AuditDeletionConfirmed     AuditAction = "gdpr_deletion_confirmed"
)

// AuditLogEvent is an append-only record of a state-changing action.
// Events are never mutated or deleted.
type AuditLogEvent struct {
	ID        string
	ActorID   string
	ActorRole Role
	Action    AuditAction
	Details   map[string]any
	CreatedAt time.Time
}
