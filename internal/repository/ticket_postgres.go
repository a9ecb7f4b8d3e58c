package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsdesk/support-engine/internal/domain"
)

const ticketColumns = `id, organization_id, user_id, user_email, display_name, assigned_to,
           subject, message, messages, internal_notes, status, priority, tags,
           escalated, escalation_level, first_response_at, closed_at,
           ai_suggestion_provided, ai_suggested_answer, ai_suggestion_confidence, ai_needs_human_review, ai_resolution_confirmed,
           satisfaction_rating, satisfaction_comment, converted_to_forum, forum_post_id,
           merged_into, deletion_requested, created_at, updated_at`

type postgresTicketStore struct {
	pool *pgxpool.Pool
}

// NewPostgresTicketStore instantiates the Postgres-backed ticket store.
func NewPostgresTicketStore(pool *pgxpool.Pool) TicketStore {
	return &postgresTicketStore{pool: pool}
}

func (r *postgresTicketStore) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (organization_id, user_id, user_email, display_name, assigned_to,
            subject, message, messages, internal_notes, status, priority, tags,
            escalated, escalation_level, ai_suggestion_provided, ai_suggested_answer, ai_suggestion_confidence, ai_needs_human_review)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.OrganizationID,
		ticket.UserID,
		ticket.UserEmail,
		ticket.DisplayName,
		ticket.AssignedTo,
		ticket.Subject,
		ticket.Message,
		ticket.Messages,
		ticket.InternalNotes,
		ticket.Status,
		ticket.Priority,
		ticket.Tags,
		ticket.Escalated,
		ticket.EscalationLevel,
		ticket.AISuggestionProvided,
		ticket.AISuggestedAnswer,
		ticket.AISuggestionConfidence,
		ticket.AINeedsHumanReview,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *postgresTicketStore) Update(ctx context.Context, ticket *domain.Ticket, expectedUpdatedAt time.Time) error {
	const query = `
        UPDATE tickets SET assigned_to=$1, subject=$2, message=$3, messages=$4, internal_notes=$5,
            status=$6, priority=$7, tags=$8, escalated=$9, escalation_level=$10,
            first_response_at=$11, closed_at=$12,
            ai_suggestion_provided=$13, ai_suggested_answer=$14, ai_suggestion_confidence=$15,
            ai_needs_human_review=$16, ai_resolution_confirmed=$17, satisfaction_rating=$18,
            satisfaction_comment=$19, converted_to_forum=$20, forum_post_id=$21, merged_into=$22,
            deletion_requested=$23, updated_at=NOW()
        WHERE id=$24 AND updated_at=$25
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.AssignedTo,
		ticket.Subject,
		ticket.Message,
		ticket.Messages,
		ticket.InternalNotes,
		ticket.Status,
		ticket.Priority,
		ticket.Tags,
		ticket.Escalated,
		ticket.EscalationLevel,
		ticket.FirstResponseAt,
		ticket.ClosedAt,
		ticket.AISuggestionProvided,
		ticket.AISuggestedAnswer,
		ticket.AISuggestionConfidence,
		ticket.AINeedsHumanReview,
		ticket.AIResolutionConfirmedByUser,
		ticket.SatisfactionRating,
		ticket.SatisfactionComment,
		ticket.ConvertedToForum,
		ticket.ForumPostID,
		ticket.MergedInto,
		ticket.DeletionRequested,
		ticket.ID,
		expectedUpdatedAt,
	).Scan(&ticket.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	// Zero rows means either the ticket is gone or the CAS lost.
	var exists bool
	if checkErr := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE id=$1)`, ticket.ID).Scan(&exists); checkErr != nil {
		return checkErr
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStaleTicket
}

func (r *postgresTicketStore) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	row := r.pool.QueryRow(ctx, query, id)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return ticket, nil
}

func (r *postgresTicketStore) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresTicketStore) MarkEscalated(ctx context.Context, id, team string, level int) (bool, error) {
	const query = `
        UPDATE tickets SET escalated=TRUE, escalation_level=$1, assigned_to=$2, updated_at=NOW()
        WHERE id=$3 AND escalated=FALSE`
	cmd, err := r.pool.Exec(ctx, query, level, team, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *postgresTicketStore) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := fmt.Sprintf(`SELECT %s FROM tickets`, ticketColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if filter.OrganizationID != nil {
		args = append(args, *filter.OrganizationID)
		clauses = append(clauses, fmt.Sprintf("organization_id=$%d", len(args)))
	}
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		clauses = append(clauses, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("priority=$%d", len(args)))
	}
	if filter.Subject != nil && strings.TrimSpace(*filter.Subject) != "" {
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(*filter.Subject))+"%")
		clauses = append(clauses, fmt.Sprintf("LOWER(subject) LIKE $%d", len(args)))
	}
	if filter.Tag != nil {
		args = append(args, *filter.Tag)
		clauses = append(clauses, fmt.Sprintf("$%d = ANY(tags)", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.DeletionRequested != nil {
		args = append(args, *filter.DeletionRequested)
		clauses = append(clauses, fmt.Sprintf("deletion_requested=$%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.OrganizationID,
		&ticket.UserID,
		&ticket.UserEmail,
		&ticket.DisplayName,
		&ticket.AssignedTo,
		&ticket.Subject,
		&ticket.Message,
		&ticket.Messages,
		&ticket.InternalNotes,
		&ticket.Status,
		&ticket.Priority,
		&ticket.Tags,
		&ticket.Escalated,
		&ticket.EscalationLevel,
		&ticket.FirstResponseAt,
		&ticket.ClosedAt,
		&ticket.AISuggestionProvided,
		&ticket.AISuggestedAnswer,
		&ticket.AISuggestionConfidence,
		&ticket.AINeedsHumanReview,
		&ticket.AIResolutionConfirmedByUser,
		&ticket.SatisfactionRating,
		&ticket.SatisfactionComment,
		&ticket.ConvertedToForum,
		&ticket.ForumPostID,
		&ticket.MergedInto,
		&ticket.DeletionRequested,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
