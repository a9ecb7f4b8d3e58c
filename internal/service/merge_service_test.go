package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opsdesk/support-engine/internal/domain"
	"github.com/opsdesk/support-engine/internal/repository"
	apperrors "github.com/opsdesk/support-engine/pkg/util"
)

func newMergeFixture(t *testing.T) (*DuplicateMergeService, *repository.MemoryTicketStore) {
	t.Helper()
	store := repository.NewMemoryTicketStore()
	audit := NewAuditService(repository.NewMemoryAuditLogStore(), zap.NewNop())
	return NewDuplicateMergeService(store, audit), store
}

func seedTicket(t *testing.T, store *repository.MemoryTicketStore, id, subject, message string, tags []string) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{
		ID:             id,
		OrganizationID: "org-1",
		UserID:         "user-1",
		Subject:        subject,
		Message:        message,
		Messages:       []string{message},
		Status:         domain.TicketStatusOpen,
		Priority:       domain.TicketPriorityMedium,
		Tags:           tags,
	}
	require.NoError(t, store.Create(context.Background(), ticket))
	return ticket
}

func TestFindDuplicatesSubjectCaseInsensitive(t *testing.T) {
	svc, store := newMergeFixture(t)
	seedTicket(t, store, "t1", "Login broken", "Cannot sign in at all", nil)
	seedTicket(t, store, "t2", "Unrelated", "Printer is on fire", nil)

	duplicates, err := svc.FindDuplicates(context.Background(), testAdmin, "login broken", "")
	require.NoError(t, err)
	require.Len(t, duplicates, 1)
	assert.Equal(t, "t1", duplicates[0].ID)
}

func TestFindDuplicatesMessageSubstring(t *testing.T) {
	svc, store := newMergeFixture(t)
	seedTicket(t, store, "t1", "Weird subject", "The password reset email never arrives", nil)

	duplicates, err := svc.FindDuplicates(context.Background(), testAdmin, "", "reset email never")
	require.NoError(t, err)
	require.Len(t, duplicates, 1)
	assert.Equal(t, "t1", duplicates[0].ID)
}

func TestFindDuplicatesSkipsMergedTickets(t *testing.T) {
	svc, store := newMergeFixture(t)
	ticket := seedTicket(t, store, "t1", "Login broken", "Cannot sign in", nil)
	primary := "t0"
	ticket.MergedInto = &primary
	require.NoError(t, store.Update(context.Background(), ticket, ticket.UpdatedAt))

	duplicates, err := svc.FindDuplicates(context.Background(), testAdmin, "Login broken", "")
	require.NoError(t, err)
	assert.Empty(t, duplicates)
}

func TestFindDuplicatesRequiresAdmin(t *testing.T) {
	svc, _ := newMergeFixture(t)
	_, err := svc.FindDuplicates(context.Background(), testUser, "Login broken", "")
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", apperrors.ToDomainError(err).Code)
}

func TestMergeFoldsDuplicateIntoPrimary(t *testing.T) {
	svc, store := newMergeFixture(t)
	seedTicket(t, store, "p", "Login broken", "Cannot sign in", []string{"auth"})
	seedTicket(t, store, "d", "login broken", "Password rejected", []string{"auth", "login"})

	primary, err := svc.Merge(context.Background(), testAdmin, "p", "d")
	require.NoError(t, err)

	// Message history keeps the primary's messages first.
	assert.Equal(t, []string{"Cannot sign in", "Password rejected"}, primary.Messages)
	assert.Equal(t, []string{"auth", "login"}, primary.Tags)

	duplicate, err := store.GetByID(context.Background(), "d")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, duplicate.Status)
	require.NotNil(t, duplicate.MergedInto)
	assert.Equal(t, "p", *duplicate.MergedInto)
	require.NotNil(t, duplicate.ClosedAt)
}

func TestMergeJoinsInternalNotes(t *testing.T) {
	svc, store := newMergeFixture(t)
	p := seedTicket(t, store, "p", "Login broken", "Cannot sign in", nil)
	d := seedTicket(t, store, "d", "login broken", "Password rejected", nil)

	p.InternalNotes = "checked auth logs"
	require.NoError(t, store.Update(context.Background(), p, p.UpdatedAt))
	d.InternalNotes = "user on SSO"
	require.NoError(t, store.Update(context.Background(), d, d.UpdatedAt))

	primary, err := svc.Merge(context.Background(), testAdmin, "p", "d")
	require.NoError(t, err)
	assert.Equal(t, "checked auth logs\n---\nuser on SSO", primary.InternalNotes)
}

func TestMergeRetryIsIdempotent(t *testing.T) {
	svc, store := newMergeFixture(t)
	seedTicket(t, store, "p", "Login broken", "Cannot sign in", nil)
	seedTicket(t, store, "d", "login broken", "Password rejected", nil)

	first, err := svc.Merge(context.Background(), testAdmin, "p", "d")
	require.NoError(t, err)
	require.Len(t, first.Messages, 2)

	// Retrying the same merge is a no-op, not a double-append.
	second, err := svc.Merge(context.Background(), testAdmin, "p", "d")
	require.NoError(t, err)
	assert.Len(t, second.Messages, 2)

	stored, err := store.GetByID(context.Background(), "p")
	require.NoError(t, err)
	assert.Len(t, stored.Messages, 2)
}

func TestMergeRejectsSelfMerge(t *testing.T) {
	svc, store := newMergeFixture(t)
	seedTicket(t, store, "p", "Login broken", "Cannot sign in", nil)

	_, err := svc.Merge(context.Background(), testAdmin, "p", "p")
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
}

func TestMergeRejectsMergedPrimary(t *testing.T) {
	svc, store := newMergeFixture(t)
	p := seedTicket(t, store, "p", "Login broken", "Cannot sign in", nil)
	seedTicket(t, store, "d", "login broken", "Password rejected", nil)

	elsewhere := "other"
	p.MergedInto = &elsewhere
	require.NoError(t, store.Update(context.Background(), p, p.UpdatedAt))

	_, err := svc.Merge(context.Background(), testAdmin, "p", "d")
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", apperrors.ToDomainError(err).Code)
}

func TestMergeRejectsDuplicateMergedElsewhere(t *testing.T) {
	svc, store := newMergeFixture(t)
	seedTicket(t, store, "p", "Login broken", "Cannot sign in", nil)
	d := seedTicket(t, store, "d", "login broken", "Password rejected", nil)

	elsewhere := "other"
	d.MergedInto = &elsewhere
	require.NoError(t, store.Update(context.Background(), d, d.UpdatedAt))

	_, err := svc.Merge(context.Background(), testAdmin, "p", "d")
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", apperrors.ToDomainError(err).Code)
}

func TestMergeMissingTicket(t *testing.T) {
	svc, store := newMergeFixture(t)
	seedTicket(t, store, "p", "Login broken", "Cannot sign in", nil)

	_, err := svc.Merge(context.Background(), testAdmin, "p", "ghost")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", apperrors.ToDomainError(err).Code)
}
