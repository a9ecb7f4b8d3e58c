package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opsdesk/support-engine/internal/config"
	"github.com/opsdesk/support-engine/internal/notify"
	"github.com/opsdesk/support-engine/internal/observability"
	"github.com/opsdesk/support-engine/internal/repository"
	"github.com/opsdesk/support-engine/internal/service"
)

func newTestScanner(t *testing.T) *service.EscalationScanner {
	t.Helper()
	logger := zap.NewNop()
	store := repository.NewMemoryTicketStore()
	dispatcher := notify.NewFanoutDispatcher(logger, observability.NewMetrics(), 0, 0)
	audit := service.NewAuditService(repository.NewMemoryAuditLogStore(), logger)
	return service.NewEscalationScanner(store, repository.NewNoopLease(), dispatcher, audit, logger,
		config.EscalationConfig{ThresholdHours: 48, Team: "escalation_team", Level: 1})
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	w := NewEscalationWorker(context.Background(), newTestScanner(t), "not a schedule", zap.NewNop())
	assert.Error(t, w.Start())
}

func TestStartAndStop(t *testing.T) {
	w := NewEscalationWorker(context.Background(), newTestScanner(t), "*/15 * * * *", zap.NewNop())
	require.NoError(t, w.Start())
	w.Stop()
}
