package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opsdesk/support-engine/internal/observability"
	apperrors "github.com/opsdesk/support-engine/pkg/util"
)

func TestRequestMetricsRecordTranslatedErrorStatus(t *testing.T) {
	metrics := observability.NewMetrics()
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, time.Second)
	app.Get("/boom", func(c *fiber.Ctx) error {
		return apperrors.NewForbidden("admin role required")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	assert.EqualValues(t, 1, metrics.Requests("/boom", http.MethodGet, http.StatusForbidden))
	assert.EqualValues(t, 0, metrics.Requests("/boom", http.MethodGet, http.StatusOK))
}

func TestRequestMetricsRecordSuccessStatus(t *testing.T) {
	metrics := observability.NewMetrics()
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, time.Second)
	app.Get("/ok", func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ok", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.EqualValues(t, 1, metrics.Requests("/ok", http.MethodGet, http.StatusNoContent))
}
