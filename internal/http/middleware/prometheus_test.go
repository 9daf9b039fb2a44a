package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPromApp(t *testing.T) (*fiber.App, *PrometheusMiddleware, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	pm, err := NewPrometheusMiddleware(reg)
	require.NoError(t, err)

	app := fiber.New()
	app.Use(pm.Handler())
	return app, pm, reg
}

func TestPrometheusMiddleware(t *testing.T) {
	app, pm, _ := newPromApp(t)

	app.Get("/test", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Delete("/test", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/error", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusBadRequest, "bad request")
	})

	resp, _ := app.Test(httptest.NewRequest("GET", "/test", nil))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), testutil.ToFloat64(pm.requestCount.WithLabelValues("GET", "/test", "200")))

	resp, _ = app.Test(httptest.NewRequest("DELETE", "/test", nil))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), testutil.ToFloat64(pm.requestCount.WithLabelValues("DELETE", "/test", "200")))

	_, _ = app.Test(httptest.NewRequest("GET", "/error", nil))
	assert.Equal(t, float64(1), testutil.ToFloat64(pm.requestCount.WithLabelValues("GET", "/error", "400")))
}

func TestPrometheusMiddleware_ExcludeMetrics(t *testing.T) {
	app, _, reg := newPromApp(t)
	app.Get(MetricsPath, func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	_, _ = app.Test(httptest.NewRequest("GET", MetricsPath, nil))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		assert.Empty(t, mf.GetMetric(), mf.GetName())
	}
}

func TestPrometheusMiddleware_PathPattern(t *testing.T) {
	app, pm, _ := newPromApp(t)
	app.Get("/references/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	_, _ = app.Test(httptest.NewRequest("GET", "/references/123", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(pm.requestCount.WithLabelValues("GET", "/references/:id", "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(pm.requestDuration))
}

func TestNewPrometheusMiddleware_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheusMiddleware(reg)
	require.NoError(t, err)

	_, err = NewPrometheusMiddleware(reg)
	assert.Error(t, err)
}
