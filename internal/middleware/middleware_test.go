package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"DetectorWeb/pkg/log"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	os.Setenv("APP_ENV", "test")
	os.Exit(m.Run())
}

func newApp(cfg Config) (*fiber.App, Middleware) {
	mw := New(log.NewLogger(), cfg)

	app := fiber.New()
	app.Use(mw.NewRequestIDMiddleware())
	app.Use(mw.NewLoggingMiddleware())
	app.Post("/", mw.NewRateLimiter, func(c *fiber.Ctx) error {
		return c.SendString(mw.GetRequestID(c))
	})
	return app, mw
}

func TestRequestIDGenerated(t *testing.T) {
	app, _ := newApp(Config{})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, resp.Header.Get(RequestIDKey), 26)
}

func TestRequestIDEchoed(t *testing.T) {
	app, _ := newApp(Config{})

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(RequestIDKey, "client-id-1")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "client-id-1", resp.Header.Get(RequestIDKey))

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(RequestIDKey, strings.Repeat("x", maxRequestIDLength+1))
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Len(t, resp.Header.Get(RequestIDKey), 26)
}

func TestRateLimiter(t *testing.T) {
	app, _ := newApp(Config{RequestsPerSecond: 0.001, Burst: 2})

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/", nil), -1)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestLimiterPerIP(t *testing.T) {
	r := newRateLimiter(1, 1)
	a := r.GetLimiterFrom("10.0.0.1")

	assert.Same(t, a, r.GetLimiterFrom("10.0.0.1"))
	assert.NotSame(t, a, r.GetLimiterFrom("10.0.0.2"))
}
