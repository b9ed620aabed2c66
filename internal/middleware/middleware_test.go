package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redpotato/backend/internal/logger"
)

const testSecret = "test-secret"

func protectedApp() *fiber.App {
	app := fiber.New()
	app.Use(Recovery(logger.Nop()))
	api := app.Group("/api", AuthRequired(testSecret))
	api.Get("/me", func(c *fiber.Ctx) error {
		return c.SendString(GetCurrentUsername(c))
	})
	api.Delete("/thing", AdminOnly(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		panic("boom")
	})
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, path, token string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestAuthRequired(t *testing.T) {
	app := protectedApp()

	resp := doRequest(t, app, http.MethodGet, "/api/me", "")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, app, http.MethodGet, "/api/me", "garbage")
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	token, err := GenerateToken(testSecret, "ana", RoleOperator, time.Hour)
	require.NoError(t, err)
	resp = doRequest(t, app, http.MethodGet, "/api/me", token)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAuthRejectsWrongSecretAndExpiry(t *testing.T) {
	app := protectedApp()

	token, err := GenerateToken("other-secret", "ana", RoleAdmin, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, doRequest(t, app, http.MethodGet, "/api/me", token).StatusCode)

	token, err = GenerateToken(testSecret, "ana", RoleAdmin, -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, doRequest(t, app, http.MethodGet, "/api/me", token).StatusCode)
}

func TestAdminOnly(t *testing.T) {
	app := protectedApp()

	operator, err := GenerateToken(testSecret, "op", RoleOperator, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, doRequest(t, app, http.MethodDelete, "/api/thing", operator).StatusCode)

	admin, err := GenerateToken(testSecret, "root", RoleAdmin, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, doRequest(t, app, http.MethodDelete, "/api/thing", admin).StatusCode)
}

func TestRecovery(t *testing.T) {
	resp := doRequest(t, protectedApp(), http.MethodGet, "/boom", "")
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	app := fiber.New()
	app.Use(CORS("https://app.example.com"))
	app.Get("/x", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	resp := doRequest(t, app, http.MethodOptions, "/x", "")
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestRateLimiter(t *testing.T) {
	app := fiber.New()
	app.Use(RateLimiter(2, time.Minute))
	app.Get("/x", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	assert.Equal(t, fiber.StatusOK, doRequest(t, app, http.MethodGet, "/x", "").StatusCode)
	assert.Equal(t, fiber.StatusOK, doRequest(t, app, http.MethodGet, "/x", "").StatusCode)

	resp := doRequest(t, app, http.MethodGet, "/x", "")
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestRateLimiterDisabled(t *testing.T) {
	app := fiber.New()
	app.Use(RateLimiter(0, time.Minute))
	app.Get("/x", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	for i := 0; i < 5; i++ {
		assert.Equal(t, fiber.StatusOK, doRequest(t, app, http.MethodGet, "/x", "").StatusCode)
	}
}
