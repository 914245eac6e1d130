package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestCacheDoesNotReplayErrorResponses(t *testing.T) {
	app := fiber.New()
	app.Use(HttpCacheInMemory(60))

	status := http.StatusServiceUnavailable
	app.Get("/api/groups", func(c *fiber.Ctx) error {
		return c.SendStatus(status)
	})

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/groups", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusServiceUnavailable, res.StatusCode)

	// Once the backend recovers, the stale 503 must not be served.
	status = http.StatusOK
	res, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/groups", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
}

func TestCacheServesSuccessResponses(t *testing.T) {
	app := fiber.New()
	app.Use(HttpCacheInMemory(60))

	hits := 0
	app.Get("/api/contacts", func(c *fiber.Ctx) error {
		hits++
		return c.SendString("ok")
	})

	for i := 0; i < 3; i++ {
		res, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/contacts", nil))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, res.StatusCode)
	}
	require.Equal(t, 1, hits, "subsequent requests are served from cache")
}

func TestCacheSkipsFreshnessSensitivePaths(t *testing.T) {
	app := fiber.New()
	app.Use(HttpCacheInMemory(60))

	hits := 0
	app.Get("/api/qrcode", func(c *fiber.Ctx) error {
		hits++
		return c.SendString("code")
	})

	for i := 0; i < 2; i++ {
		_, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/qrcode", nil))
		require.NoError(t, err)
	}
	require.Equal(t, 2, hits, "rotating QR codes are never cached")
}
