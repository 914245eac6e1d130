package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cache"
)

func HttpCacheInMemory(ttl int) fiber.Handler {
	if ttl <= 0 {
		ttl = 5
	}
	return cache.New(cache.Config{
		// Evaluated before serving from cache and again after the
		// handler to decide whether to store the response.
		Next: func(c *fiber.Ctx) bool {
			if c.Method() != fiber.MethodGet {
				return true
			}
			// Error responses must not be replayed once the session
			// recovers.
			if c.Response().StatusCode() >= fiber.StatusBadRequest {
				return true
			}
			// QR codes rotate and job status is polled; both must stay fresh.
			path := c.Path()
			return strings.Contains(path, "/api/qrcode") || strings.Contains(path, "/api/send/")
		},
		Expiration: time.Duration(ttl) * time.Second,
	})
}
