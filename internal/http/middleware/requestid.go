package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries the request id in both directions.
	RequestIDHeader = "X-Request-ID"
	// RequestIDLocalKey is the fiber locals key holding the request id.
	RequestIDLocalKey = "request_id"

	maxRequestIDLen = 128
)

// RequestID reuses the caller's X-Request-ID, or generates a UUID when it is
// missing or implausibly long, and echoes it on the response.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		c.Locals(RequestIDLocalKey, id)
		c.Set(RequestIDHeader, id)
		return c.Next()
	}
}
