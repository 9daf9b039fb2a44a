package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

const healthTimeout = 2 * time.Second

// Pinger is the dependency checked by the readiness endpoint.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthCheck reports whether the reference store is reachable.
// A nil pinger means there is nothing to check.
//
// @Summary Readiness probe
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} errorPayload
// @Router /health [get]
func HealthCheck(p Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if p != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
			defer cancel()
			if err := p.PingContext(ctx); err != nil {
				logRequestError(c, err)
				return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
			}
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe answers 200 as long as the process serves requests.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}
