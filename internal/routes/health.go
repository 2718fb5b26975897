package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	dependencyOK       = "ok"
	dependencyDisabled = "disabled"
)

// RegisterHealthRoutes adds a readiness endpoint reporting each backing
// store. Stores left unconfigured in development report "disabled".
func RegisterHealthRoutes(r fiber.Router, d Deps) {
	r.Get("/healthz", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		checks := fiber.Map{
			"postgres": pingStatus(d.DB != nil, func() error { return d.DB.Ping(ctx) }),
			"redis":    pingStatus(d.Cache != nil, func() error { return d.Cache.Ping(ctx).Err() }),
		}
		status := http.StatusOK
		for _, v := range checks {
			if v != dependencyOK && v != dependencyDisabled {
				status = http.StatusServiceUnavailable
			}
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    checks,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}

func pingStatus(configured bool, ping func() error) string {
	if !configured {
		return dependencyDisabled
	}
	if err := ping(); err != nil {
		return err.Error()
	}
	return dependencyOK
}
