package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/unlockpay/backend/internal/identity"
)

// RegisterProfileRoutes wires the authenticated user's profile endpoints.
func RegisterProfileRoutes(r fiber.Router, h *identity.Handler) {
	r.Get("/", h.Me)
	r.Put("/push-token", h.PushToken)
}
