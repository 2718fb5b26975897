package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/unlockpay/backend/internal/auth"
	"github.com/unlockpay/backend/internal/identity"
)

// RegisterAuthRoutes wires sign-up and token endpoints. Logout needs a valid
// access token, everything else is public.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, ids *identity.Handler, rateLimiter, jwt fiber.Handler) {
	group := r.Group("/auth")
	group.Post("/register", ids.Register)
	if rateLimiter != nil {
		group.Post("/login", rateLimiter, h.Login)
	} else {
		group.Post("/login", h.Login)
	}
	group.Post("/refresh", h.Refresh)
	group.Post("/logout", jwt, h.Logout)
}
