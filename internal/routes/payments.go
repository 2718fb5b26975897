package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/unlockpay/backend/internal/payments"
	"github.com/unlockpay/backend/internal/wallet"
)

// RegisterTransactionRoutes wires the caller's purchase endpoints.
func RegisterTransactionRoutes(r fiber.Router, h *payments.Handler) {
	r.Post("/", h.CreatePurchase)
	r.Post("/direct", h.DirectPurchase)
	r.Get("/", h.List)
	r.Get("/:id", h.Get)
	r.Post("/:id/cancel", h.Cancel)
}

// RegisterAdminRoutes wires the back-office endpoints.
func RegisterAdminRoutes(r fiber.Router, h *payments.Handler, w *wallet.Handler) {
	r.Get("/transactions", h.AdminList)
	r.Post("/transactions/:id/approve", h.Approve)
	r.Post("/transactions/:id/reject", h.Reject)
	r.Get("/users/:id/reconcile", w.Reconcile)
}

// RegisterWebhookRoutes wires gateway callbacks. They authenticate by signature, not JWT.
func RegisterWebhookRoutes(r fiber.Router, h *payments.WebhookHandler) {
	r.Post("/payments/midtrans/webhook", h.Midtrans)
}
