package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/unlockpay/backend/internal/payments"
	"github.com/unlockpay/backend/internal/wallet"
)

// RegisterBalanceRoutes wires balance reads and the operations that move balance.
func RegisterBalanceRoutes(r fiber.Router, h *wallet.Handler, p *payments.Handler) {
	r.Get("/", h.Balance)
	r.Get("/history", h.History)
	r.Post("/topup", p.TopUp)
	r.Post("/withdraw", p.Withdraw)
	r.Post("/transfer", p.Transfer)
}
