package wallet

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/unlockpay/backend/internal/ledger"
)

// Handler exposes balance HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Balance returns the authenticated user's balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	balance, err := h.service.Balance(c.UserContext(), uid)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(balance)
}

// History returns the authenticated user's balance history.
func (h *Handler) History(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	page := ledger.NewPage(c.QueryInt("page", 1), c.QueryInt("limit", ledger.DefaultPageSize))
	history, err := h.service.History(c.UserContext(), uid, page)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(history)
}

// Reconcile compares a user's balance with their history. Admin only.
func (h *Handler) Reconcile(c *fiber.Ctx) error {
	r, err := h.service.Reconcile(c.UserContext(), c.Params("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(r)
}

func mapError(err error) error {
	if errors.Is(err, ledger.ErrUserNotFound) {
		return fiber.NewError(http.StatusNotFound, "balance not found")
	}
	return fiber.NewError(http.StatusInternalServerError, err.Error())
}
