package payments

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/unlockpay/backend/internal/identity"
	"github.com/unlockpay/backend/internal/ledger"
	"github.com/unlockpay/backend/internal/transaction"
)

// Handler exposes purchase, balance and admin transaction endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a payment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type purchaseRequest struct {
	ItemType      string `json:"item_type"`
	ItemID        string `json:"item_id"`
	PaymentMethod string `json:"payment_method"`
}

type amountRequest struct {
	Amount int64 `json:"amount"`
}

type transferRequest struct {
	RecipientUsername string `json:"recipient_username"`
	Amount            int64  `json:"amount"`
	Notes             string `json:"notes"`
}

type adminRequest struct {
	Notes         string `json:"notes"`
	PaymentMethod string `json:"payment_method"`
}

// CreatePurchase opens a pending purchase paid through the gateway or from the balance.
func (h *Handler) CreatePurchase(c *fiber.Ctx) error {
	var req purchaseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)
	t, err := h.service.CreatePurchase(c.UserContext(), PurchaseInput{
		UserID:        uid,
		ItemType:      transaction.ItemType(req.ItemType),
		ItemID:        req.ItemID,
		PaymentMethod: transaction.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(t)
}

// DirectPurchase buys an item from the balance immediately.
func (h *Handler) DirectPurchase(c *fiber.Ctx) error {
	var req purchaseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)
	receipt, err := h.service.DirectPurchase(c.UserContext(), uid, transaction.ItemType(req.ItemType), req.ItemID)
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(receipt)
}

// TopUp opens a gateway checkout that credits the balance once paid.
func (h *Handler) TopUp(c *fiber.Ctx) error {
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)
	t, err := h.service.TopUp(c.UserContext(), uid, req.Amount)
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(t)
}

// Withdraw requests a payout of part of the balance.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)
	receipt, err := h.service.Withdraw(c.UserContext(), uid, req.Amount)
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(receipt)
}

// Transfer sends balance to another user.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)
	receipt, err := h.service.Transfer(c.UserContext(), TransferInput{
		SenderID:          uid,
		RecipientUsername: req.RecipientUsername,
		Amount:            req.Amount,
		Notes:             req.Notes,
	})
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(receipt)
}

// List returns the caller's transactions.
func (h *Handler) List(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	page := ledger.NewPage(c.QueryInt("page", 1), c.QueryInt("limit", ledger.DefaultPageSize))
	items, total, err := h.service.ListUserTransactions(c.UserContext(), uid, page)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(pageResponse(items, total, page))
}

// Get returns one of the caller's transactions.
func (h *Handler) Get(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	t, err := h.service.GetTransaction(c.UserContext(), uid, c.Params("id"))
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(t)
}

// Cancel abandons one of the caller's pending transactions.
func (h *Handler) Cancel(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	t, err := h.service.Cancel(c.UserContext(), uid, c.Params("id"))
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(t)
}

// AdminList returns all transactions, filtered by status, item type, user and creation window.
func (h *Handler) AdminList(c *fiber.Ctx) error {
	filter := transaction.Filter{
		UserID:   c.Query("user_id"),
		Status:   transaction.Status(c.Query("status")),
		ItemType: transaction.ItemType(c.Query("item_type")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return fiber.NewError(http.StatusBadRequest, "unknown status")
	}
	if filter.ItemType != "" && !filter.ItemType.Valid() {
		return fiber.NewError(http.StatusBadRequest, "unknown item type")
	}
	var err error
	if filter.From, err = queryTime(c, "from"); err != nil {
		return fiber.NewError(http.StatusBadRequest, "from must be RFC3339")
	}
	if filter.To, err = queryTime(c, "to"); err != nil {
		return fiber.NewError(http.StatusBadRequest, "to must be RFC3339")
	}

	page := ledger.NewPage(c.QueryInt("page", 1), c.QueryInt("limit", ledger.DefaultPageSize))
	items, total, err := h.service.ListTransactions(c.UserContext(), filter, page)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(pageResponse(items, total, page))
}

// Approve finalizes a pending transaction.
func (h *Handler) Approve(c *fiber.Ctx) error {
	action, err := adminAction(c)
	if err != nil {
		return err
	}
	t, err := h.service.Approve(c.UserContext(), action)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(t)
}

// Reject fails a pending transaction.
func (h *Handler) Reject(c *fiber.Ctx) error {
	action, err := adminAction(c)
	if err != nil {
		return err
	}
	t, err := h.service.Reject(c.UserContext(), action)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(t)
}

// HTTPError maps state machine errors onto HTTP responses.
func HTTPError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInsufficientFunds):
		return fiber.NewError(http.StatusBadRequest, "insufficient balance")
	case errors.Is(err, ErrInvalidRecipient):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrAmountMismatch):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrForbidden):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrItemNotFound):
		return fiber.NewError(http.StatusNotFound, "item not found")
	case errors.Is(err, ErrTransactionNotFound):
		return fiber.NewError(http.StatusNotFound, "transaction not found")
	case errors.Is(err, identity.ErrUserNotFound), errors.Is(err, ledger.ErrUserNotFound):
		return fiber.NewError(http.StatusNotFound, "user not found")
	case errors.Is(err, ErrInvalidState):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrDuplicateTransaction):
		return fiber.NewError(http.StatusConflict, "duplicate transaction")
	case errors.Is(err, ErrGatewayUnavailable):
		return fiber.NewError(http.StatusBadGateway, "payment gateway unavailable")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

func adminAction(c *fiber.Ctx) (AdminAction, error) {
	var req adminRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return AdminAction{}, fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	adminID, _ := c.Locals("user_id").(string)
	return AdminAction{
		TransactionID: c.Params("id"),
		AdminID:       adminID,
		Notes:         req.Notes,
		PaymentMethod: transaction.PaymentMethod(req.PaymentMethod),
	}, nil
}

func queryTime(c *fiber.Ctx, key string) (time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}

func pageResponse(items []transaction.Transaction, total int64, page ledger.Page) fiber.Map {
	if items == nil {
		items = []transaction.Transaction{}
	}
	pages := (total + int64(page.Size) - 1) / int64(page.Size)
	return fiber.Map{
		"transactions": items,
		"pagination": fiber.Map{
			"page":        page.Number,
			"limit":       page.Size,
			"total":       total,
			"total_pages": pages,
		},
	}
}
