package payments

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/unlockpay/backend/internal/gateway"
	"github.com/unlockpay/backend/internal/metrics"
)

// WebhookHandler receives asynchronous payment notifications from the gateway.
type WebhookHandler struct {
	service   *Service
	serverKey string
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewWebhookHandler constructs the gateway callback handler. Signatures are
// verified only when serverKey is set.
func NewWebhookHandler(service *Service, serverKey string, m *metrics.Metrics, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{service: service, serverKey: serverKey, metrics: m, logger: logger}
}

// Midtrans handles POST /payments/notification. Anything other than a 2xx
// makes the gateway retry, so only malformed input and storage failures
// produce errors.
func (h *WebhookHandler) Midtrans(c *fiber.Ctx) error {
	var n gateway.Notification
	if err := c.BodyParser(&n); err != nil {
		h.metrics.ObserveWebhook("malformed")
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if n.OrderID == "" {
		h.metrics.ObserveWebhook("malformed")
		return fiber.NewError(http.StatusBadRequest, "order_id is required")
	}
	if h.serverKey != "" {
		if err := n.VerifySignature(h.serverKey); err != nil {
			h.metrics.ObserveWebhook("invalid_signature")
			h.logger.Warn("webhook signature rejected", slog.String("order_id", n.OrderID))
			return fiber.NewError(http.StatusUnauthorized, err.Error())
		}
	}

	var gross int64
	if n.GrossAmount != "" {
		amount, err := n.Amount()
		if err != nil {
			h.metrics.ObserveWebhook("malformed")
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		gross = amount
	}

	res, err := h.service.SettleFromGateway(c.UserContext(), GatewayUpdate{
		OrderID:           n.OrderID,
		TransactionStatus: n.TransactionStatus,
		FraudStatus:       n.FraudStatus,
		GrossAmount:       gross,
	})
	switch {
	case err == nil:
		h.metrics.ObserveWebhook(string(res.Outcome))
		return c.JSON(fiber.Map{"status": "ok", "outcome": res.Outcome})
	case errors.Is(err, ErrInvalidState):
		h.metrics.ObserveWebhook("conflict")
		h.logger.Warn("webhook for finalized transaction",
			slog.String("order_id", n.OrderID),
			slog.String("transaction_status", n.TransactionStatus),
			slog.Any("error", err))
		return c.JSON(fiber.Map{"status": "ok", "outcome": OutcomeIgnored})
	case errors.Is(err, ErrTransactionNotFound):
		h.metrics.ObserveWebhook("not_found")
		return fiber.NewError(http.StatusNotFound, "transaction not found")
	case errors.Is(err, ErrAmountMismatch):
		h.metrics.ObserveWebhook("amount_mismatch")
		h.logger.Error("webhook amount mismatch", slog.String("order_id", n.OrderID), slog.Any("error", err))
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		h.metrics.ObserveWebhook("error")
		h.logger.Error("webhook processing failed", slog.String("order_id", n.OrderID), slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "failed to process notification")
	}
}
