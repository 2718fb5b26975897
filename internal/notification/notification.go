// Package notification delivers best-effort alerts about transaction changes.
// Delivery never affects the outcome of the operation that produced the event.
package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/unlockpay/backend/internal/transaction"
)

// Kind classifies a notification event.
type Kind string

const (
	// KindTransactionCreated is emitted when a new transaction is recorded.
	KindTransactionCreated Kind = "transaction_created"
	// KindTransactionUpdated is emitted when a transaction changes status.
	KindTransactionUpdated Kind = "transaction_updated"
	// KindTransferReceived is emitted to the recipient of a balance transfer.
	KindTransferReceived Kind = "transfer_received"
)

// Recipient is the user an event concerns.
type Recipient struct {
	UserID    string
	Username  string
	FullName  string
	Email     string
	Phone     string
	PushToken string
}

// DisplayName prefers the full name and falls back to the username.
func (r Recipient) DisplayName() string {
	if r.FullName != "" {
		return r.FullName
	}
	return r.Username
}

// Event describes a notification payload.
type Event struct {
	Kind        Kind
	Transaction transaction.Transaction
	Recipient   Recipient
	OccurredAt  time.Time
}

// Publisher accepts events for asynchronous delivery. Enqueue never blocks and
// reports whether the event was accepted.
type Publisher interface {
	Enqueue(event Event) bool
}

// Channel delivers events to one downstream system.
type Channel interface {
	Name() string
	Send(ctx context.Context, event Event) error
}

// LoggerChannel writes notifications to the structured logger.
type LoggerChannel struct {
	logger *slog.Logger
}

// NewLoggerChannel constructs a logging channel, used in development.
func NewLoggerChannel(logger *slog.Logger) *LoggerChannel {
	return &LoggerChannel{logger: logger}
}

func (n *LoggerChannel) Name() string { return "log" }

// Send writes the event to the structured logger.
func (n *LoggerChannel) Send(_ context.Context, event Event) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		slog.String("kind", string(event.Kind)),
		slog.String("user_id", event.Recipient.UserID),
		slog.String("transaction_id", event.Transaction.ID),
		slog.String("item_type", string(event.Transaction.ItemType)),
		slog.String("status", string(event.Transaction.Status)),
		slog.Int64("amount", event.Transaction.Amount),
	)
	return nil
}
