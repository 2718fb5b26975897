// Package transaction defines the transaction record and its closed status
// lifecycle: pending -> success | failed | cancelled.
package transaction

import (
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of a transaction.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// ItemType identifies what a transaction buys or moves.
type ItemType string

const (
	ItemIMEI       ItemType = "imei"
	ItemBypass     ItemType = "bypass"
	ItemFMIOff     ItemType = "fmi-off"
	ItemTopUp      ItemType = "topup"
	ItemWithdrawal ItemType = "withdrawal"
	ItemTransfer   ItemType = "transfer"
)

// PaymentMethod describes how a transaction is funded.
type PaymentMethod string

const (
	MethodGateway PaymentMethod = "gateway"
	MethodManual  PaymentMethod = "manual"
	MethodBalance PaymentMethod = "balance"
)

// ErrInvalidState is returned for any transition the lifecycle does not allow.
var ErrInvalidState = errors.New("invalid transaction state")

var transitions = map[Status][]Status{
	StatusPending: {StatusSuccess, StatusFailed, StatusCancelled},
}

// Terminal reports whether no further transitions are possible from s.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusCancelled
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusPending || s.Terminal()
}

// CanTransition reports whether the lifecycle permits moving from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsProduct reports whether the item type is a catalog product.
func (t ItemType) IsProduct() bool {
	return t == ItemIMEI || t == ItemBypass || t == ItemFMIOff
}

// Valid reports whether t is a known item type.
func (t ItemType) Valid() bool {
	switch t {
	case ItemIMEI, ItemBypass, ItemFMIOff, ItemTopUp, ItemWithdrawal, ItemTransfer:
		return true
	}
	return false
}

// Direction marks which side of a transfer a leg represents.
type Direction string

const (
	DirectionOut Direction = "out"
	DirectionIn  Direction = "in"
)

// Metadata is the structured audit trail attached to a transaction.
type Metadata struct {
	Notes         string     `json:"notes,omitempty"`
	AdminNotes    string     `json:"admin_notes,omitempty"`
	ApprovedBy    string     `json:"approved_by,omitempty"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
	RejectedBy    string     `json:"rejected_by,omitempty"`
	RejectedAt    *time.Time `json:"rejected_at,omitempty"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
	GatewayStatus string     `json:"gateway_status,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`

	Direction            Direction `json:"direction,omitempty"`
	CounterpartyID       string    `json:"counterparty_id,omitempty"`
	CounterpartyUsername string    `json:"counterparty_username,omitempty"`
	CounterpartyName     string    `json:"counterparty_name,omitempty"`
}

// Transaction is one purchase, top-up, withdrawal or transfer leg.
type Transaction struct {
	ID                  string        `json:"id"`
	UserID              string        `json:"user_id"`
	ItemType            ItemType      `json:"item_type"`
	ItemID              string        `json:"item_id,omitempty"`
	ItemName            string        `json:"item_name"`
	Amount              int64         `json:"amount"`
	Status              Status        `json:"status"`
	PaymentMethod       PaymentMethod `json:"payment_method"`
	PaymentURL          string        `json:"payment_url,omitempty"`
	OrderID             string        `json:"order_id,omitempty"`
	RecipientID         string        `json:"recipient_id,omitempty"`
	LinkedTransactionID string        `json:"linked_transaction_id,omitempty"`
	Metadata            Metadata      `json:"metadata"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// Transition moves the transaction to the next status, refusing anything the
// lifecycle table does not list.
func (t *Transaction) Transition(to Status, at time.Time) error {
	if !CanTransition(t.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, t.Status, to)
	}
	t.Status = to
	t.UpdatedAt = at
	return nil
}

// Filter narrows admin transaction listings. Zero values match everything.
type Filter struct {
	UserID   string
	Status   Status
	ItemType ItemType
	From     time.Time
	To       time.Time
}
