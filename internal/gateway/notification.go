package gateway

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/unlockpay/backend/internal/transaction"
)

var (
	ErrInvalidSignature = errors.New("invalid notification signature")
	ErrInvalidAmount    = errors.New("invalid gross amount")
)

// Notification is the gateway's asynchronous payment status callback.
type Notification struct {
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	PaymentType       string `json:"payment_type"`
	TransactionID     string `json:"transaction_id"`
}

// VerifySignature checks SHA512(order_id + status_code + gross_amount + server key).
func (n Notification) VerifySignature(serverKey string) error {
	sum := sha512.Sum512([]byte(n.OrderID + n.StatusCode + n.GrossAmount + serverKey))
	expected := hex.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(n.SignatureKey))) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

// Amount parses gross_amount ("150000.00") into whole Rupiah.
func (n Notification) Amount() (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(n.GrossAmount))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if !d.Equal(d.Truncate(0)) || d.IsNegative() {
		return 0, fmt.Errorf("%w: %s", ErrInvalidAmount, n.GrossAmount)
	}
	return d.IntPart(), nil
}

// MapStatus translates a gateway transaction_status and fraud_status into the
// internal status. ok is false for statuses that carry no decision and must be
// acknowledged without any change.
func MapStatus(transactionStatus, fraudStatus string) (status transaction.Status, ok bool) {
	switch strings.ToLower(transactionStatus) {
	case "capture":
		switch strings.ToLower(fraudStatus) {
		case "challenge":
			return transaction.StatusPending, true
		case "deny":
			return transaction.StatusFailed, true
		}
		return transaction.StatusSuccess, true
	case "settlement":
		return transaction.StatusSuccess, true
	case "pending":
		return transaction.StatusPending, true
	case "deny", "expire", "cancel", "failure":
		return transaction.StatusFailed, true
	default:
		return "", false
	}
}
