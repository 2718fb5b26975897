package payments

import (
	"errors"

	"github.com/unlockpay/backend/internal/catalog"
	"github.com/unlockpay/backend/internal/gateway"
	"github.com/unlockpay/backend/internal/ledger"
	"github.com/unlockpay/backend/internal/transaction"
)

// Errors returned by the state machine. Several alias the sentinel of the
// package that detects the condition so callers can match either.
var (
	ErrValidation          = errors.New("validation failed")
	ErrInvalidRecipient    = errors.New("invalid recipient")
	ErrForbidden           = errors.New("transaction belongs to another user")
	ErrAmountMismatch      = errors.New("gross amount does not match transaction amount")
	ErrItemNotFound        = catalog.ErrItemNotFound
	ErrInsufficientFunds   = ledger.ErrInsufficientFunds
	ErrTransactionNotFound = ledger.ErrTransactionNotFound
	ErrInvalidState        = transaction.ErrInvalidState
	ErrGatewayUnavailable  = gateway.ErrUnavailable
)
