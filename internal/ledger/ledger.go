// Package ledger owns the stored user balance and its append-only history.
// Every balance mutation happens inside a storage transaction together with
// the history entry that explains it.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/unlockpay/backend/internal/transaction"
)

var (
	// ErrInsufficientFunds occurs when a debit would take a balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrUserNotFound indicates the balance owner does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrTransactionNotFound indicates no transaction matches the id or order reference.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrDuplicateTransaction indicates the transaction id or order reference is already recorded.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrZeroDelta rejects balance mutations that would not move money.
	ErrZeroDelta = errors.New("delta must be non-zero")
)

// Category classifies a balance history entry.
type Category string

const (
	CategoryTopUp       Category = "topup"
	CategoryWithdrawal  Category = "withdrawal"
	CategoryTransferIn  Category = "transfer_in"
	CategoryTransferOut Category = "transfer_out"
	CategoryPurchase    Category = "purchase"
	CategoryRefund      Category = "refund"
	CategoryFee         Category = "fee"
	CategoryIncome      Category = "income"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	// MaxPageNumber keeps (number-1)*size far from int overflow.
	MaxPageNumber = 1_000_000
)

// Entry is one immutable balance history record.
type Entry struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	TransactionID   string    `json:"transaction_id,omitempty"`
	Amount          int64     `json:"amount"`
	PreviousBalance int64     `json:"previous_balance"`
	NewBalance      int64     `json:"new_balance"`
	Category        Category  `json:"category"`
	Description     string    `json:"description"`
	CreatedAt       time.Time `json:"created_at"`
}

// Snapshot pairs a stored balance with the sum of the history that explains it.
type Snapshot struct {
	Balance    int64
	HistorySum int64
}

// Delta describes a signed balance change and the history entry to record with it.
type Delta struct {
	UserID        string
	TransactionID string
	Amount        int64
	Category      Category
	Description   string
}

// Page selects a window of a newest-first listing.
type Page struct {
	Number int `json:"page"`
	Size   int `json:"page_size"`
}

// NewPage clamps page parameters: pages run from 1 to MaxPageNumber, sizes
// default to 10 and cap at 100.
func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	if number > MaxPageNumber {
		number = MaxPageNumber
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	p = NewPage(p.Number, p.Size)
	return (p.Number - 1) * p.Size
}

// Store defines the contract implemented by ledger backends (e.g. Postgres).
type Store interface {
	// RunInTx executes fn as one atomic unit. Any error from fn discards every
	// mutation made through the Tx.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
	EnsureAccount(ctx context.Context, userID string) error
	Balance(ctx context.Context, userID string) (int64, error)
	History(ctx context.Context, userID string, page Page) ([]Entry, int64, error)
	// Snapshot reads the balance and the sum of its history at one point in time.
	Snapshot(ctx context.Context, userID string) (Snapshot, error)
	Transaction(ctx context.Context, id string) (transaction.Transaction, error)
	ListTransactions(ctx context.Context, filter transaction.Filter, page Page) ([]transaction.Transaction, int64, error)
}

// Tx is the set of operations available inside RunInTx.
type Tx interface {
	// LockBalances locks the given users in ascending id order and returns their balances.
	LockBalances(ctx context.Context, userIDs ...string) (map[string]int64, error)
	// ApplyDelta changes a balance and appends the matching history entry.
	ApplyDelta(ctx context.Context, d Delta) (Entry, error)
	InsertTransaction(ctx context.Context, t transaction.Transaction) error
	LockTransaction(ctx context.Context, id string) (transaction.Transaction, error)
	LockTransactionByOrder(ctx context.Context, orderID string) (transaction.Transaction, error)
	SaveTransaction(ctx context.Context, t transaction.Transaction) error
}
