package wallet

import (
	"context"
	"log/slog"
	"time"

	"github.com/unlockpay/backend/internal/ledger"
)

// Service exposes the read side of a user's balance.
type Service struct {
	store  ledger.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds a wallet service instance.
func NewService(store ledger.Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Balance encapsulates available funds for a user.
type Balance struct {
	UserID string    `json:"user_id"`
	Amount int64     `json:"balance"`
	AsOf   time.Time `json:"as_of"`
}

// History is one page of balance movements, newest first.
type History struct {
	Entries    []ledger.Entry `json:"entries"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	Total      int64          `json:"total"`
	TotalPages int64          `json:"total_pages"`
}

// Reconciliation compares the stored balance with the sum of its history.
type Reconciliation struct {
	UserID     string    `json:"user_id"`
	Balance    int64     `json:"balance"`
	HistorySum int64     `json:"history_sum"`
	Drift      int64     `json:"drift"`
	Consistent bool      `json:"consistent"`
	CheckedAt  time.Time `json:"checked_at"`
}

// Balance returns the current balance for a user.
func (s *Service) Balance(ctx context.Context, userID string) (Balance, error) {
	amount, err := s.store.Balance(ctx, userID)
	if err != nil {
		return Balance{}, err
	}
	return Balance{UserID: userID, Amount: amount, AsOf: s.now()}, nil
}

// History returns one page of the user's balance history.
func (s *Service) History(ctx context.Context, userID string, page ledger.Page) (History, error) {
	page = ledger.NewPage(page.Number, page.Size)
	entries, total, err := s.store.History(ctx, userID, page)
	if err != nil {
		return History{}, err
	}
	if entries == nil {
		entries = []ledger.Entry{}
	}
	return History{
		Entries:    entries,
		Page:       page.Number,
		Limit:      page.Size,
		Total:      total,
		TotalPages: (total + int64(page.Size) - 1) / int64(page.Size),
	}, nil
}

// Reconcile reports whether a user's balance still equals the sum of their
// history. Drift is logged at error level since it means a write bypassed
// the ledger.
func (s *Service) Reconcile(ctx context.Context, userID string) (Reconciliation, error) {
	snap, err := s.store.Snapshot(ctx, userID)
	if err != nil {
		return Reconciliation{}, err
	}
	balance, sum := snap.Balance, snap.HistorySum
	r := Reconciliation{
		UserID:     userID,
		Balance:    balance,
		HistorySum: sum,
		Drift:      balance - sum,
		Consistent: balance == sum,
		CheckedAt:  s.now(),
	}
	if !r.Consistent {
		s.logger.Error("balance drift detected",
			slog.String("user_id", userID),
			slog.Int64("balance", balance),
			slog.Int64("history_sum", sum))
	}
	return r, nil
}
