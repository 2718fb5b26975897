package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SeedBalance is a test helper that credits a user of the in-memory ledger and
// records the matching top-up history entry, keeping history and balance in step.
func SeedBalance(s Store, userID string, amount int64) {
	mem, ok := s.(*MemoryStore)
	if !ok {
		return
	}
	_ = mem.EnsureAccount(context.Background(), userID)

	mem.mu.Lock()
	defer mem.mu.Unlock()
	previous := mem.balances[userID]
	mem.balances[userID] = previous + amount
	mem.history = append(mem.history, Entry{
		ID:              uuid.NewString(),
		UserID:          userID,
		Amount:          amount,
		PreviousBalance: previous,
		NewBalance:      previous + amount,
		Category:        CategoryTopUp,
		Description:     "seed",
		CreatedAt:       time.Now().UTC(),
	})
}
