package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unlockpay/backend/internal/transaction"
)

// MemoryStore is a concurrency-safe in-memory ledger useful for unit tests and
// local development. A single mutex serializes every RunInTx call; mutations
// are staged and merged only when fn succeeds.
type MemoryStore struct {
	mu           sync.Mutex
	balances     map[string]int64
	history      []Entry
	transactions map[string]transaction.Transaction
}

// NewMemoryStore creates an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		balances:     make(map[string]int64),
		transactions: make(map[string]transaction.Transaction),
	}
}

func (m *MemoryStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := &memoryTx{
		store:        m,
		balances:     make(map[string]int64),
		transactions: make(map[string]transaction.Transaction),
	}
	if err := fn(staged); err != nil {
		return err
	}

	for id, balance := range staged.balances {
		m.balances[id] = balance
	}
	for id, t := range staged.transactions {
		m.transactions[id] = t
	}
	m.history = append(m.history, staged.history...)
	return nil
}

func (m *MemoryStore) EnsureAccount(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.balances[userID]; !exists {
		m.balances[userID] = 0
	}
	return nil
}

func (m *MemoryStore) Balance(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, exists := m.balances[userID]
	if !exists {
		return 0, ErrUserNotFound
	}
	return balance, nil
}

func (m *MemoryStore) History(_ context.Context, userID string, page Page) ([]Entry, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.balances[userID]; !exists {
		return nil, 0, ErrUserNotFound
	}

	// history is append-only, so walking backwards yields newest first.
	var matched []Entry
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].UserID == userID {
			matched = append(matched, m.history[i])
		}
	}
	return paginate(matched, page), int64(len(matched)), nil
}

func (m *MemoryStore) Snapshot(_ context.Context, userID string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, exists := m.balances[userID]
	if !exists {
		return Snapshot{}, ErrUserNotFound
	}
	snap := Snapshot{Balance: balance}
	for _, e := range m.history {
		if e.UserID == userID {
			snap.HistorySum += e.Amount
		}
	}
	return snap, nil
}

func (m *MemoryStore) Transaction(_ context.Context, id string) (transaction.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transactions[id]
	if !ok {
		return transaction.Transaction{}, ErrTransactionNotFound
	}
	return t, nil
}

func (m *MemoryStore) ListTransactions(_ context.Context, filter transaction.Filter, page Page) ([]transaction.Transaction, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []transaction.Transaction
	for _, t := range m.transactions {
		if matches(t, filter) {
			matched = append(matched, t)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return paginate(matched, page), int64(len(matched)), nil
}

// Entries returns a copy of every history entry in insertion order.
func (m *MemoryStore) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.history...)
}

// memoryTx stages writes on top of the store. The store mutex is held by
// RunInTx for its whole lifetime.
type memoryTx struct {
	store        *MemoryStore
	balances     map[string]int64
	history      []Entry
	transactions map[string]transaction.Transaction
}

func (tx *memoryTx) balance(userID string) (int64, bool) {
	if b, ok := tx.balances[userID]; ok {
		return b, true
	}
	b, ok := tx.store.balances[userID]
	return b, ok
}

func (tx *memoryTx) LockBalances(_ context.Context, userIDs ...string) (map[string]int64, error) {
	out := make(map[string]int64, len(userIDs))
	for _, id := range sortedUnique(userIDs) {
		b, ok := tx.balance(id)
		if !ok {
			return nil, ErrUserNotFound
		}
		out[id] = b
	}
	return out, nil
}

func (tx *memoryTx) ApplyDelta(_ context.Context, d Delta) (Entry, error) {
	if d.Amount == 0 {
		return Entry{}, ErrZeroDelta
	}
	current, ok := tx.balance(d.UserID)
	if !ok {
		return Entry{}, ErrUserNotFound
	}
	next := current + d.Amount
	if next < 0 {
		return Entry{}, ErrInsufficientFunds
	}
	tx.balances[d.UserID] = next

	entry := Entry{
		ID:              uuid.NewString(),
		UserID:          d.UserID,
		TransactionID:   d.TransactionID,
		Amount:          d.Amount,
		PreviousBalance: current,
		NewBalance:      next,
		Category:        d.Category,
		Description:     d.Description,
		CreatedAt:       time.Now().UTC(),
	}
	tx.history = append(tx.history, entry)
	return entry, nil
}

func (tx *memoryTx) InsertTransaction(_ context.Context, t transaction.Transaction) error {
	if _, ok := tx.lookup(t.ID); ok {
		return ErrDuplicateTransaction
	}
	if t.OrderID != "" {
		if _, ok := tx.lookupByOrder(t.OrderID); ok {
			return ErrDuplicateTransaction
		}
	}
	tx.transactions[t.ID] = t
	return nil
}

func (tx *memoryTx) LockTransaction(_ context.Context, id string) (transaction.Transaction, error) {
	t, ok := tx.lookup(id)
	if !ok {
		return transaction.Transaction{}, ErrTransactionNotFound
	}
	return t, nil
}

func (tx *memoryTx) LockTransactionByOrder(_ context.Context, orderID string) (transaction.Transaction, error) {
	t, ok := tx.lookupByOrder(orderID)
	if !ok {
		return transaction.Transaction{}, ErrTransactionNotFound
	}
	return t, nil
}

func (tx *memoryTx) SaveTransaction(_ context.Context, t transaction.Transaction) error {
	if _, ok := tx.lookup(t.ID); !ok {
		return ErrTransactionNotFound
	}
	tx.transactions[t.ID] = t
	return nil
}

func (tx *memoryTx) lookup(id string) (transaction.Transaction, bool) {
	if t, ok := tx.transactions[id]; ok {
		return t, true
	}
	t, ok := tx.store.transactions[id]
	return t, ok
}

func (tx *memoryTx) lookupByOrder(orderID string) (transaction.Transaction, bool) {
	for _, t := range tx.transactions {
		if t.OrderID == orderID {
			return t, true
		}
	}
	for id, t := range tx.store.transactions {
		if _, staged := tx.transactions[id]; staged {
			continue
		}
		if t.OrderID == orderID {
			return t, true
		}
	}
	return transaction.Transaction{}, false
}

func matches(t transaction.Transaction, f transaction.Filter) bool {
	if f.UserID != "" && t.UserID != f.UserID {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.ItemType != "" && t.ItemType != f.ItemType {
		return false
	}
	if !f.From.IsZero() && t.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !t.CreatedAt.Before(f.To) {
		return false
	}
	return true
}

func paginate[T any](items []T, page Page) []T {
	page = NewPage(page.Number, page.Size)
	start := page.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + page.Size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
