package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unlockpay/backend/internal/transaction"
)

const transactionColumns = `id::text, user_id::text, item_type, item_id, item_name, amount, status,
    payment_method, payment_url, COALESCE(order_id, ''), COALESCE(recipient_id::text, ''),
    COALESCE(linked_transaction_id::text, ''), metadata, created_at, updated_at`

// PostgresStore keeps balances on the users table and history in balance_history.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed ledger implementation.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// RunInTx opens a database transaction, runs fn and commits only when fn succeeds.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(&postgresTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// EnsureAccount verifies the user row that carries the balance exists.
func (s *PostgresStore) EnsureAccount(ctx context.Context, userID string) error {
	if _, err := uuid.Parse(userID); err != nil {
		return ErrUserNotFound
	}
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrUserNotFound
	}
	return nil
}

// Balance returns the stored balance for the user.
func (s *PostgresStore) Balance(ctx context.Context, userID string) (int64, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return 0, ErrUserNotFound
	}
	var balance int64
	if err := s.db.QueryRow(ctx, `SELECT balance FROM users WHERE id = $1`, userID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	return balance, nil
}

// History lists a user's balance history newest first with the total entry count.
func (s *PostgresStore) History(ctx context.Context, userID string, page Page) ([]Entry, int64, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, 0, ErrUserNotFound
	}
	page = NewPage(page.Number, page.Size)

	var total int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM balance_history WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	const query = `
        SELECT id::text, user_id::text, COALESCE(transaction_id::text, ''), amount,
               previous_balance, new_balance, category, description, created_at
        FROM balance_history
        WHERE user_id = $1
        ORDER BY created_at DESC, id DESC
        LIMIT $2 OFFSET $3`
	rows, err := s.db.Query(ctx, query, userID, page.Size, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries := make([]Entry, 0, page.Size)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.TransactionID, &e.Amount, &e.PreviousBalance,
			&e.NewBalance, &e.Category, &e.Description, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

// Snapshot reads the balance and its history sum in one statement so both
// come from the same MVCC snapshot.
func (s *PostgresStore) Snapshot(ctx context.Context, userID string) (Snapshot, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return Snapshot{}, ErrUserNotFound
	}
	const query = `
        SELECT u.balance,
               COALESCE((SELECT SUM(h.amount) FROM balance_history h WHERE h.user_id = u.id), 0)::bigint
        FROM users u
        WHERE u.id = $1`
	var snap Snapshot
	if err := s.db.QueryRow(ctx, query, userID).Scan(&snap.Balance, &snap.HistorySum); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, ErrUserNotFound
		}
		return Snapshot{}, err
	}
	return snap, nil
}

// Transaction loads a transaction without locking it.
func (s *PostgresStore) Transaction(ctx context.Context, id string) (transaction.Transaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return transaction.Transaction{}, ErrTransactionNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	return scanTransaction(row)
}

// ListTransactions returns transactions matching the filter newest first.
func (s *PostgresStore) ListTransactions(ctx context.Context, filter transaction.Filter, page Page) ([]transaction.Transaction, int64, error) {
	page = NewPage(page.Number, page.Size)

	var (
		clauses []string
		args    []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.UserID != "" {
		if _, err := uuid.Parse(filter.UserID); err != nil {
			return []transaction.Transaction{}, 0, nil
		}
		add("user_id = $%d", filter.UserID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.ItemType != "" {
		add("item_type = $%d", string(filter.ItemType))
	}
	if !filter.From.IsZero() {
		add("created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("created_at < $%d", filter.To)
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM transactions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM transactions%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		transactionColumns, where, len(args)+1, len(args)+2)
	rows, err := s.db.Query(ctx, query, append(args, page.Size, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]transaction.Transaction, 0, page.Size)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}

type postgresTx struct {
	tx pgx.Tx
}

func (p *postgresTx) LockBalances(ctx context.Context, userIDs ...string) (map[string]int64, error) {
	ids := sortedUnique(userIDs)
	balances := make(map[string]int64, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return nil, ErrUserNotFound
		}
		var balance int64
		if err := p.tx.QueryRow(ctx, `SELECT balance FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&balance); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrUserNotFound
			}
			return nil, err
		}
		balances[id] = balance
	}
	return balances, nil
}

func (p *postgresTx) ApplyDelta(ctx context.Context, d Delta) (Entry, error) {
	if d.Amount == 0 {
		return Entry{}, ErrZeroDelta
	}
	if _, err := uuid.Parse(d.UserID); err != nil {
		return Entry{}, ErrUserNotFound
	}

	var newBalance int64
	err := p.tx.QueryRow(ctx, `
        UPDATE users SET balance = balance + $1
        WHERE id = $2 AND balance + $1 >= 0
        RETURNING balance`, d.Amount, d.UserID).Scan(&newBalance)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, err
		}
		var exists bool
		if err := p.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, d.UserID).Scan(&exists); err != nil {
			return Entry{}, err
		}
		if !exists {
			return Entry{}, ErrUserNotFound
		}
		return Entry{}, ErrInsufficientFunds
	}

	entry := Entry{
		ID:              uuid.NewString(),
		UserID:          d.UserID,
		TransactionID:   d.TransactionID,
		Amount:          d.Amount,
		PreviousBalance: newBalance - d.Amount,
		NewBalance:      newBalance,
		Category:        d.Category,
		Description:     d.Description,
		CreatedAt:       time.Now().UTC(),
	}
	if _, err := p.tx.Exec(ctx, `
        INSERT INTO balance_history (id, user_id, transaction_id, amount, previous_balance, new_balance, category, description, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.UserID, nullable(entry.TransactionID), entry.Amount, entry.PreviousBalance,
		entry.NewBalance, string(entry.Category), entry.Description, entry.CreatedAt); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (p *postgresTx) InsertTransaction(ctx context.Context, t transaction.Transaction) error {
	_, err := p.tx.Exec(ctx, `
        INSERT INTO transactions (id, user_id, item_type, item_id, item_name, amount, status, payment_method,
            payment_url, order_id, recipient_id, linked_transaction_id, metadata, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		t.ID, t.UserID, string(t.ItemType), t.ItemID, t.ItemName, t.Amount, string(t.Status), string(t.PaymentMethod),
		t.PaymentURL, nullable(t.OrderID), nullable(t.RecipientID), nullable(t.LinkedTransactionID),
		t.Metadata, t.CreatedAt, t.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateTransaction
	}
	return err
}

func (p *postgresTx) LockTransaction(ctx context.Context, id string) (transaction.Transaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return transaction.Transaction{}, ErrTransactionNotFound
	}
	row := p.tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id)
	return scanTransaction(row)
}

func (p *postgresTx) LockTransactionByOrder(ctx context.Context, orderID string) (transaction.Transaction, error) {
	row := p.tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE order_id = $1 FOR UPDATE`, orderID)
	return scanTransaction(row)
}

func (p *postgresTx) SaveTransaction(ctx context.Context, t transaction.Transaction) error {
	tag, err := p.tx.Exec(ctx, `
        UPDATE transactions
        SET status = $2, payment_method = $3, payment_url = $4, linked_transaction_id = $5,
            metadata = $6, updated_at = $7
        WHERE id = $1`,
		t.ID, string(t.Status), string(t.PaymentMethod), t.PaymentURL, nullable(t.LinkedTransactionID),
		t.Metadata, t.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func scanTransaction(row pgx.Row) (transaction.Transaction, error) {
	var t transaction.Transaction
	err := row.Scan(&t.ID, &t.UserID, &t.ItemType, &t.ItemID, &t.ItemName, &t.Amount, &t.Status,
		&t.PaymentMethod, &t.PaymentURL, &t.OrderID, &t.RecipientID, &t.LinkedTransactionID,
		&t.Metadata, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return transaction.Transaction{}, ErrTransactionNotFound
		}
		return transaction.Transaction{}, err
	}
	return t, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func sortedUnique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
