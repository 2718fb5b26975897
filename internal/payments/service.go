package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/unlockpay/backend/internal/catalog"
	"github.com/unlockpay/backend/internal/gateway"
	"github.com/unlockpay/backend/internal/identity"
	"github.com/unlockpay/backend/internal/ledger"
	"github.com/unlockpay/backend/internal/metrics"
	"github.com/unlockpay/backend/internal/notification"
	"github.com/unlockpay/backend/internal/transaction"
)

// Users resolves the people involved in a transaction.
type Users interface {
	FindByID(ctx context.Context, id string) (identity.User, error)
	FindByUsername(ctx context.Context, username string) (identity.User, error)
}

// Service is the transaction state machine. Every operation that touches a
// balance runs inside a single ledger transaction together with the
// transaction record it explains.
type Service struct {
	store     ledger.Store
	users     Users
	items     catalog.Lookup
	gateway   gateway.Gateway
	publisher notification.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs the payment state machine. publisher and m may be nil.
func NewService(store ledger.Store, users Users, items catalog.Lookup, gw gateway.Gateway,
	publisher notification.Publisher, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		users:     users,
		items:     items,
		gateway:   gw,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// PurchaseInput selects a catalog item and how it is paid.
type PurchaseInput struct {
	UserID        string
	ItemType      transaction.ItemType
	ItemID        string
	PaymentMethod transaction.PaymentMethod
}

// TransferInput moves balance to another user identified by username.
type TransferInput struct {
	SenderID          string
	RecipientUsername string
	Amount            int64
	Notes             string
}

// AdminAction carries the details of an approval or rejection.
type AdminAction struct {
	TransactionID string
	AdminID       string
	Notes         string
	PaymentMethod transaction.PaymentMethod
}

// GatewayUpdate is a decoded payment status notification. GrossAmount is
// compared with the transaction amount when non-zero.
type GatewayUpdate struct {
	OrderID           string
	TransactionStatus string
	FraudStatus       string
	GrossAmount       int64
}

// Outcome describes what a gateway update did.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

// Receipt is returned by operations that move balance immediately.
type Receipt struct {
	Transaction transaction.Transaction `json:"transaction"`
	Balance     int64                   `json:"balance"`
}

// TransferReceipt holds both legs of a transfer and the sender's new balance.
type TransferReceipt struct {
	Sent     transaction.Transaction `json:"sent"`
	Received transaction.Transaction `json:"received"`
	Balance  int64                   `json:"balance"`
}

// SettleResult reports the transaction after a gateway update.
type SettleResult struct {
	Transaction transaction.Transaction `json:"transaction"`
	Outcome     Outcome                 `json:"outcome"`
}

// CreatePurchase records a pending product purchase. Gateway purchases get a
// checkout URL before anything is stored, so a gateway failure leaves no row.
// Balance purchases are debited when they settle, by an admin or by a gateway
// update for their order id, and fail there if the funds are gone.
func (s *Service) CreatePurchase(ctx context.Context, input PurchaseInput) (transaction.Transaction, error) {
	if input.PaymentMethod == "" {
		input.PaymentMethod = transaction.MethodGateway
	}
	if input.PaymentMethod != transaction.MethodGateway && input.PaymentMethod != transaction.MethodBalance {
		return transaction.Transaction{}, fmt.Errorf("%w: payment method must be gateway or balance", ErrValidation)
	}
	item, err := s.lookupItem(ctx, input.ItemType, input.ItemID)
	if err != nil {
		return transaction.Transaction{}, err
	}
	user, err := s.users.FindByID(ctx, input.UserID)
	if err != nil {
		return transaction.Transaction{}, err
	}

	t := s.newTransaction(user.ID, item.Type, item.Price)
	t.ItemID = item.ID
	t.ItemName = item.Name
	t.PaymentMethod = input.PaymentMethod
	t.OrderID = t.ID

	if input.PaymentMethod == transaction.MethodBalance {
		balance, err := s.store.Balance(ctx, user.ID)
		if err != nil {
			return transaction.Transaction{}, err
		}
		if balance < item.Price {
			return transaction.Transaction{}, ErrInsufficientFunds
		}
	} else {
		url, err := s.checkout(ctx, t, user)
		if err != nil {
			return transaction.Transaction{}, err
		}
		t.PaymentURL = url
	}

	if err := s.store.RunInTx(ctx, func(tx ledger.Tx) error {
		return tx.InsertTransaction(ctx, t)
	}); err != nil {
		return transaction.Transaction{}, err
	}

	s.recorded(t)
	s.publishTo(user, notification.KindTransactionCreated, t)
	return t, nil
}

// DirectPurchase buys an item from the balance in one step.
func (s *Service) DirectPurchase(ctx context.Context, userID string, itemType transaction.ItemType, itemID string) (Receipt, error) {
	item, err := s.lookupItem(ctx, itemType, itemID)
	if err != nil {
		return Receipt{}, err
	}

	t := s.newTransaction(userID, item.Type, item.Price)
	t.ItemID = item.ID
	t.ItemName = item.Name
	t.PaymentMethod = transaction.MethodBalance
	t.Status = transaction.StatusSuccess

	var entry ledger.Entry
	err = s.store.RunInTx(ctx, func(tx ledger.Tx) error {
		balances, err := tx.LockBalances(ctx, userID)
		if err != nil {
			return err
		}
		if balances[userID] < item.Price {
			return ErrInsufficientFunds
		}
		if err := tx.InsertTransaction(ctx, t); err != nil {
			return err
		}
		entry, err = tx.ApplyDelta(ctx, ledger.Delta{
			UserID:        userID,
			TransactionID: t.ID,
			Amount:        -item.Price,
			Category:      ledger.CategoryPurchase,
			Description:   "Purchase " + item.Name,
		})
		return err
	})
	if err != nil {
		return Receipt{}, err
	}

	s.recorded(t, entry.Category)
	s.publish(ctx, notification.KindTransactionUpdated, t)
	return Receipt{Transaction: t, Balance: entry.NewBalance}, nil
}

// TopUp opens a pending balance top-up paid through the gateway. The balance
// is credited only when the payment settles.
func (s *Service) TopUp(ctx context.Context, userID string, amount int64) (transaction.Transaction, error) {
	if amount <= 0 {
		return transaction.Transaction{}, fmt.Errorf("%w: amount must be greater than 0", ErrValidation)
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return transaction.Transaction{}, err
	}

	t := s.newTransaction(user.ID, transaction.ItemTopUp, amount)
	t.ItemID = string(transaction.ItemTopUp)
	t.ItemName = "Top Up Balance"
	t.PaymentMethod = transaction.MethodGateway
	t.OrderID = t.ID

	url, err := s.checkout(ctx, t, user)
	if err != nil {
		return transaction.Transaction{}, err
	}
	t.PaymentURL = url

	if err := s.store.RunInTx(ctx, func(tx ledger.Tx) error {
		return tx.InsertTransaction(ctx, t)
	}); err != nil {
		return transaction.Transaction{}, err
	}

	s.recorded(t)
	s.publishTo(user, notification.KindTransactionCreated, t)
	return t, nil
}

// Withdraw debits the balance immediately and leaves the withdrawal pending
// until an admin pays it out (approve) or refunds it (reject).
func (s *Service) Withdraw(ctx context.Context, userID string, amount int64) (Receipt, error) {
	if amount <= 0 {
		return Receipt{}, fmt.Errorf("%w: amount must be greater than 0", ErrValidation)
	}

	t := s.newTransaction(userID, transaction.ItemWithdrawal, amount)
	t.ItemName = "Balance Withdrawal"
	t.PaymentMethod = transaction.MethodManual

	var entry ledger.Entry
	err := s.store.RunInTx(ctx, func(tx ledger.Tx) error {
		balances, err := tx.LockBalances(ctx, userID)
		if err != nil {
			return err
		}
		if balances[userID] < amount {
			return ErrInsufficientFunds
		}
		if err := tx.InsertTransaction(ctx, t); err != nil {
			return err
		}
		entry, err = tx.ApplyDelta(ctx, ledger.Delta{
			UserID:        userID,
			TransactionID: t.ID,
			Amount:        -amount,
			Category:      ledger.CategoryWithdrawal,
			Description:   "Withdrawal request",
		})
		return err
	})
	if err != nil {
		return Receipt{}, err
	}

	s.recorded(t, entry.Category)
	s.publish(ctx, notification.KindTransactionCreated, t)
	return Receipt{Transaction: t, Balance: entry.NewBalance}, nil
}

// Transfer moves balance between two users as two linked successful legs.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (TransferReceipt, error) {
	username := strings.TrimSpace(input.RecipientUsername)
	if username == "" {
		return TransferReceipt{}, fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	if input.Amount <= 0 {
		return TransferReceipt{}, fmt.Errorf("%w: amount must be greater than 0", ErrValidation)
	}

	sender, err := s.users.FindByID(ctx, input.SenderID)
	if err != nil {
		return TransferReceipt{}, err
	}
	recipient, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return TransferReceipt{}, fmt.Errorf("%w: recipient not found", ErrInvalidRecipient)
		}
		return TransferReceipt{}, err
	}
	if recipient.ID == sender.ID {
		return TransferReceipt{}, fmt.Errorf("%w: cannot transfer to yourself", ErrInvalidRecipient)
	}

	out := s.newTransaction(sender.ID, transaction.ItemTransfer, input.Amount)
	in := s.newTransaction(recipient.ID, transaction.ItemTransfer, input.Amount)
	for _, leg := range []*transaction.Transaction{&out, &in} {
		leg.Status = transaction.StatusSuccess
		leg.PaymentMethod = transaction.MethodBalance
		leg.RecipientID = recipient.ID
		leg.Metadata.Notes = strings.TrimSpace(input.Notes)
	}
	out.ItemName = "Transfer to @" + recipient.Username
	out.LinkedTransactionID = in.ID
	out.Metadata.Direction = transaction.DirectionOut
	out.Metadata.CounterpartyID = recipient.ID
	out.Metadata.CounterpartyUsername = recipient.Username
	out.Metadata.CounterpartyName = recipient.FullName

	in.ItemName = "Transfer from @" + sender.Username
	in.LinkedTransactionID = out.ID
	in.Metadata.Direction = transaction.DirectionIn
	in.Metadata.CounterpartyID = sender.ID
	in.Metadata.CounterpartyUsername = sender.Username
	in.Metadata.CounterpartyName = sender.FullName

	var debit, credit ledger.Entry
	err = s.store.RunInTx(ctx, func(tx ledger.Tx) error {
		balances, err := tx.LockBalances(ctx, sender.ID, recipient.ID)
		if err != nil {
			return err
		}
		if balances[sender.ID] < input.Amount {
			return ErrInsufficientFunds
		}
		if err := tx.InsertTransaction(ctx, out); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, in); err != nil {
			return err
		}
		debit, err = tx.ApplyDelta(ctx, ledger.Delta{
			UserID:        sender.ID,
			TransactionID: out.ID,
			Amount:        -input.Amount,
			Category:      ledger.CategoryTransferOut,
			Description:   "Transfer to @" + recipient.Username,
		})
		if err != nil {
			return err
		}
		credit, err = tx.ApplyDelta(ctx, ledger.Delta{
			UserID:        recipient.ID,
			TransactionID: in.ID,
			Amount:        input.Amount,
			Category:      ledger.CategoryTransferIn,
			Description:   "Transfer from @" + sender.Username,
		})
		return err
	})
	if err != nil {
		return TransferReceipt{}, err
	}

	s.recorded(out, debit.Category)
	s.recorded(in, credit.Category)
	s.publishTo(sender, notification.KindTransactionUpdated, out)
	s.publishTo(recipient, notification.KindTransferReceived, in)
	return TransferReceipt{Sent: out, Received: in, Balance: debit.NewBalance}, nil
}

// SettleFromGateway applies a payment status notification. Repeated
// notifications with the same status are no-ops, unknown statuses are
// ignored, and a terminal transaction never changes.
func (s *Service) SettleFromGateway(ctx context.Context, update GatewayUpdate) (SettleResult, error) {
	target, known := gateway.MapStatus(update.TransactionStatus, update.FraudStatus)
	if !known {
		s.logger.Info("gateway status ignored",
			slog.String("order_id", update.OrderID),
			slog.String("transaction_status", update.TransactionStatus))
		return SettleResult{Outcome: OutcomeIgnored}, nil
	}

	var (
		result     SettleResult
		categories []ledger.Category
	)
	err := s.store.RunInTx(ctx, func(tx ledger.Tx) error {
		t, err := tx.LockTransactionByOrder(ctx, update.OrderID)
		if err != nil {
			return err
		}
		if update.GrossAmount != 0 && update.GrossAmount != t.Amount {
			return fmt.Errorf("%w: got %d, expected %d", ErrAmountMismatch, update.GrossAmount, t.Amount)
		}
		if t.Status == target {
			result = SettleResult{Transaction: t, Outcome: OutcomeDuplicate}
			return nil
		}
		if t.Status.Terminal() {
			return fmt.Errorf("%w: %s transaction %s received %s", ErrInvalidState, t.Status, t.ID, update.TransactionStatus)
		}

		t.Metadata.GatewayStatus = update.TransactionStatus
		if target == transaction.StatusSuccess {
			entry, err := s.settleFunds(ctx, tx, t)
			switch {
			case errors.Is(err, ErrInsufficientFunds):
				target = transaction.StatusFailed
				t.Metadata.FailureReason = "insufficient balance at settlement"
			case err != nil:
				return err
			case entry != nil:
				categories = append(categories, entry.Category)
			}
		}

		if target == transaction.StatusPending {
			// Still pending (e.g. fraud challenge): record the gateway status only.
			t.UpdatedAt = s.now()
		} else if err := t.Transition(target, s.now()); err != nil {
			return err
		}
		if err := tx.SaveTransaction(ctx, t); err != nil {
			return err
		}
		result = SettleResult{Transaction: t, Outcome: OutcomeApplied}
		return nil
	})
	if err != nil {
		return SettleResult{}, err
	}

	if result.Outcome == OutcomeApplied {
		t := result.Transaction
		s.recorded(t, categories...)
		s.logger.Info("gateway update applied",
			slog.String("transaction_id", t.ID),
			slog.String("status", string(t.Status)),
			slog.String("gateway_status", update.TransactionStatus))
		if t.Status.Terminal() {
			s.publish(ctx, notification.KindTransactionUpdated, t)
		}
	}
	return result, nil
}

// Approve finalizes a pending transaction on behalf of an admin.
func (s *Service) Approve(ctx context.Context, action AdminAction) (transaction.Transaction, error) {
	if action.PaymentMethod != "" && action.PaymentMethod != transaction.MethodManual &&
		action.PaymentMethod != transaction.MethodBalance && action.PaymentMethod != transaction.MethodGateway {
		return transaction.Transaction{}, fmt.Errorf("%w: unknown payment method %q", ErrValidation, action.PaymentMethod)
	}

	var categories []ledger.Category
	t, err := s.adminTransition(ctx, action.TransactionID, "", func(tx ledger.Tx, t *transaction.Transaction) error {
		if action.PaymentMethod != "" {
			t.PaymentMethod = action.PaymentMethod
		}
		entry, err := s.settleFunds(ctx, tx, *t)
		if err != nil {
			return err
		}
		if entry != nil {
			categories = append(categories, entry.Category)
		}
		now := s.now()
		t.Metadata.ApprovedBy = action.AdminID
		t.Metadata.ApprovedAt = &now
		t.Metadata.AdminNotes = action.Notes
		return t.Transition(transaction.StatusSuccess, now)
	})
	if err != nil {
		return transaction.Transaction{}, err
	}

	s.recorded(t, categories...)
	s.logger.Info("transaction approved", slog.String("transaction_id", t.ID), slog.String("admin_id", action.AdminID))
	s.publish(ctx, notification.KindTransactionUpdated, t)
	return t, nil
}

// Reject fails a pending transaction on behalf of an admin, refunding a
// pending withdrawal.
func (s *Service) Reject(ctx context.Context, action AdminAction) (transaction.Transaction, error) {
	var categories []ledger.Category
	t, err := s.adminTransition(ctx, action.TransactionID, "", func(tx ledger.Tx, t *transaction.Transaction) error {
		entry, err := s.refundWithdrawal(ctx, tx, *t, "Withdrawal rejected")
		if err != nil {
			return err
		}
		if entry != nil {
			categories = append(categories, entry.Category)
		}
		now := s.now()
		t.Metadata.RejectedBy = action.AdminID
		t.Metadata.RejectedAt = &now
		t.Metadata.AdminNotes = action.Notes
		return t.Transition(transaction.StatusFailed, now)
	})
	if err != nil {
		return transaction.Transaction{}, err
	}

	s.recorded(t, categories...)
	s.logger.Info("transaction rejected", slog.String("transaction_id", t.ID), slog.String("admin_id", action.AdminID))
	s.publish(ctx, notification.KindTransactionUpdated, t)
	return t, nil
}

// Cancel lets the owner abandon one of their own pending transactions. A
// pending withdrawal is refunded.
func (s *Service) Cancel(ctx context.Context, userID, transactionID string) (transaction.Transaction, error) {
	var categories []ledger.Category
	t, err := s.adminTransition(ctx, transactionID, userID, func(tx ledger.Tx, t *transaction.Transaction) error {
		entry, err := s.refundWithdrawal(ctx, tx, *t, "Withdrawal cancelled")
		if err != nil {
			return err
		}
		if entry != nil {
			categories = append(categories, entry.Category)
		}
		now := s.now()
		t.Metadata.CancelledAt = &now
		return t.Transition(transaction.StatusCancelled, now)
	})
	if err != nil {
		return transaction.Transaction{}, err
	}

	s.recorded(t, categories...)
	s.publish(ctx, notification.KindTransactionUpdated, t)
	return t, nil
}

// GetTransaction returns one of the caller's transactions.
func (s *Service) GetTransaction(ctx context.Context, userID, id string) (transaction.Transaction, error) {
	t, err := s.store.Transaction(ctx, id)
	if err != nil {
		return transaction.Transaction{}, err
	}
	if t.UserID != userID {
		return transaction.Transaction{}, ErrForbidden
	}
	return t, nil
}

// ListUserTransactions pages through the caller's transactions, newest first.
func (s *Service) ListUserTransactions(ctx context.Context, userID string, page ledger.Page) ([]transaction.Transaction, int64, error) {
	return s.store.ListTransactions(ctx, transaction.Filter{UserID: userID}, page)
}

// ListTransactions pages through all transactions matching filter, for admins.
func (s *Service) ListTransactions(ctx context.Context, filter transaction.Filter, page ledger.Page) ([]transaction.Transaction, int64, error) {
	return s.store.ListTransactions(ctx, filter, page)
}

// adminTransition locks a pending transaction, lets fn mutate it and saves the
// result. A non-empty ownerID restricts the transition to that user's
// transactions and is checked before the status.
func (s *Service) adminTransition(ctx context.Context, id, ownerID string, fn func(tx ledger.Tx, t *transaction.Transaction) error) (transaction.Transaction, error) {
	var result transaction.Transaction
	err := s.store.RunInTx(ctx, func(tx ledger.Tx) error {
		t, err := tx.LockTransaction(ctx, id)
		if err != nil {
			return err
		}
		if ownerID != "" && t.UserID != ownerID {
			return ErrForbidden
		}
		if t.Status != transaction.StatusPending {
			return fmt.Errorf("%w: transaction is %s", ErrInvalidState, t.Status)
		}
		if err := fn(tx, &t); err != nil {
			return err
		}
		if err := tx.SaveTransaction(ctx, t); err != nil {
			return err
		}
		result = t
		return nil
	})
	return result, err
}

// settleFunds applies the balance effect of a pending transaction turning
// successful: top-ups credit, balance-funded purchases debit, everything else
// has already moved (withdrawals) or never moves (gateway-paid purchases).
func (s *Service) settleFunds(ctx context.Context, tx ledger.Tx, t transaction.Transaction) (*ledger.Entry, error) {
	var delta ledger.Delta
	switch {
	case t.ItemType == transaction.ItemTopUp:
		delta = ledger.Delta{Amount: t.Amount, Category: ledger.CategoryTopUp, Description: "Top up balance"}
	case t.ItemType.IsProduct() && t.PaymentMethod == transaction.MethodBalance:
		delta = ledger.Delta{Amount: -t.Amount, Category: ledger.CategoryPurchase, Description: "Purchase " + t.ItemName}
	case t.ItemType == transaction.ItemTransfer:
		return nil, fmt.Errorf("%w: transfers settle on creation", ErrInvalidState)
	default:
		return nil, nil
	}

	if _, err := tx.LockBalances(ctx, t.UserID); err != nil {
		return nil, err
	}
	delta.UserID = t.UserID
	delta.TransactionID = t.ID
	entry, err := tx.ApplyDelta(ctx, delta)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *Service) refundWithdrawal(ctx context.Context, tx ledger.Tx, t transaction.Transaction, description string) (*ledger.Entry, error) {
	if t.ItemType != transaction.ItemWithdrawal {
		return nil, nil
	}
	if _, err := tx.LockBalances(ctx, t.UserID); err != nil {
		return nil, err
	}
	entry, err := tx.ApplyDelta(ctx, ledger.Delta{
		UserID:        t.UserID,
		TransactionID: t.ID,
		Amount:        t.Amount,
		Category:      ledger.CategoryRefund,
		Description:   description,
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *Service) lookupItem(ctx context.Context, itemType transaction.ItemType, itemID string) (catalog.Item, error) {
	if !itemType.IsProduct() {
		return catalog.Item{}, fmt.Errorf("%w: item type must be one of imei, bypass, fmi-off", ErrValidation)
	}
	if strings.TrimSpace(itemID) == "" {
		return catalog.Item{}, fmt.Errorf("%w: item id is required", ErrValidation)
	}
	return s.items.Item(ctx, itemType, itemID)
}

func (s *Service) checkout(ctx context.Context, t transaction.Transaction, user identity.User) (string, error) {
	start := time.Now()
	url, err := s.gateway.CreateCheckout(ctx, gateway.Checkout{
		OrderID:  t.OrderID,
		Amount:   t.Amount,
		ItemID:   t.ItemID,
		ItemName: t.ItemName,
		Customer: gateway.Customer{Name: user.DisplayName(), Email: user.Email, Phone: user.PhoneNumber},
	})
	s.metrics.ObserveCheckout(err, time.Since(start))
	if err != nil {
		s.logger.Warn("checkout request failed", slog.String("order_id", t.OrderID), slog.Any("error", err))
		if !errors.Is(err, ErrGatewayUnavailable) {
			err = fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
		}
		return "", err
	}
	return url, nil
}

func (s *Service) newTransaction(userID string, itemType transaction.ItemType, amount int64) transaction.Transaction {
	now := s.now()
	return transaction.Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		ItemType:  itemType,
		Amount:    amount,
		Status:    transaction.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Service) recorded(t transaction.Transaction, categories ...ledger.Category) {
	s.metrics.ObserveTransaction(string(t.ItemType), string(t.Status))
	for _, c := range categories {
		s.metrics.ObserveBalanceMutation(string(c))
	}
}

func (s *Service) publish(ctx context.Context, kind notification.Kind, t transaction.Transaction) {
	if s.publisher == nil {
		return
	}
	user, err := s.users.FindByID(ctx, t.UserID)
	if err != nil {
		s.logger.Warn("notification recipient lookup failed", slog.String("user_id", t.UserID), slog.Any("error", err))
		user = identity.User{ID: t.UserID}
	}
	s.publishTo(user, kind, t)
}

func (s *Service) publishTo(user identity.User, kind notification.Kind, t transaction.Transaction) {
	if s.publisher == nil {
		return
	}
	s.publisher.Enqueue(notification.Event{
		Kind:        kind,
		Transaction: t,
		Recipient: notification.Recipient{
			UserID:    user.ID,
			Username:  user.Username,
			FullName:  user.FullName,
			Email:     user.Email,
			Phone:     user.PhoneNumber,
			PushToken: user.PushToken,
		},
		OccurredAt: s.now(),
	})
}
