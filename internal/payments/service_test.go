package payments

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/unlockpay/backend/internal/catalog"
	"github.com/unlockpay/backend/internal/gateway"
	"github.com/unlockpay/backend/internal/identity"
	"github.com/unlockpay/backend/internal/ledger"
	"github.com/unlockpay/backend/internal/logging"
	"github.com/unlockpay/backend/internal/notification"
	"github.com/unlockpay/backend/internal/transaction"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []notification.Event
}

func (p *recordingPublisher) Enqueue(event notification.Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return true
}

func (p *recordingPublisher) kinds() []notification.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]notification.Kind, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Kind)
	}
	return out
}

type failingGateway struct{}

func (failingGateway) CreateCheckout(context.Context, gateway.Checkout) (string, error) {
	return "", errors.New("connection refused")
}

type fixture struct {
	svc       *Service
	store     *ledger.MemoryStore
	users     identity.Repository
	publisher *recordingPublisher
}

func newFixture(t *testing.T, gw gateway.Gateway) *fixture {
	t.Helper()
	if gw == nil {
		gw = gateway.StaticGateway{BaseURL: "https://pay.test"}
	}
	store := ledger.NewMemoryStore()
	users := identity.NewMemoryRepository()
	publisher := &recordingPublisher{}
	items := catalog.NewMemoryCatalog(catalog.DevelopmentItems()...)
	svc := NewService(store, users, items, gw, publisher, nil, logging.Discard())
	return &fixture{svc: svc, store: store, users: users, publisher: publisher}
}

func (f *fixture) user(t *testing.T, username string, balance int64) identity.User {
	t.Helper()
	u := identity.User{
		ID:       uuid.NewString(),
		Username: username,
		FullName: username + " tester",
		Email:    username + "@example.com",
		Role:     identity.RoleUser,
	}
	require.NoError(t, f.users.Create(context.Background(), u))
	require.NoError(t, f.store.EnsureAccount(context.Background(), u.ID))
	if balance > 0 {
		ledger.SeedBalance(f.store, u.ID, balance)
	}
	return u
}

func (f *fixture) balance(t *testing.T, userID string) int64 {
	t.Helper()
	b, err := f.store.Balance(context.Background(), userID)
	require.NoError(t, err)
	return b
}

// requireConsistentLedger checks that every history entry chains correctly
// and that each balance equals the sum of its history.
func (f *fixture) requireConsistentLedger(t *testing.T, userIDs ...string) {
	t.Helper()
	for _, e := range f.store.Entries() {
		require.Equal(t, e.PreviousBalance+e.Amount, e.NewBalance, "entry %s", e.ID)
		require.GreaterOrEqual(t, e.NewBalance, int64(0))
	}
	for _, id := range userIDs {
		snap, err := f.store.Snapshot(context.Background(), id)
		require.NoError(t, err)
		require.Equal(t, snap.Balance, snap.HistorySum)
	}
}

func TestDirectPurchaseInsufficientBalance(t *testing.T) {
	f := newFixture(t, nil)
	alice := f.user(t, "alice", 100_000)

	_, err := f.svc.DirectPurchase(context.Background(), alice.ID, transaction.ItemIMEI, "iphone-imei-clean")
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.Equal(t, int64(100_000), f.balance(t, alice.ID))

	_, total, err := f.svc.ListUserTransactions(context.Background(), alice.ID, ledger.NewPage(1, 10))
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, f.publisher.kinds())
}

func TestDirectPurchaseDebitsBalance(t *testing.T) {
	f := newFixture(t, nil)
	alice := f.user(t, "alice", 200_000)

	receipt, err := f.svc.DirectPurchase(context.Background(), alice.ID, transaction.ItemIMEI, "iphone-imei-clean")
	require.NoError(t, err)
	require.Equal(t, int64(50_000), receipt.Balance)
	require.Equal(t, transaction.StatusSuccess, receipt.Transaction.Status)
	require.Equal(t, transaction.MethodBalance, receipt.Transaction.PaymentMethod)
	require.Equal(t, int64(50_000), f.balance(t, alice.ID))

	entries, _, err := f.store.History(context.Background(), alice.ID, ledger.NewPage(1, 10))
	require.NoError(t, err)
	require.Equal(t, ledger.CategoryPurchase, entries[0].Category)
	require.Equal(t, receipt.Transaction.ID, entries[0].TransactionID)
	f.requireConsistentLedger(t, alice.ID)
}

func TestUnknownItem(t *testing.T) {
	f := newFixture(t, nil)
	alice := f.user(t, "alice", 500_000)

	_, err := f.svc.DirectPurchase(context.Background(), alice.ID, transaction.ItemBypass, "does-not-exist")
	require.ErrorIs(t, err, ErrItemNotFound)

	_, err = f.svc.CreatePurchase(context.Background(), PurchaseInput{UserID: alice.ID, ItemType: transaction.ItemTopUp, ItemID: "x"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestTransferMovesBalanceBetweenUsers(t *testing.T) {
	f := newFixture(t, nil)
	alice := f.user(t, "alice", 100_000)
	bob := f.user(t, "bob", 0)

	receipt, err := f.svc.Transfer(context.Background(), TransferInput{
		SenderID:          alice.ID,
		RecipientUsername: "bob",
		Amount:            30_000,
		Notes:             "lunch",
	})
	require.NoError(t, err)
	require.Equal(t, int64(70_000), receipt.Balance)
	require.Equal(t, int64(70_000), f.balance(t, alice.ID))
	require.Equal(t, int64(30_000), f.balance(t, bob.ID))

	sent, received := receipt.Sent, receipt.Received
	require.Equal(t, transaction.StatusSuccess, sent.Status)
	require.Equal(t, transaction.StatusSuccess, received.Status)
	require.Equal(t, received.ID, sent.LinkedTransactionID)
	require.Equal(t, sent.ID, received.LinkedTransactionID)
	require.Equal(t, bob.ID, sent.RecipientID)
	require.Equal(t, transaction.DirectionOut, sent.Metadata.Direction)
	require.Equal(t, "bob", sent.Metadata.CounterpartyUsername)
	require.Equal(t, transaction.DirectionIn, received.Metadata.Direction)
	require.Equal(t, "alice", received.Metadata.CounterpartyUsername)
	require.Equal(t, "lunch", received.Metadata.Notes)

	require.Equal(t, []notification.Kind{notification.KindTransactionUpdated, notification.KindTransferReceived}, f.publisher.kinds())
	f.requireConsistentLedger(t, alice.ID, bob.ID)
}

func TestTransferRejectsInvalidRecipients(t *testing.T) {
	f := newFixture(t, nil)
	alice := f.user(t, "alice", 100_000)
	f.user(t, "bob", 0)

	_, err := f.svc.Transfer(context.Background(), TransferInput{SenderID: alice.ID, RecipientUsername: "alice", Amount: 1_000})
	require.ErrorIs(t, err, ErrInvalidRecipient)

	_, err = f.svc.Transfer(context.Background(), TransferInput{SenderID: alice.ID, RecipientUsername: "carol", Amount: 1_000})
	require.ErrorIs(t, err, ErrInvalidRecipient)

	_, err = f.svc.Transfer(context.Background(), TransferInput{SenderID: alice.ID, RecipientUsername: "bob", Amount: 0})
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Transfer(context.Background(), TransferInput{SenderID: alice.ID, RecipientUsername: "bob", Amount: 100_001})
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.Equal(t, int64(100_000), f.balance(t, alice.ID))
}

func TestTopUpCreditsOnceForRepeatedNotifications(t *testing.T) {
	f := newFixture(t, nil)
	alice := f.user(t, "alice", 0)
	ctx := context.Background()

	topup, err := f.svc.TopUp(ctx, alice.ID, 50_000)
	require.NoError(t, err)
	require.Equal(t, transaction.StatusPending, topup.Status)
	require.Equal(t, "https://pay.test/checkout/"+topup.ID, topup.PaymentURL)
	require.Equal(t, topup.ID, topup.OrderID)
	require.Zero(t, f.balance(t, alice.ID))

	update := GatewayUpdate{OrderID: topup.OrderID, TransactionStatus: "settlement", GrossAmount: 50_000}
	outcomes := make([]Outcome, 0, 3)
	for i := 0; i < 3; i++ {
		res, err := f.svc.SettleFromGateway(ctx, update)
		require.NoError(t, err)
		outcomes = append(outcomes, res.Outcome)
	}
	require.Equal(t, []Outcome{OutcomeApplied, OutcomeDuplicate, OutcomeDuplicate}, outcomes)
	require.Equal(t, int64(50_000), f.balance(t, alice.ID))

	_, err = f.svc.SettleFromGateway(ctx, GatewayUpdate{OrderID: topup.OrderID, TransactionStatus: "expire"})
	require.ErrorIs(t, err, ErrInvalidState)
	require.Equal(t, int64(50_000), f.balance(t, alice.ID))

	stored, err := f.svc.GetTransaction(ctx, alice.ID, topup.ID)
	require.NoError(t, err)
	require.Equal(t, transaction.StatusSuccess, stored.Status)
	require.Equal(t, "settlement", stored.Metadata.GatewayStatus)
	f.requireConsistentLedger(t, alice.ID)
}

func TestSettleFromGatewayEdgeCases(t *testing.T) {
	f := newFixture(t, nil)
	alice := f.user(t, "alice", 0)
	ctx := context.Background()

	topup, err := f.svc.TopUp(ctx, alice.ID, 25_000)
	require.NoError(t, err)

	res, err := f.svc.SettleFromGateway(ctx, GatewayUpdate{OrderID: topup.OrderID, TransactionStatus: "refund"})
	require.NoError(t, err)
	require.Equal(t, OutcomeIgnored, res.Outcome)

	_, err = f.svc.SettleFromGateway(ctx, GatewayUpdate{OrderID: topup.OrderID, TransactionStatus: "settlement", GrossAmount: 99_000})
	require.ErrorIs(t, err, ErrAmountMismatch)

	_, err = f.svc.SettleFromGateway(ctx, GatewayUpdate{OrderID: "missing", TransactionStatus: "settlement"})
	require.ErrorIs(t, err, ErrTransactionNotFound)

	res, err = f.svc.SettleFromGateway(ctx, GatewayUpdate{OrderID: topup.OrderID, TransactionStatus: "capture", FraudStatus: "challenge"})
	require.NoError(t, err)
	require.Equal(t, OutcomeDuplicate, res.Outcome)

	res, err = f.svc.SettleFromGateway(ctx, GatewayUpdate{OrderID: topup.OrderID, TransactionStatus: "expire"})
	require.NoError(t, err)
	require.Equal(t, transaction.StatusFailed, res.Transaction.Status)
	require.Zero(t, f.balance(t, alice.ID))
}

func TestGatewayPurchaseSettlesWithoutBalanceChange(t *testing.T) {
	f := newFixture(t, nil)
	alice := f.user(t, "alice", 10_000)
	ctx := context.Background()

	purchase, err := f.svc.CreatePurchase(ctx, PurchaseInput{UserID: alice.ID, ItemType: transaction.ItemFMIOff, ItemID: "fmi-off-standard"})
	require.NoError(t, err)
	require.Equal(t, transaction.MethodGateway, purchase.PaymentMethod)
	require.NotEmpty(t, purchase.PaymentURL)

	res, err := f.svc.SettleFromGateway(ctx, GatewayUpdate{OrderID: purchase.OrderID, TransactionStatus: "capture", FraudStatus: "accept", GrossAmount: 100_000})
	require.NoError(t, err)
	require.Equal(t, transaction.StatusSuccess, res.Transaction.Status)
	require.Equal(t, int64(10_000), f.balance(t, alice.ID))
	require.Equal(t, []notification.Kind{notification.KindTransactionCreated, notification.KindTransactionUpdated}, f.publisher.kinds())
}

func TestGatewayFailureLeavesNoTransaction(t *testing.T) {
	f := newFixture(t, failingGateway{})
	alice := f.user(t, "alice", 0)
	ctx := context.Background()

	_, err := f.svc.CreatePurchase(ctx, PurchaseInput{UserID: alice.ID, ItemType: transaction.ItemIMEI, ItemID: "iphone-imei-clean"})
	require.ErrorIs(t, err, ErrGatewayUnavailable)

	_, err = f.svc.TopUp(ctx, alice.ID, 50_000)
	require.ErrorIs(t, err, ErrGatewayUnavailable)

	_, total, err := f.svc.ListTransactions(ctx, transaction.Filter{}, ledger.NewPage(1, 10))
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestBalancePurchaseDebitsOnApproval(t *testing.T) {
	f := newFixture(t, nil)
	alice := f.user(t, "alice", 200_000)
	admin := f.user(t, "admin", 0)
	ctx := context.Background()

	purchase, err := f.svc.CreatePurchase(ctx, PurchaseInput{
		UserID:        alice.ID,
		ItemType:      transaction.ItemIMEI,
		ItemID:        "iphone-imei-clean",
		PaymentMethod: transaction.MethodBalance,
	})
	require.NoError(t, err)
	require.Empty(t, purchase.PaymentURL)
	require.Equal(t, int64(200_000), f.balance(t, alice.ID))

	// Spend the balance elsewhere so approval can no longer cover the price.
	_, err = f.svc.Withdraw(ctx, alice.ID, 100_000)
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, AdminAction{TransactionID: purchase.ID, AdminID: admin.ID})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	ledger.SeedBalance(f.store, alice.ID, 100_000)
	approved, err := f.svc.Approve(ctx, AdminAction{TransactionID: purchase.ID, AdminID: admin.ID, Notes: "ok"})
	require.NoError(t, err)
	require.Equal(t, transaction.StatusSuccess, approved.Status)
	require.Equal(t, admin.ID, approved.Metadata.ApprovedBy)
	require.NotNil(t, approved.Metadata.ApprovedAt)
	require.Equal(t, int64(50_000), f.balance(t, alice.ID))
	f.requireConsistentLedger(t, alice.ID)
}

func TestManualApprovalOfBalancePurchaseSkipsDebit(t *testing.T) {
	f := newFixture(t, nil)
	alice := f.user(t, "alice", 150_000)
	ctx := context.Background()

	purchase, err := f.svc.CreatePurchase(ctx, PurchaseInput{UserID: alice.ID, ItemType: transaction.ItemIMEI, ItemID: "iphone-imei-clean", PaymentMethod: transaction.MethodBalance})
	require.NoError(t, err)

	approved, err := f.svc.Approve(ctx, AdminAction{TransactionID: purchase.ID, AdminID: "admin", PaymentMethod: transaction.MethodManual})
	require.NoError(t, err)
	require.Equal(t, transaction.MethodManual, approved.PaymentMethod)
	require.Equal(t, int64(150_000), f.balance(t, alice.ID))
}

func TestBalancePurchaseFailsWhenGatewaySettlesWithoutFunds(t *testing.T) {
	f := newFixture(t, nil)
	alice := f.user(t, "alice", 150_000)
	ctx := context.Background()

	purchase, err := f.svc.CreatePurchase(ctx, PurchaseInput{UserID: alice.ID, ItemType: transaction.ItemIMEI, ItemID: "iphone-imei-clean", PaymentMethod: transaction.MethodBalance})
	require.NoError(t, err)
	require.Equal(t, purchase.ID, purchase.OrderID)

	_, err = f.svc.Withdraw(ctx, alice.ID, 100_000)
	require.NoError(t, err)
	require.Equal(t, int64(50_000), f.balance(t, alice.ID))

	res, err := f.svc.SettleFromGateway(ctx, GatewayUpdate{OrderID: purchase.OrderID, TransactionStatus: "settlement", GrossAmount: 150_000})
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, res.Outcome)
	require.Equal(t, transaction.StatusFailed, res.Transaction.Status)
	require.Equal(t, "insufficient balance at settlement", res.Transaction.Metadata.FailureReason)
	require.Equal(t, int64(50_000), f.balance(t, alice.ID))

	entries, total, err := f.store.History(ctx, alice.ID, ledger.NewPage(1, 10))
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, ledger.CategoryWithdrawal, entries[0].Category)
	for _, e := range entries {
		require.NotEqual(t, purchase.ID, e.TransactionID)
	}

	stored, err := f.svc.GetTransaction(ctx, alice.ID, purchase.ID)
	require.NoError(t, err)
	require.Equal(t, transaction.StatusFailed, stored.Status)
	f.requireConsistentLedger(t, alice.ID)
}

func TestWithdrawInsufficientBalance(t *testing.T) {
	f := newFixture(t, nil)
	alice := f.user(t, "alice", 100_000)

	_, err := f.svc.Withdraw(context.Background(), alice.ID, 200_000)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.Equal(t, int64(100_000), f.balance(t, alice.ID))

	_, err = f.svc.Withdraw(context.Background(), alice.ID, -5)
	require.ErrorIs(t, err, ErrValidation)
}

func TestWithdrawalLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	alice := f.user(t, "alice", 100_000)
	ctx := context.Background()

	approvedReq, err := f.svc.Withdraw(ctx, alice.ID, 40_000)
	require.NoError(t, err)
	require.Equal(t, int64(60_000), approvedReq.Balance)
	require.Equal(t, transaction.StatusPending, approvedReq.Transaction.Status)

	_, err = f.svc.Approve(ctx, AdminAction{TransactionID: approvedReq.Transaction.ID, AdminID: "admin"})
	require.NoError(t, err)
	require.Equal(t, int64(60_000), f.balance(t, alice.ID))

	rejectedReq, err := f.svc.Withdraw(ctx, alice.ID, 10_000)
	require.NoError(t, err)
	rejected, err := f.svc.Reject(ctx, AdminAction{TransactionID: rejectedReq.Transaction.ID, AdminID: "admin", Notes: "bank details invalid"})
	require.NoError(t, err)
	require.Equal(t, transaction.StatusFailed, rejected.Status)
	require.Equal(t, "bank details invalid", rejected.Metadata.AdminNotes)
	require.Equal(t, int64(60_000), f.balance(t, alice.ID))

	_, err = f.svc.Reject(ctx, AdminAction{TransactionID: rejectedReq.Transaction.ID, AdminID: "admin"})
	require.ErrorIs(t, err, ErrInvalidState)
	_, err = f.svc.Approve(ctx, AdminAction{TransactionID: approvedReq.Transaction.ID, AdminID: "admin"})
	require.ErrorIs(t, err, ErrInvalidState)

	entries, _, err := f.store.History(ctx, alice.ID, ledger.NewPage(1, 1))
	require.NoError(t, err)
	require.Equal(t, ledger.CategoryRefund, entries[0].Category)
	f.requireConsistentLedger(t, alice.ID)
}

func TestCancelOwnPendingTransaction(t *testing.T) {
	f := newFixture(t, nil)
	alice := f.user(t, "alice", 80_000)
	bob := f.user(t, "bob", 0)
	ctx := context.Background()

	req, err := f.svc.Withdraw(ctx, alice.ID, 30_000)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, bob.ID, req.Transaction.ID)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.GetTransaction(ctx, bob.ID, req.Transaction.ID)
	require.ErrorIs(t, err, ErrForbidden)

	cancelled, err := f.svc.Cancel(ctx, alice.ID, req.Transaction.ID)
	require.NoError(t, err)
	require.Equal(t, transaction.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.Metadata.CancelledAt)
	require.Equal(t, int64(80_000), f.balance(t, alice.ID))

	_, err = f.svc.Cancel(ctx, alice.ID, req.Transaction.ID)
	require.ErrorIs(t, err, ErrInvalidState)
	// Someone else's transaction stays forbidden whatever its status.
	_, err = f.svc.Cancel(ctx, bob.ID, req.Transaction.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Cancel(ctx, alice.ID, uuid.NewString())
	require.ErrorIs(t, err, ErrTransactionNotFound)
	f.requireConsistentLedger(t, alice.ID)
}

func TestConcurrentTransfersNeverOverdraw(t *testing.T) {
	f := newFixture(t, nil)
	alice := f.user(t, "alice", 10_000)
	bob := f.user(t, "bob", 10_000)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := alice, "bob"
			if i%2 == 1 {
				from, to = bob, "alice"
			}
			_, _ = f.svc.Transfer(ctx, TransferInput{SenderID: from.ID, RecipientUsername: to, Amount: 1_500})
		}(i)
	}
	wg.Wait()

	require.Equal(t, int64(20_000), f.balance(t, alice.ID)+f.balance(t, bob.ID))
	f.requireConsistentLedger(t, alice.ID, bob.ID)
}
