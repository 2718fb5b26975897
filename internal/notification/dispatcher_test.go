package notification

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"firebase.google.com/go/v4/messaging"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gopkg.in/gomail.v2"

	"github.com/unlockpay/backend/internal/logging"
	"github.com/unlockpay/backend/internal/metrics"
	"github.com/unlockpay/backend/internal/transaction"
)

type recordingChannel struct {
	mu     sync.Mutex
	events []Event
	fail   bool
}

func (r *recordingChannel) Name() string { return "recording" }

func (r *recordingChannel) Send(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	if r.fail {
		return errors.New("downstream unavailable")
	}
	return nil
}

func (r *recordingChannel) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type panickingChannel struct{}

func (panickingChannel) Name() string                      { return "panics" }
func (panickingChannel) Send(context.Context, Event) error { panic("boom") }

func TestDispatcherDeliversToEveryChannel(t *testing.T) {
	ok := &recordingChannel{}
	failing := &recordingChannel{fail: true}
	d := NewDispatcher(logging.Discard(), metrics.New(), 2, 8, panickingChannel{}, failing, ok)
	d.Start()

	for i := 0; i < 3; i++ {
		if !d.Enqueue(Event{Kind: KindTransactionUpdated, Transaction: transaction.Transaction{ID: "tx"}}) {
			t.Fatalf("enqueue %d rejected", i)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if ok.count() != 3 || failing.count() != 3 {
		t.Fatalf("expected 3 deliveries per channel, got %d and %d", ok.count(), failing.count())
	}
	if d.Enqueue(Event{}) {
		t.Fatal("expected enqueue after stop to be rejected")
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	d := NewDispatcher(logging.Discard(), nil, 1, 1)
	if !d.Enqueue(Event{}) {
		t.Fatal("first event should fit")
	}
	if d.Enqueue(Event{}) {
		t.Fatal("second event should be dropped while no worker runs")
	}
}

type fakeBot struct {
	sent []tgbotapi.MessageConfig
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func TestTelegramChannelFormatsAlert(t *testing.T) {
	bot := &fakeBot{}
	ch := newTelegram(bot, -100)
	event := Event{
		Kind: KindTransactionCreated,
		Transaction: transaction.Transaction{
			ID: "tx-1", ItemName: "iCloud <Bypass>", Amount: 250_000,
			Status: transaction.StatusPending, PaymentURL: "https://pay.example/tx-1",
		},
		Recipient:  Recipient{FullName: "Budi", Email: "budi@example.com"},
		OccurredAt: time.Now(),
	}
	if err := ch.Send(context.Background(), event); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(bot.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(bot.sent))
	}
	msg := bot.sent[0]
	if msg.ParseMode != tgbotapi.ModeHTML || msg.ChatID != -100 {
		t.Fatalf("unexpected message config %+v", msg)
	}
	for _, want := range []string{"NEW TRANSACTION", "Rp250.000", "iCloud &lt;Bypass&gt;", "Click here to pay"} {
		if !strings.Contains(msg.Text, want) {
			t.Fatalf("message missing %q:\n%s", want, msg.Text)
		}
	}
}

func TestTruncateCapsLength(t *testing.T) {
	long := strings.Repeat("é", telegramMaxMessage+10)
	got := truncate(long, telegramMaxMessage)
	if n := len([]rune(got)); n != telegramMaxMessage {
		t.Fatalf("expected %d runes, got %d", telegramMaxMessage, n)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatal("expected ellipsis")
	}
}

type fakeMailer struct {
	messages []*gomail.Message
}

func (f *fakeMailer) DialAndSend(m ...*gomail.Message) error {
	f.messages = append(f.messages, m...)
	return nil
}

func TestEmailChannelSkipsMissingAddress(t *testing.T) {
	mailer := &fakeMailer{}
	ch := &EmailChannel{dialer: mailer, from: "noreply@unlockpay.test", senderName: "UnlockPay"}

	if err := ch.Send(context.Background(), Event{Transaction: transaction.Transaction{Status: transaction.StatusSuccess}}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(mailer.messages) != 0 {
		t.Fatal("expected no email without recipient address")
	}

	event := Event{
		Kind:        KindTransactionUpdated,
		Transaction: transaction.Transaction{ID: "tx-2", ItemType: transaction.ItemTopUp, Amount: 50_000, Status: transaction.StatusSuccess},
		Recipient:   Recipient{Username: "budi", Email: "budi@example.com"},
	}
	if err := ch.Send(context.Background(), event); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(mailer.messages) != 1 {
		t.Fatalf("expected one email, got %d", len(mailer.messages))
	}
	if got := mailer.messages[0].GetHeader("Subject"); len(got) != 1 || got[0] != "Transaction success" {
		t.Fatalf("unexpected subject %v", got)
	}
}

type fakeMessaging struct {
	sent []*messaging.Message
}

func (f *fakeMessaging) Send(_ context.Context, m *messaging.Message) (string, error) {
	f.sent = append(f.sent, m)
	return "projects/test/messages/1", nil
}

func TestPushChannelSkipsPending(t *testing.T) {
	client := &fakeMessaging{}
	ch := &PushChannel{client: client, logger: logging.Discard()}
	recipient := Recipient{UserID: "u1", PushToken: "token"}

	pending := Event{Kind: KindTransactionCreated, Recipient: recipient, Transaction: transaction.Transaction{Status: transaction.StatusPending}}
	if err := ch.Send(context.Background(), pending); err != nil {
		t.Fatalf("send pending: %v", err)
	}
	if len(client.sent) != 0 {
		t.Fatal("pending transactions must not push")
	}

	done := Event{Kind: KindTransactionUpdated, Recipient: recipient, Transaction: transaction.Transaction{
		ID: "tx-3", ItemType: transaction.ItemTopUp, Status: transaction.StatusSuccess,
	}}
	if err := ch.Send(context.Background(), done); err != nil {
		t.Fatalf("send success: %v", err)
	}
	if len(client.sent) != 1 || client.sent[0].Notification.Title != "Payment Successful" {
		t.Fatalf("unexpected push %+v", client.sent)
	}
	if client.sent[0].Notification.Body != "Your Top Up transaction was successful" {
		t.Fatalf("unexpected body %q", client.sent[0].Notification.Body)
	}
}

func TestFormatRupiah(t *testing.T) {
	cases := map[int64]string{0: "Rp0", 999: "Rp999", 1_000: "Rp1.000", 150_000: "Rp150.000", 12_345_678: "Rp12.345.678", -5_000: "-Rp5.000"}
	for in, want := range cases {
		if got := FormatRupiah(in); got != want {
			t.Fatalf("FormatRupiah(%d) = %s, want %s", in, got, want)
		}
	}
}
