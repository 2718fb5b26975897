package notification

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/unlockpay/backend/internal/transaction"
)

var jakarta = loadJakarta()

func loadJakarta() *time.Location {
	loc, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		return time.FixedZone("WIB", 7*60*60)
	}
	return loc
}

// FormatRupiah renders an amount the Indonesian way, e.g. Rp150.000.
func FormatRupiah(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return sign + "Rp" + b.String()
}

func itemLabel(t transaction.Transaction) string {
	if t.ItemName != "" {
		return t.ItemName
	}
	switch t.ItemType {
	case transaction.ItemTopUp:
		return "Top Up"
	case transaction.ItemWithdrawal:
		return "Withdrawal"
	case transaction.ItemTransfer:
		return "Transfer"
	}
	return string(t.ItemType)
}

func statusLabel(s transaction.Status) string {
	switch s {
	case transaction.StatusSuccess:
		return "SUCCESS ✅"
	case transaction.StatusFailed:
		return "FAILED ❌"
	case transaction.StatusPending:
		return "PENDING ⏳"
	case transaction.StatusCancelled:
		return "CANCELLED 🚫"
	}
	return strings.ToUpper(string(s))
}

// adminAlert renders the HTML message posted to the admin Telegram chat.
func adminAlert(event Event) string {
	t := event.Transaction
	title := "📢 <b>TRANSACTION UPDATE</b>"
	switch event.Kind {
	case KindTransactionCreated:
		title = "🛒 <b>NEW TRANSACTION</b>"
		if t.ItemType == transaction.ItemWithdrawal {
			title = "🏧 <b>WITHDRAWAL REQUEST</b>"
		}
	case KindTransferReceived:
		title = "🔁 <b>BALANCE TRANSFER</b>"
	}

	var b strings.Builder
	b.WriteString(title + "\n------------------------\n")
	fmt.Fprintf(&b, "📌 <b>Transaction ID:</b> %s\n", html.EscapeString(t.ID))
	fmt.Fprintf(&b, "👤 <b>Customer:</b> %s\n", html.EscapeString(event.Recipient.DisplayName()))
	if event.Recipient.Email != "" {
		fmt.Fprintf(&b, "📧 <b>Email:</b> %s\n", html.EscapeString(event.Recipient.Email))
	}
	if event.Recipient.Phone != "" {
		fmt.Fprintf(&b, "📱 <b>Phone:</b> %s\n", html.EscapeString(event.Recipient.Phone))
	}
	fmt.Fprintf(&b, "🛍️ <b>Item:</b> %s\n", html.EscapeString(itemLabel(t)))
	fmt.Fprintf(&b, "💰 <b>Amount:</b> %s\n", FormatRupiah(t.Amount))
	if t.Metadata.CounterpartyUsername != "" {
		fmt.Fprintf(&b, "🔗 <b>Counterparty:</b> %s\n", html.EscapeString(t.Metadata.CounterpartyUsername))
	}
	fmt.Fprintf(&b, "📅 <b>Time:</b> %s\n", event.OccurredAt.In(jakarta).Format("02/01/2006 15:04:05"))
	if t.PaymentURL != "" && t.Status == transaction.StatusPending {
		fmt.Fprintf(&b, "🔗 <b>Payment Link:</b> <a href=\"%s\">Click here to pay</a>\n", html.EscapeString(t.PaymentURL))
	}
	b.WriteString("------------------------\n")
	fmt.Fprintf(&b, "<b>Status:</b> <i>%s</i>", statusLabel(t.Status))
	return b.String()
}

// pushContent returns the title and body of a device notification. Pending
// transactions produce no push.
func pushContent(event Event) (title, body string, ok bool) {
	t := event.Transaction
	if event.Kind == KindTransferReceived {
		from := t.Metadata.CounterpartyName
		if from == "" {
			from = t.Metadata.CounterpartyUsername
		}
		return "Balance Received", fmt.Sprintf("You received %s from %s", FormatRupiah(t.Amount), from), true
	}
	if t.ItemType == transaction.ItemTransfer && t.Metadata.Direction == transaction.DirectionOut {
		return "Transfer Successful", fmt.Sprintf("You sent %s to @%s", FormatRupiah(t.Amount), t.Metadata.CounterpartyUsername), true
	}
	switch t.Status {
	case transaction.StatusSuccess:
		return "Payment Successful", fmt.Sprintf("Your %s transaction was successful", itemLabel(t)), true
	case transaction.StatusFailed:
		return "Payment Failed", fmt.Sprintf("Your %s transaction failed", itemLabel(t)), true
	case transaction.StatusCancelled:
		return "Transaction Cancelled", fmt.Sprintf("Your %s transaction was cancelled", itemLabel(t)), true
	}
	return "", "", false
}

func emailSubject(event Event) string {
	if event.Kind == KindTransferReceived {
		return "Balance received"
	}
	return "Transaction " + string(event.Transaction.Status)
}
