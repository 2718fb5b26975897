package notification

import (
	"bytes"
	"context"
	"html/template"

	"gopkg.in/gomail.v2"
)

var transactionEmail = template.Must(template.New("transaction").Funcs(template.FuncMap{
	"rupiah": FormatRupiah,
}).Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <h2>Hi {{.Name}},</h2>
  {{if .Received}}
  <p>You received <strong>{{rupiah .Tx.Amount}}</strong> from {{.Counterparty}}.</p>
  {{else}}
  <p>Your transaction has been updated.</p>
  {{end}}
  <table cellpadding="6" style="border-collapse: collapse;">
    <tr><td>Transaction ID</td><td>{{.Tx.ID}}</td></tr>
    <tr><td>Item</td><td>{{.Item}}</td></tr>
    <tr><td>Amount</td><td>{{rupiah .Tx.Amount}}</td></tr>
    <tr><td>Status</td><td><strong>{{.Tx.Status}}</strong></td></tr>
    {{if and .Tx.PaymentURL (eq .Tx.Status "pending")}}<tr><td>Payment</td><td><a href="{{.Tx.PaymentURL}}">Pay now</a></td></tr>{{end}}
  </table>
  <p>Thank you for using {{.Sender}}.</p>
</body>
</html>`))

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailChannel mails transaction updates to the affected customer.
type EmailChannel struct {
	dialer     mailSender
	from       string
	senderName string
}

// NewEmail builds an SMTP channel authenticating as username.
func NewEmail(host string, port int, username, password, senderName string) *EmailChannel {
	return &EmailChannel{
		dialer:     gomail.NewDialer(host, port, username, password),
		from:       username,
		senderName: senderName,
	}
}

func (e *EmailChannel) Name() string { return "email" }

func (e *EmailChannel) Send(ctx context.Context, event Event) error {
	if event.Recipient.Email == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var body bytes.Buffer
	err := transactionEmail.Execute(&body, map[string]any{
		"Name":         event.Recipient.DisplayName(),
		"Received":     event.Kind == KindTransferReceived,
		"Counterparty": event.Transaction.Metadata.CounterpartyUsername,
		"Item":         itemLabel(event.Transaction),
		"Tx":           event.Transaction,
		"Sender":       e.senderName,
	})
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", e.from, e.senderName)
	m.SetHeader("To", event.Recipient.Email)
	m.SetHeader("Subject", emailSubject(event))
	m.SetBody("text/html", body.String())
	return e.dialer.DialAndSend(m)
}
