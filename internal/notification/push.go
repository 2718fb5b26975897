package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

type messagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// TokenStore forgets device tokens the push service no longer accepts.
type TokenStore interface {
	ClearPushToken(ctx context.Context, userID, token string) error
}

// PushChannel sends device notifications through Firebase Cloud Messaging.
type PushChannel struct {
	client messagingClient
	tokens TokenStore
	logger *slog.Logger
}

// NewPush initializes a Firebase app from a service account file.
func NewPush(ctx context.Context, credentialsFile string, tokens TokenStore, logger *slog.Logger) (*PushChannel, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase messaging: %w", err)
	}
	return &PushChannel{client: client, tokens: tokens, logger: logger}, nil
}

func (p *PushChannel) Name() string { return "push" }

func (p *PushChannel) Send(ctx context.Context, event Event) error {
	token := event.Recipient.PushToken
	if token == "" {
		return nil
	}
	title, body, ok := pushContent(event)
	if !ok {
		return nil
	}

	_, err := p.client.Send(ctx, &messaging.Message{
		Token:        token,
		Notification: &messaging.Notification{Title: title, Body: body},
		Data: map[string]string{
			"transaction_id": event.Transaction.ID,
			"status":         string(event.Transaction.Status),
			"item_type":      string(event.Transaction.ItemType),
		},
		Android: &messaging.AndroidConfig{Priority: "high"},
	})
	if err == nil {
		return nil
	}

	if staleToken(err) {
		if clearErr := p.tokens.ClearPushToken(ctx, event.Recipient.UserID, token); clearErr != nil {
			p.logger.Warn("clear stale push token", slog.String("user_id", event.Recipient.UserID), slog.Any("error", clearErr))
		} else {
			p.logger.Info("removed stale push token", slog.String("user_id", event.Recipient.UserID))
		}
	}
	return err
}

// staleToken reports whether FCM rejected the device token itself.
// INVALID_ARGUMENT also covers malformed payloads, so it only counts when FCM
// names the registration token.
func staleToken(err error) bool {
	if messaging.IsUnregistered(err) {
		return true
	}
	return messaging.IsInvalidArgument(err) &&
		strings.Contains(strings.ToLower(err.Error()), "registration token")
}
