package payments

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/unlockpay/backend/internal/logging"
)

const testServerKey = "SB-Mid-server-test"

func signedBody(orderID, status, gross string) string {
	sum := sha512.Sum512([]byte(orderID + "200" + gross + testServerKey))
	return `{"order_id":"` + orderID + `","transaction_status":"` + status +
		`","status_code":"200","gross_amount":"` + gross +
		`","signature_key":"` + hex.EncodeToString(sum[:]) + `"}`
}

func webhookApp(f *fixture) *fiber.App {
	app := fiber.New()
	h := NewWebhookHandler(f.svc, testServerKey, nil, logging.Discard())
	app.Post("/payments/notification", h.Midtrans)
	return app
}

func postNotification(t *testing.T, app *fiber.App, body string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/payments/notification", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestWebhookSettlesTopUpOnce(t *testing.T) {
	f := newFixture(t, nil)
	alice := f.user(t, "alice", 0)
	app := webhookApp(f)

	topup, err := f.svc.TopUp(context.Background(), alice.ID, 50_000)
	require.NoError(t, err)

	body := signedBody(topup.OrderID, "settlement", "50000.00")
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, postNotification(t, app, body))
	}
	require.Equal(t, int64(50_000), f.balance(t, alice.ID))

	// A late failure for a settled order is acknowledged without effect.
	require.Equal(t, http.StatusOK, postNotification(t, app, signedBody(topup.OrderID, "expire", "50000.00")))
	require.Equal(t, int64(50_000), f.balance(t, alice.ID))
}

func TestWebhookRejectsBadInput(t *testing.T) {
	f := newFixture(t, nil)
	alice := f.user(t, "alice", 0)
	app := webhookApp(f)

	topup, err := f.svc.TopUp(context.Background(), alice.ID, 50_000)
	require.NoError(t, err)

	forged := strings.Replace(signedBody(topup.OrderID, "settlement", "50000.00"), `"signature_key":"`, `"signature_key":"00`, 1)
	require.Equal(t, http.StatusUnauthorized, postNotification(t, app, forged))
	require.Equal(t, http.StatusBadRequest, postNotification(t, app, signedBody(topup.OrderID, "settlement", "75000.00")))
	require.Equal(t, http.StatusBadRequest, postNotification(t, app, signedBody(topup.OrderID, "settlement", "50000.50")))
	require.Equal(t, http.StatusNotFound, postNotification(t, app, signedBody("unknown-order", "settlement", "50000.00")))
	require.Equal(t, http.StatusBadRequest, postNotification(t, app, `{"transaction_status":"settlement"}`))
	require.Zero(t, f.balance(t, alice.ID))
}
