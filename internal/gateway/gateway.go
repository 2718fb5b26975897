// Package gateway connects to the external payment gateway: it requests hosted
// checkout pages and interprets the asynchronous status notifications.
package gateway

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// ErrUnavailable is returned when no checkout could be obtained.
var ErrUnavailable = errors.New("payment gateway unavailable")

// Customer carries the buyer details forwarded to the hosted checkout page.
type Customer struct {
	Name  string
	Email string
	Phone string
}

// Checkout describes one hosted payment page request. OrderID is the gateway
// order reference used to correlate later notifications.
type Checkout struct {
	OrderID  string
	Amount   int64
	ItemID   string
	ItemName string
	Customer Customer
}

// Gateway represents a connector to an external payment processor.
type Gateway interface {
	CreateCheckout(ctx context.Context, checkout Checkout) (string, error)
}

// StaticGateway simulates the gateway by handing out deterministic local checkout URLs.
type StaticGateway struct {
	BaseURL string
}

// CreateCheckout returns BaseURL/checkout/<order id>.
func (g StaticGateway) CreateCheckout(ctx context.Context, checkout Checkout) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.Join(ErrUnavailable, err)
	}
	base := strings.TrimRight(g.BaseURL, "/")
	if base == "" {
		base = "http://localhost:8080"
	}
	return base + "/checkout/" + url.PathEscape(checkout.OrderID), nil
}
