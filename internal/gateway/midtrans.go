package gateway

import (
	"context"
	"fmt"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
)

// MidtransGateway creates Snap checkout pages.
type MidtransGateway struct {
	client snap.Client
}

// NewMidtrans configures a Snap client for the sandbox or production environment.
func NewMidtrans(serverKey string, production bool) *MidtransGateway {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}
	g := &MidtransGateway{}
	g.client.New(serverKey, env)
	return g
}

type snapResult struct {
	url string
	err error
}

// CreateCheckout requests a Snap transaction and returns its redirect URL. The
// Snap client has no context support, so cancellation is honored by abandoning
// the in-flight call.
func (g *MidtransGateway) CreateCheckout(ctx context.Context, checkout Checkout) (string, error) {
	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  checkout.OrderID,
			GrossAmt: checkout.Amount,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: checkout.Customer.Name,
			Email: checkout.Customer.Email,
			Phone: checkout.Customer.Phone,
		},
		Items: &[]midtrans.ItemDetails{{
			ID:    checkout.ItemID,
			Name:  checkout.ItemName,
			Price: checkout.Amount,
			Qty:   1,
		}},
	}

	done := make(chan snapResult, 1)
	go func() {
		resp, snapErr := g.client.CreateTransaction(req)
		// CreateTransaction returns a typed *midtrans.Error; compare before
		// converting to the error interface.
		if snapErr != nil {
			done <- snapResult{err: fmt.Errorf("%w: %s", ErrUnavailable, snapErr.Message)}
			return
		}
		if resp == nil || resp.RedirectURL == "" {
			done <- snapResult{err: fmt.Errorf("%w: empty redirect url", ErrUnavailable)}
			return
		}
		done <- snapResult{url: resp.RedirectURL}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	case res := <-done:
		return res.url, res.err
	}
}
