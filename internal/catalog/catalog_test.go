package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/unlockpay/backend/internal/transaction"
)

func TestMemoryCatalogLookup(t *testing.T) {
	c := NewMemoryCatalog(DevelopmentItems()...)
	ctx := context.Background()

	item, err := c.Item(ctx, transaction.ItemBypass, "icloud-bypass")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if item.Price != 250_000 {
		t.Fatalf("unexpected price %d", item.Price)
	}

	if _, err := c.Item(ctx, transaction.ItemIMEI, "icloud-bypass"); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected item not found for mismatched type, got %v", err)
	}
}
