// Package catalog resolves purchasable items and their current price.
package catalog

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unlockpay/backend/internal/transaction"
)

var ErrItemNotFound = errors.New("item not found")

// Item is a sellable catalog entry priced in whole Rupiah.
type Item struct {
	ID    string               `json:"id"`
	Type  transaction.ItemType `json:"type"`
	Name  string               `json:"name"`
	Price int64                `json:"price"`
}

// Lookup resolves an item by type and id.
type Lookup interface {
	Item(ctx context.Context, itemType transaction.ItemType, itemID string) (Item, error)
}

// PostgresCatalog reads active items from catalog_items.
type PostgresCatalog struct {
	db *pgxpool.Pool
}

func NewPostgresCatalog(db *pgxpool.Pool) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

func (c *PostgresCatalog) Item(ctx context.Context, itemType transaction.ItemType, itemID string) (Item, error) {
	if !itemType.IsProduct() {
		return Item{}, ErrItemNotFound
	}
	const query = `SELECT id, item_type, name, price FROM catalog_items
        WHERE item_type = $1 AND id = $2 AND active`
	var item Item
	if err := c.db.QueryRow(ctx, query, string(itemType), itemID).Scan(&item.ID, &item.Type, &item.Name, &item.Price); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, err
	}
	return item, nil
}

// MemoryCatalog is a fixed in-memory catalog for tests and local development.
type MemoryCatalog struct {
	mu    sync.RWMutex
	items map[string]Item
}

func NewMemoryCatalog(items ...Item) *MemoryCatalog {
	c := &MemoryCatalog{items: make(map[string]Item, len(items))}
	for _, item := range items {
		c.Put(item)
	}
	return c
}

// Put adds or replaces an item.
func (c *MemoryCatalog) Put(item Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key(item.Type, item.ID)] = item
}

func (c *MemoryCatalog) Item(_ context.Context, itemType transaction.ItemType, itemID string) (Item, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[key(itemType, itemID)]
	if !ok {
		return Item{}, ErrItemNotFound
	}
	return item, nil
}

// DevelopmentItems is the sample catalog served when no database is configured.
func DevelopmentItems() []Item {
	return []Item{
		{ID: "iphone-imei-clean", Type: transaction.ItemIMEI, Name: "iPhone IMEI Unlock (clean)", Price: 150_000},
		{ID: "icloud-bypass", Type: transaction.ItemBypass, Name: "iCloud Bypass", Price: 250_000},
		{ID: "fmi-off-standard", Type: transaction.ItemFMIOff, Name: "FMI OFF", Price: 100_000},
	}
}

func key(itemType transaction.ItemType, itemID string) string {
	return string(itemType) + "/" + itemID
}
