package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is one cart line. Name and UnitPrice are snapshotted from the menu
// catalog when the item is added and never re-fetched, so later price
// changes do not retroactively alter an open cart.
type Item struct {
	MenuItemID string          `json:"menuItemId"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Quantity   int             `json:"quantity"`
	Notes      string          `json:"notes,omitempty"`
}

// Cart is the mutable pre-order aggregate for one table/session. At most
// one Item per menu item id; adding the same item merges quantities.
type Cart struct {
	ID         string    `json:"id"`
	TableID    string    `json:"tableId,omitempty"`
	CustomerID string    `json:"customerId,omitempty"`
	ServerID   string    `json:"serverId,omitempty"`
	GuestCount int       `json:"guestCount,omitempty"`
	Items      []Item    `json:"items"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Subtotal sums quantity * unit price over all lines, rounded to 2 decimals.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total.Round(2)
}
