package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/basnets24/restaurant.pos-sub000/internal/pricing"
)

// Line is an immutable copy of a cart line at checkout time.
type Line struct {
	MenuItemID string          `json:"menuItemId"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Quantity   int             `json:"quantity"`
	Notes      string          `json:"notes,omitempty"`
}

// Order is the finalized, priced record of a cart. Its id equals the
// triggering cart id, which is what makes checkout idempotent. Never
// mutated by this core after creation.
type Order struct {
	ID         string `json:"id"`
	Status     Status `json:"status"`
	TableID    string `json:"tableId,omitempty"`
	CustomerID string `json:"customerId,omitempty"`
	ServerID   string `json:"serverId,omitempty"`
	GuestCount int    `json:"guestCount,omitempty"`
	Lines      []Line `json:"items"`

	Subtotal           decimal.Decimal           `json:"subtotal"`
	DiscountTotal      decimal.Decimal           `json:"discountTotal"`
	Discounts          []pricing.AppliedDiscount `json:"discounts,omitempty"`
	ServiceChargeTotal decimal.Decimal           `json:"serviceChargeTotal"`
	ServiceCharges     []pricing.ServiceCharge   `json:"serviceCharges,omitempty"`
	TaxTotal           decimal.Decimal           `json:"taxTotal"`
	Taxes              []pricing.AppliedTax      `json:"taxes,omitempty"`
	Tip                decimal.Decimal           `json:"tip"`
	GrandTotal         decimal.Decimal           `json:"grandTotal"`

	CreatedAt time.Time `json:"createdAt"`
}
