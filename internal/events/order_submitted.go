package events

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderSubmittedEventName    = "OrderSubmitted"
	OrderSubmittedEventVersion = 1
)

// OrderSubmittedPayload announces a finalized order to downstream consumers
// (payment session creation, receipting, kitchen tickets).
type OrderSubmittedPayload struct {
	OrderID   string          `json:"orderId"`
	TableID   string          `json:"tableId,omitempty"`
	Items     []LineSummary   `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Timestamp time.Time       `json:"timestamp"`
}

type LineSummary struct {
	MenuItemID string `json:"menuItemId"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
}

type OrderSubmittedEnvelope = EventEnvelope[OrderSubmittedPayload]
