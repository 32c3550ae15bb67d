package events

import "time"

const (
	PaymentSucceededEventName    = "PaymentSucceeded"
	PaymentSucceededEventVersion = 1

	PaymentFailedEventName    = "PaymentFailed"
	PaymentFailedEventVersion = 1
)

// TenantRefs is the table/session context downstream consumers need to act
// on a settlement outcome (e.g. releasing the table, notifying the server).
type TenantRefs struct {
	TableID    string `json:"tableId,omitempty"`
	CustomerID string `json:"customerId,omitempty"`
	ServerID   string `json:"serverId,omitempty"`
}

type PaymentSucceededPayload struct {
	OrderID    string     `json:"orderId"`
	PaymentID  string     `json:"paymentId"`
	ReceiptURL string     `json:"receiptUrl,omitempty"`
	Tenant     TenantRefs `json:"tenant"`
	Timestamp  time.Time  `json:"timestamp"`
}

type PaymentFailedPayload struct {
	OrderID   string     `json:"orderId"`
	PaymentID string     `json:"paymentId"`
	Reason    string     `json:"reason"`
	Tenant    TenantRefs `json:"tenant"`
	Timestamp time.Time  `json:"timestamp"`
}

type PaymentSucceededEnvelope = EventEnvelope[PaymentSucceededPayload]
type PaymentFailedEnvelope = EventEnvelope[PaymentFailedPayload]
