package payment

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is permitted.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Payment tracks one order's settlement with an external gateway. Created
// when a hosted session is requested; mutated only by the webhook
// processor; never deleted. LastEventID is the most recent provider event
// applied to it.
type Payment struct {
	ID           string    `json:"paymentId"`
	OrderID      string    `json:"orderId"`
	Provider     string    `json:"provider"`
	SessionID    string    `json:"sessionId,omitempty"`
	SessionURL   string    `json:"sessionUrl,omitempty"`
	IntentID     string    `json:"paymentIntentId,omitempty"`
	Status       Status    `json:"status"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	ReceiptURL   string    `json:"receiptUrl,omitempty"`
	LastEventID  string    `json:"lastEventId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
