package webhook

import "encoding/json"

// provider event types this processor understands
const (
	typeSessionCompleted      = "checkout.session.completed"
	typeAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	typeAsyncPaymentFailed    = "checkout.session.async_payment_failed"
	typeSessionExpired        = "checkout.session.expired"
	typeIntentSucceeded       = "payment_intent.succeeded"
	typeIntentFailed          = "payment_intent.payment_failed"
)

// Event is the provider's webhook envelope.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// sessionObject is the checkout session as delivered inside session events.
type sessionObject struct {
	ID            string `json:"id"`
	PaymentIntent string `json:"payment_intent"`
	PaymentStatus string `json:"payment_status"`
	Status        string `json:"status"`
}

func (s sessionObject) paid() bool { return s.PaymentStatus == "paid" }

// intentObject is the payment intent as delivered inside intent events.
// The receipt URL, when the provider includes the expanded charge, is
// captured opportunistically.
type intentObject struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Charges struct {
		Data []struct {
			ReceiptURL string `json:"receipt_url"`
		} `json:"data"`
	} `json:"charges"`
	LastPaymentError struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

func (i intentObject) receiptURL() string {
	if len(i.Charges.Data) > 0 {
		return i.Charges.Data[0].ReceiptURL
	}
	return ""
}

func (i intentObject) failureReason() string {
	if i.LastPaymentError.Message != "" {
		return i.LastPaymentError.Message
	}
	return "payment failed"
}
