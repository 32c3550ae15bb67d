package payment

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/basnets24/restaurant.pos-sub000/internal/order"
	"github.com/basnets24/restaurant.pos-sub000/internal/payment/stripe"
)

var (
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrMissingCurrency = errors.New("currency is required")
)

// ProviderClient creates hosted checkout sessions at the gateway.
type ProviderClient interface {
	CreateCheckoutSession(ctx context.Context, req stripe.SessionRequest) (stripe.Session, error)
}

// OrderStore is the slice of the order repository this service needs.
type OrderStore interface {
	GetByID(ctx context.Context, orderID string) (*order.Order, error)
}

// SessionState is what GetSession surfaces to clients. It never reports
// succeeded without a correspondingly settled payment row.
// SessionURL is a pointer so pending states serialize an explicit
// `"sessionUrl": null` until the hosted session exists.
type SessionState struct {
	Status     Status  `json:"status"`
	SessionURL *string `json:"sessionUrl"`
	// Materialized is false while the payment row exists but the hosted
	// session has not been created at the provider yet.
	Materialized bool `json:"-"`
}

// SessionService creates hosted checkout sessions for orders and reads
// their settlement state. Session creation is idempotent per order: the
// payment row is insert-if-absent and an already-materialized session is
// returned as is.
type SessionService struct {
	payments Repository
	orders   OrderStore
	provider ProviderClient
	name     string
	logger   *log.Logger
}

func NewSessionService(payments Repository, orders OrderStore, provider ProviderClient, providerName string, logger *log.Logger) *SessionService {
	return &SessionService{
		payments: payments,
		orders:   orders,
		provider: provider,
		name:     providerName,
		logger:   logger,
	}
}

func (s *SessionService) CreateSession(ctx context.Context, orderID string, amount decimal.Decimal, currency, description string) (*Payment, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if currency == "" {
		return nil, ErrMissingCurrency
	}

	if _, err := s.orders.GetByID(ctx, orderID); err != nil {
		return nil, err
	}

	p := &Payment{
		ID:       uuid.NewString(),
		OrderID:  orderID,
		Provider: s.name,
		Status:   StatusPending,
	}
	created, err := s.payments.CreateIfAbsent(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("persist payment: %w", err)
	}
	if !created && p.SessionID != "" {
		// duplicate request; reuse the session already materialized
		return p, nil
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, stripe.SessionRequest{
		OrderID:     orderID,
		Amount:      amount,
		Currency:    currency,
		Description: description,
	})
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	if err := s.payments.SetSessionRefs(ctx, p.ID, sess.ID, sess.URL, sess.PaymentIntent); err != nil {
		return nil, err
	}
	p.SessionID = sess.ID
	p.SessionURL = sess.URL
	p.IntentID = sess.PaymentIntent

	s.logger.Printf("created %s checkout session %s for order %s", s.name, sess.ID, orderID)
	return p, nil
}

func (s *SessionService) GetSession(ctx context.Context, orderID string) (SessionState, error) {
	p, err := s.payments.GetByOrderID(ctx, orderID)
	if err != nil {
		return SessionState{}, err
	}

	state := SessionState{
		Status:       p.Status,
		Materialized: p.SessionID != "",
	}
	if p.Status == StatusPending && p.SessionURL != "" {
		url := p.SessionURL
		state.SessionURL = &url
	}
	return state, nil
}
