package payment

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basnets24/restaurant.pos-sub000/internal/order"
	"github.com/basnets24/restaurant.pos-sub000/internal/payment/stripe"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fakeRepository struct {
	createFunc     func(ctx context.Context, p *Payment) (bool, error)
	byOrderFunc    func(ctx context.Context, orderID string) (*Payment, error)
	sessionRefs    []string
	setRefsFunc    func(ctx context.Context, paymentID, sessionID, sessionURL, intentID string) error
	recordedEvents []string
}

func (f *fakeRepository) CreateIfAbsent(ctx context.Context, p *Payment) (bool, error) {
	if f.createFunc != nil {
		return f.createFunc(ctx, p)
	}
	return true, nil
}

func (f *fakeRepository) GetByOrderID(ctx context.Context, orderID string) (*Payment, error) {
	if f.byOrderFunc != nil {
		return f.byOrderFunc(ctx, orderID)
	}
	return nil, ErrNotFound
}

func (f *fakeRepository) FindByProviderRef(ctx context.Context, sessionID, intentID string) (*Payment, error) {
	return nil, ErrNotFound
}

func (f *fakeRepository) SetSessionRefs(ctx context.Context, paymentID, sessionID, sessionURL, intentID string) error {
	f.sessionRefs = append(f.sessionRefs, sessionID)
	if f.setRefsFunc != nil {
		return f.setRefsFunc(ctx, paymentID, sessionID, sessionURL, intentID)
	}
	return nil
}

func (f *fakeRepository) MarkSucceeded(ctx context.Context, paymentID, receiptURL, eventID string) (bool, error) {
	return true, nil
}

func (f *fakeRepository) MarkFailed(ctx context.Context, paymentID, reason, eventID string) (bool, error) {
	return true, nil
}

func (f *fakeRepository) RecordLastEvent(ctx context.Context, paymentID, eventID string) error {
	return nil
}

func (f *fakeRepository) RecordEvent(ctx context.Context, provider, eventID, paymentID string) (bool, error) {
	f.recordedEvents = append(f.recordedEvents, eventID)
	return true, nil
}

func (f *fakeRepository) ReleaseEvent(ctx context.Context, provider, eventID string) error {
	return nil
}

type fakeOrders struct {
	known map[string]bool
}

func (f *fakeOrders) GetByID(ctx context.Context, orderID string) (*order.Order, error) {
	if f.known[orderID] {
		return &order.Order{ID: orderID}, nil
	}
	return nil, order.ErrNotFound
}

type fakeProvider struct {
	createFunc func(ctx context.Context, req stripe.SessionRequest) (stripe.Session, error)
	calls      int
}

func (f *fakeProvider) CreateCheckoutSession(ctx context.Context, req stripe.SessionRequest) (stripe.Session, error) {
	f.calls++
	if f.createFunc != nil {
		return f.createFunc(ctx, req)
	}
	return stripe.Session{ID: "cs_new", URL: "https://pay.example/cs_new", PaymentIntent: "pi_new"}, nil
}

func newTestSessionService(repo *fakeRepository, orders *fakeOrders, provider *fakeProvider) *SessionService {
	return NewSessionService(repo, orders, provider, "stripe", log.New(io.Discard, "", 0))
}

func TestCreateSessionHappyPath(t *testing.T) {
	repo := &fakeRepository{}
	orders := &fakeOrders{known: map[string]bool{"ord-1": true}}
	provider := &fakeProvider{}
	svc := newTestSessionService(repo, orders, provider)

	p, err := svc.CreateSession(context.Background(), "ord-1", dec("42.10"), "usd", "table 7")
	require.NoError(t, err)

	assert.Equal(t, "ord-1", p.OrderID)
	assert.Equal(t, StatusPending, p.Status)
	assert.Equal(t, "cs_new", p.SessionID)
	assert.Equal(t, "https://pay.example/cs_new", p.SessionURL)
	assert.Equal(t, []string{"cs_new"}, repo.sessionRefs)
}

func TestCreateSessionValidation(t *testing.T) {
	svc := newTestSessionService(&fakeRepository{}, &fakeOrders{}, &fakeProvider{})

	_, err := svc.CreateSession(context.Background(), "ord-1", dec("0"), "usd", "")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.CreateSession(context.Background(), "ord-1", dec("-4"), "usd", "")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.CreateSession(context.Background(), "ord-1", dec("10"), "", "")
	assert.ErrorIs(t, err, ErrMissingCurrency)
}

func TestCreateSessionUnknownOrder(t *testing.T) {
	svc := newTestSessionService(&fakeRepository{}, &fakeOrders{}, &fakeProvider{})

	_, err := svc.CreateSession(context.Background(), "missing", dec("10"), "usd", "")
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestCreateSessionReusesMaterializedSession(t *testing.T) {
	existing := Payment{
		ID: "pay-1", OrderID: "ord-1", Provider: "stripe",
		SessionID: "cs_old", SessionURL: "https://pay.example/cs_old",
		Status: StatusPending,
	}
	repo := &fakeRepository{createFunc: func(_ context.Context, p *Payment) (bool, error) {
		*p = existing
		return false, nil
	}}
	orders := &fakeOrders{known: map[string]bool{"ord-1": true}}
	provider := &fakeProvider{}
	svc := newTestSessionService(repo, orders, provider)

	p, err := svc.CreateSession(context.Background(), "ord-1", dec("42.10"), "usd", "")
	require.NoError(t, err)

	assert.Equal(t, "cs_old", p.SessionID)
	assert.Zero(t, provider.calls, "existing session must be reused, not recreated")
}

func TestCreateSessionRetriesProviderAfterPartialCreate(t *testing.T) {
	// the payment row exists but the earlier provider call never completed
	existing := Payment{ID: "pay-1", OrderID: "ord-1", Provider: "stripe", Status: StatusPending}
	repo := &fakeRepository{createFunc: func(_ context.Context, p *Payment) (bool, error) {
		*p = existing
		return false, nil
	}}
	orders := &fakeOrders{known: map[string]bool{"ord-1": true}}
	provider := &fakeProvider{}
	svc := newTestSessionService(repo, orders, provider)

	p, err := svc.CreateSession(context.Background(), "ord-1", dec("42.10"), "usd", "")
	require.NoError(t, err)

	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, "cs_new", p.SessionID)
}

func TestCreateSessionProviderFailure(t *testing.T) {
	providerErr := errors.New("gateway unavailable")
	provider := &fakeProvider{createFunc: func(_ context.Context, _ stripe.SessionRequest) (stripe.Session, error) {
		return stripe.Session{}, providerErr
	}}
	orders := &fakeOrders{known: map[string]bool{"ord-1": true}}
	svc := newTestSessionService(&fakeRepository{}, orders, provider)

	_, err := svc.CreateSession(context.Background(), "ord-1", dec("42.10"), "usd", "")
	assert.ErrorIs(t, err, providerErr)
}

func strptr(s string) *string { return &s }

func TestGetSessionStates(t *testing.T) {
	tests := []struct {
		name    string
		payment *Payment
		want    SessionState
	}{
		{
			name:    "pending materialized",
			payment: &Payment{Status: StatusPending, SessionID: "cs_1", SessionURL: "https://pay.example/cs_1"},
			want:    SessionState{Status: StatusPending, SessionURL: strptr("https://pay.example/cs_1"), Materialized: true},
		},
		{
			name:    "pending not yet materialized",
			payment: &Payment{Status: StatusPending},
			want:    SessionState{Status: StatusPending},
		},
		{
			name:    "succeeded drops the url",
			payment: &Payment{Status: StatusSucceeded, SessionID: "cs_1", SessionURL: "https://pay.example/cs_1"},
			want:    SessionState{Status: StatusSucceeded, Materialized: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepository{byOrderFunc: func(_ context.Context, _ string) (*Payment, error) {
				return tt.payment, nil
			}}
			svc := newTestSessionService(repo, &fakeOrders{}, &fakeProvider{})

			got, err := svc.GetSession(context.Background(), "ord-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetSessionUnknownOrder(t *testing.T) {
	svc := newTestSessionService(&fakeRepository{}, &fakeOrders{}, &fakeProvider{})

	_, err := svc.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
