package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/basnets24/restaurant.pos-sub000/internal/metrics"
	"github.com/basnets24/restaurant.pos-sub000/internal/order"
	"github.com/basnets24/restaurant.pos-sub000/internal/payment"
)

// SessionStateSource reads the persisted payment-session state for an order.
type SessionStateSource interface {
	GetSession(ctx context.Context, orderID string) (payment.SessionState, error)
}

type PaymentHandler struct {
	sessions map[string]*payment.SessionService
	states   SessionStateSource
	logger   *log.Logger
	metrics  *metrics.Metrics
}

// NewPaymentHandler routes checkout-session requests by the provider path
// segment. Requests for providers absent from the map get a 404.
func NewPaymentHandler(sessions map[string]*payment.SessionService, states SessionStateSource, logger *log.Logger, m *metrics.Metrics) *PaymentHandler {
	return &PaymentHandler{sessions: sessions, states: states, logger: logger, metrics: m}
}

func (h *PaymentHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	svc, ok := h.sessions[provider]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown payment provider")
		return
	}

	var body struct {
		OrderID     string          `json:"orderId"`
		Amount      decimal.Decimal `json:"amount"`
		Currency    string          `json:"currency"`
		Description string          `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.OrderID == "" {
		writeError(w, http.StatusBadRequest, "missing orderId")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	p, err := svc.CreateSession(ctx, body.OrderID, body.Amount, body.Currency, body.Description)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, payment.ErrInvalidAmount), errors.Is(err, payment.ErrMissingCurrency):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Printf("create %s session for order %s: %v", provider, body.OrderID, err)
			writeError(w, http.StatusInternalServerError, "failed to create checkout session")
		}
		return
	}

	h.metrics.PaymentSessions.WithLabelValues(provider).Inc()
	writeJSON(w, http.StatusCreated, map[string]string{
		"sessionId":  p.SessionID,
		"sessionUrl": p.SessionURL,
		"paymentId":  p.ID,
	})
}

func (h *PaymentHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	state, err := h.states.GetSession(ctx, orderID)
	if err != nil {
		if errors.Is(err, payment.ErrNotFound) {
			// No payment row yet; the body still carries the session shape
			// so pollers read one contract across 404/202/200.
			writeJSON(w, http.StatusNotFound, payment.SessionState{Status: payment.StatusPending})
			return
		}
		h.logger.Printf("get session for order %s: %v", orderID, err)
		writeError(w, http.StatusInternalServerError, "failed to load payment session")
		return
	}

	// The payment row exists before the provider call completes; until the
	// session url is materialized the client should poll again.
	if !state.Materialized {
		writeJSON(w, http.StatusAccepted, state)
		return
	}

	writeJSON(w, http.StatusOK, state)
}
