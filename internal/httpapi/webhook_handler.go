package httpapi

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/basnets24/restaurant.pos-sub000/internal/payment/stripe"
	"github.com/basnets24/restaurant.pos-sub000/internal/webhook"
)

// WebhookEndpoint pairs a provider's processor with the request header
// its deliveries carry the signature in.
type WebhookEndpoint struct {
	Processor       *webhook.Processor
	SignatureHeader string
}

type WebhookHandler struct {
	endpoints map[string]WebhookEndpoint
	logger    *log.Logger
}

func NewWebhookHandler(endpoints map[string]WebhookEndpoint, logger *log.Logger) *WebhookHandler {
	return &WebhookHandler{endpoints: endpoints, logger: logger}
}

// Receive acknowledges every deliverable event with a 2xx so the provider
// stops retrying. The only non-2xx is a failed signature check, which the
// provider treats as a misconfiguration rather than a transient error.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	ep, ok := h.endpoints[provider]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown webhook provider")
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.logger.Printf("read %s webhook body: %v", provider, err)
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := ep.Processor.Handle(ctx, raw, r.Header.Get(ep.SignatureHeader)); err != nil {
		if errors.Is(err, stripe.ErrBadSignature) {
			writeError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
		// Processing errors are logged and acknowledged; later events for
		// the same payment carry the same outcome and converge the state.
		h.logger.Printf("process %s webhook: %v", provider, err)
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
