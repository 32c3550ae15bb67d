package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterDeps carries the wired handlers for the settlement HTTP surface.
type RouterDeps struct {
	Carts    *CartHandler
	Payments *PaymentHandler
	Webhooks *WebhookHandler
	Metrics  http.Handler
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	r.Route("/carts", func(r chi.Router) {
		r.Post("/", deps.Carts.CreateCart)
		r.Get("/{cartId}", deps.Carts.GetCart)
		r.Delete("/{cartId}", deps.Carts.AbandonCart)
		r.Post("/{cartId}/items", deps.Carts.AddItem)
		r.Delete("/{cartId}/items/{menuItemId}", deps.Carts.RemoveItem)
		r.Post("/{cartId}/checkout", deps.Carts.Checkout)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Get("/{orderId}", deps.Carts.GetOrder)
		r.Get("/{orderId}/payment-session", deps.Payments.GetSession)
	})

	r.Post("/api/payments/{provider}/checkout/session", deps.Payments.CreateSession)
	r.Post("/webhooks/{provider}", deps.Webhooks.Receive)

	return r
}
