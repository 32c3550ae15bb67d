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

	"github.com/basnets24/restaurant.pos-sub000/internal/cart"
	"github.com/basnets24/restaurant.pos-sub000/internal/catalog"
	"github.com/basnets24/restaurant.pos-sub000/internal/checkout"
	"github.com/basnets24/restaurant.pos-sub000/internal/order"
	"github.com/basnets24/restaurant.pos-sub000/internal/table"
)

type CartHandler struct {
	carts     *cart.Service
	finalizer *checkout.Finalizer
	orders    checkout.OrderStore
	logger    *log.Logger
}

func NewCartHandler(carts *cart.Service, finalizer *checkout.Finalizer, orders checkout.OrderStore, logger *log.Logger) *CartHandler {
	return &CartHandler{carts: carts, finalizer: finalizer, orders: orders, logger: logger}
}

func (h *CartHandler) CreateCart(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TableID    string `json:"tableId"`
		CustomerID string `json:"customerId"`
		ServerID   string `json:"serverId"`
		GuestCount int    `json:"guestCount"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
	}
	if body.GuestCount < 0 {
		writeError(w, http.StatusBadRequest, "guestCount must not be negative")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	c, err := h.carts.Create(ctx, cart.CreateParams{
		TableID:    body.TableID,
		CustomerID: body.CustomerID,
		ServerID:   body.ServerID,
		GuestCount: body.GuestCount,
	})
	if err != nil {
		if errors.Is(err, table.ErrOccupied) {
			writeError(w, http.StatusConflict, "table occupied by another cart")
			return
		}
		h.logger.Printf("create cart: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create cart")
		return
	}

	writeJSON(w, http.StatusCreated, c)
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cartId")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	c, err := h.carts.Get(ctx, cartID)
	if err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			writeError(w, http.StatusNotFound, "cart not found")
			return
		}
		h.logger.Printf("get cart %s: %v", cartID, err)
		writeError(w, http.StatusInternalServerError, "failed to load cart")
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// AbandonCart destroys an open cart and frees its table.
func (h *CartHandler) AbandonCart(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cartId")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.carts.Abandon(ctx, cartID); err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			writeError(w, http.StatusNotFound, "cart not found")
			return
		}
		h.logger.Printf("abandon cart %s: %v", cartID, err)
		writeError(w, http.StatusInternalServerError, "failed to abandon cart")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cartId")

	var body struct {
		MenuItemID string `json:"menuItemId"`
		Quantity   int    `json:"quantity"`
		Notes      string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.MenuItemID == "" {
		writeError(w, http.StatusBadRequest, "missing menuItemId")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	c, err := h.carts.AddItem(ctx, cartID, body.MenuItemID, body.Quantity, body.Notes)
	if err != nil {
		switch {
		case errors.Is(err, cart.ErrNotFound):
			writeError(w, http.StatusNotFound, "cart not found")
		case errors.Is(err, catalog.ErrNotFound):
			writeError(w, http.StatusNotFound, "menu item not found")
		case errors.Is(err, cart.ErrInvalidQuantity), errors.Is(err, cart.ErrItemUnavailable):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Printf("add item to cart %s: %v", cartID, err)
			writeError(w, http.StatusInternalServerError, "failed to add item")
		}
		return
	}

	writeJSON(w, http.StatusOK, c)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cartId")
	menuItemID := chi.URLParam(r, "menuItemId")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.carts.RemoveItem(ctx, cartID, menuItemID); err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			writeError(w, http.StatusNotFound, "cart item not found")
			return
		}
		h.logger.Printf("remove item from cart %s: %v", cartID, err)
		writeError(w, http.StatusInternalServerError, "failed to remove item")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Checkout finalizes a cart into an order. Safe to retry: the same cart id
// always yields the same order id.
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cartId")

	var body struct {
		Tip decimal.Decimal `json:"tip"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
	}
	if body.Tip.IsNegative() {
		writeError(w, http.StatusBadRequest, "tip must not be negative")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.finalizer.Finalize(ctx, cartID, body.Tip)
	if err != nil {
		switch {
		case errors.Is(err, cart.ErrNotFound):
			writeError(w, http.StatusNotFound, "cart not found")
		case errors.Is(err, checkout.ErrEmptyCart):
			writeError(w, http.StatusBadRequest, "cart has no items")
		default:
			h.logger.Printf("checkout cart %s: %v", cartID, err)
			writeError(w, http.StatusInternalServerError, "checkout failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"orderId": o.ID})
}

func (h *CartHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.Printf("get order %s: %v", orderID, err)
		writeError(w, http.StatusInternalServerError, "failed to load order")
		return
	}

	writeJSON(w, http.StatusOK, o)
}
