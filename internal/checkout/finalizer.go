package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/basnets24/restaurant.pos-sub000/internal/cart"
	"github.com/basnets24/restaurant.pos-sub000/internal/metrics"
	"github.com/basnets24/restaurant.pos-sub000/internal/order"
	"github.com/basnets24/restaurant.pos-sub000/internal/pricing"
)

// ErrEmptyCart rejects checkout of a cart with no items.
var ErrEmptyCart = errors.New("cart has no items")

// CartStore is the slice of the cart repository the finalizer needs.
type CartStore interface {
	Get(ctx context.Context, cartID string) (*cart.Cart, error)
	Delete(ctx context.Context, cartID string) error
}

// OrderStore persists finalized orders keyed by cart id.
type OrderStore interface {
	CreateIfAbsent(ctx context.Context, o *order.Order) (bool, error)
	GetByID(ctx context.Context, orderID string) (*order.Order, error)
}

// Publisher announces finalized orders to the event bus.
type Publisher interface {
	PublishOrderSubmitted(ctx context.Context, o *order.Order) error
}

// Finalizer converts a cart into an immutable priced order exactly once per
// cart id. The cart id doubles as the order id and idempotency key.
type Finalizer struct {
	carts   CartStore
	orders  OrderStore
	config  pricing.ConfigProvider
	pub     Publisher
	logger  *log.Logger
	metrics *metrics.Metrics
	nowFunc func() time.Time
}

func NewFinalizer(carts CartStore, orders OrderStore, config pricing.ConfigProvider, pub Publisher, logger *log.Logger, m *metrics.Metrics) *Finalizer {
	return &Finalizer{
		carts:   carts,
		orders:  orders,
		config:  config,
		pub:     pub,
		logger:  logger,
		metrics: m,
		nowFunc: time.Now,
	}
}

// Finalize is safe under retries, duplicate submissions and concurrent
// invocations for the same cart: the order insert is insert-if-absent, and
// an existing order is returned unchanged. The OrderSubmitted publish runs
// after persistence on every call, so a retry after a failed publish
// re-publishes (at-least-once; consumers dedupe).
func (f *Finalizer) Finalize(ctx context.Context, cartID string, tip decimal.Decimal) (*order.Order, error) {
	o, err := f.orders.GetByID(ctx, cartID)
	if err != nil && !errors.Is(err, order.ErrNotFound) {
		return nil, fmt.Errorf("lookup order: %w", err)
	}
	if o != nil {
		return o, f.publish(ctx, o)
	}

	c, err := f.carts.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if len(c.Items) == 0 {
		return nil, ErrEmptyCart
	}

	// Never trust a client-supplied subtotal.
	subtotal := c.Subtotal()

	cfg, err := f.config.Config(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pricing config: %w", err)
	}
	bd := pricing.Calculate(subtotal, tip, cfg)

	o = &order.Order{
		ID:         c.ID,
		Status:     order.StatusPending,
		TableID:    c.TableID,
		CustomerID: c.CustomerID,
		ServerID:   c.ServerID,
		GuestCount: c.GuestCount,

		Subtotal:           bd.Subtotal,
		DiscountTotal:      bd.DiscountTotal,
		Discounts:          bd.Discounts,
		ServiceChargeTotal: bd.ServiceChargeTotal,
		ServiceCharges:     bd.ServiceCharges,
		TaxTotal:           bd.TaxTotal,
		Taxes:              bd.Taxes,
		Tip:                bd.Tip,
		GrandTotal:         bd.GrandTotal,

		CreatedAt: f.nowFunc().UTC(),
	}
	for _, it := range c.Items {
		o.Lines = append(o.Lines, order.Line{
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			UnitPrice:  it.UnitPrice,
			Quantity:   it.Quantity,
			Notes:      it.Notes,
		})
	}

	created, err := f.orders.CreateIfAbsent(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}
	if !created {
		// lost a race with a concurrent finalization of the same cart
		existing, err := f.orders.GetByID(ctx, cartID)
		if err != nil {
			return nil, fmt.Errorf("reload existing order: %w", err)
		}
		return existing, f.publish(ctx, existing)
	}

	// The cart is logically destroyed at checkout; a failure here does not
	// undo the order, retries will find the order and skip the cart.
	if err := f.carts.Delete(ctx, cartID); err != nil {
		f.logger.Printf("delete cart %s after finalize: %v", cartID, err)
	}

	f.metrics.OrdersFinalized.Inc()
	f.logger.Printf("finalized order %s subtotal=%s grand=%s", o.ID, o.Subtotal, o.GrandTotal)
	return o, f.publish(ctx, o)
}

// publish is part of the unit of work's completion: caller cancellation
// after the order committed must not suppress it.
func (f *Finalizer) publish(ctx context.Context, o *order.Order) error {
	if err := f.pub.PublishOrderSubmitted(context.WithoutCancel(ctx), o); err != nil {
		return fmt.Errorf("publish OrderSubmitted: %w", err)
	}
	return nil
}
