package checkout

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basnets24/restaurant.pos-sub000/internal/cart"
	"github.com/basnets24/restaurant.pos-sub000/internal/metrics"
	"github.com/basnets24/restaurant.pos-sub000/internal/order"
	"github.com/basnets24/restaurant.pos-sub000/internal/pricing"
)

type fakeCartStore struct {
	getFunc    func(ctx context.Context, cartID string) (*cart.Cart, error)
	deleteFunc func(ctx context.Context, cartID string) error
	deleted    []string
}

func (f *fakeCartStore) Get(ctx context.Context, cartID string) (*cart.Cart, error) {
	if f.getFunc != nil {
		return f.getFunc(ctx, cartID)
	}
	return nil, cart.ErrNotFound
}

func (f *fakeCartStore) Delete(ctx context.Context, cartID string) error {
	f.deleted = append(f.deleted, cartID)
	if f.deleteFunc != nil {
		return f.deleteFunc(ctx, cartID)
	}
	return nil
}

type fakeOrderStore struct {
	createFunc func(ctx context.Context, o *order.Order) (bool, error)
	byID       map[string]*order.Order
	created    []*order.Order
}

func (f *fakeOrderStore) CreateIfAbsent(ctx context.Context, o *order.Order) (bool, error) {
	f.created = append(f.created, o)
	if f.createFunc != nil {
		return f.createFunc(ctx, o)
	}
	if f.byID == nil {
		f.byID = map[string]*order.Order{}
	}
	if _, ok := f.byID[o.ID]; ok {
		return false, nil
	}
	f.byID[o.ID] = o
	return true, nil
}

func (f *fakeOrderStore) GetByID(ctx context.Context, orderID string) (*order.Order, error) {
	if o, ok := f.byID[orderID]; ok {
		return o, nil
	}
	return nil, order.ErrNotFound
}

type fakePublisher struct {
	publishFunc func(ctx context.Context, o *order.Order) error
	published   []*order.Order
}

func (f *fakePublisher) PublishOrderSubmitted(ctx context.Context, o *order.Order) error {
	f.published = append(f.published, o)
	if f.publishFunc != nil {
		return f.publishFunc(ctx, o)
	}
	return nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testCart(id string) *cart.Cart {
	return &cart.Cart{
		ID:      id,
		TableID: "table-7",
		Items: []cart.Item{
			{MenuItemID: "mi-1", Name: "Margherita", UnitPrice: dec("12.50"), Quantity: 2},
			{MenuItemID: "mi-2", Name: "House Red", UnitPrice: dec("6.00"), Quantity: 1},
		},
		CreatedAt: time.Now().UTC(),
	}
}

func newTestFinalizer(carts *fakeCartStore, orders *fakeOrderStore, pub *fakePublisher, cfg pricing.Config) *Finalizer {
	logger := log.New(io.Discard, "", 0)
	return NewFinalizer(carts, orders, &pricing.StaticConfigProvider{Cfg: cfg}, pub, logger, metrics.New())
}

func TestFinalizeCreatesOrderFromCart(t *testing.T) {
	c := testCart("cart-1")
	carts := &fakeCartStore{getFunc: func(_ context.Context, id string) (*cart.Cart, error) {
		require.Equal(t, "cart-1", id)
		return c, nil
	}}
	orders := &fakeOrderStore{}
	pub := &fakePublisher{}
	f := newTestFinalizer(carts, orders, pub, pricing.Config{
		Taxes: []pricing.TaxRule{{ID: "vat", Name: "VAT", Percent: dec("10")}},
	})

	o, err := f.Finalize(context.Background(), "cart-1", dec("5.00"))
	require.NoError(t, err)

	assert.Equal(t, "cart-1", o.ID)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, "table-7", o.TableID)
	assert.Len(t, o.Lines, 2)
	// 2*12.50 + 6.00 = 31.00, 10% tax = 3.10, tip 5.00
	assert.True(t, dec("31.00").Equal(o.Subtotal), "subtotal %s", o.Subtotal)
	assert.True(t, dec("3.10").Equal(o.TaxTotal), "tax %s", o.TaxTotal)
	assert.True(t, dec("39.10").Equal(o.GrandTotal), "grand %s", o.GrandTotal)

	assert.Equal(t, []string{"cart-1"}, carts.deleted)
	require.Len(t, pub.published, 1)
	assert.Equal(t, "cart-1", pub.published[0].ID)
}

func TestFinalizeIsIdempotentPerCart(t *testing.T) {
	c := testCart("cart-2")
	carts := &fakeCartStore{getFunc: func(_ context.Context, id string) (*cart.Cart, error) {
		return c, nil
	}}
	orders := &fakeOrderStore{}
	pub := &fakePublisher{}
	f := newTestFinalizer(carts, orders, pub, pricing.Config{})

	first, err := f.Finalize(context.Background(), "cart-2", dec("0"))
	require.NoError(t, err)

	// second call finds the existing order and must not create another
	second, err := f.Finalize(context.Background(), "cart-2", dec("99.00"))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.GrandTotal.Equal(second.GrandTotal), "tip on retry must not change the order")
	assert.Len(t, orders.created, 1)
	// retries re-announce the order, consumers dedupe
	assert.Len(t, pub.published, 2)
}

func TestFinalizeEmptyCart(t *testing.T) {
	carts := &fakeCartStore{getFunc: func(_ context.Context, id string) (*cart.Cart, error) {
		return &cart.Cart{ID: id}, nil
	}}
	f := newTestFinalizer(carts, &fakeOrderStore{}, &fakePublisher{}, pricing.Config{})

	_, err := f.Finalize(context.Background(), "cart-3", dec("0"))
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestFinalizeUnknownCart(t *testing.T) {
	f := newTestFinalizer(&fakeCartStore{}, &fakeOrderStore{}, &fakePublisher{}, pricing.Config{})

	_, err := f.Finalize(context.Background(), "nope", dec("0"))
	assert.ErrorIs(t, err, cart.ErrNotFound)
}

func TestFinalizeLostInsertRaceReturnsWinner(t *testing.T) {
	winner := &order.Order{ID: "cart-4", Status: order.StatusPending, GrandTotal: dec("10.00")}
	carts := &fakeCartStore{getFunc: func(_ context.Context, id string) (*cart.Cart, error) {
		return testCart(id), nil
	}}
	orders := &fakeOrderStore{
		createFunc: func(_ context.Context, _ *order.Order) (bool, error) {
			return false, nil
		},
		byID: map[string]*order.Order{"cart-4": winner},
	}
	pub := &fakePublisher{}
	f := newTestFinalizer(carts, orders, pub, pricing.Config{})

	// simulate the race: the initial existence check misses
	f.orders = &racingOrderStore{inner: orders, missFirst: true}

	o, err := f.Finalize(context.Background(), "cart-4", dec("0"))
	require.NoError(t, err)
	assert.Same(t, winner, o)
	require.Len(t, pub.published, 1)
	assert.Same(t, winner, pub.published[0])
	assert.Empty(t, carts.deleted, "loser must not delete the cart twice")
}

type racingOrderStore struct {
	inner     *fakeOrderStore
	missFirst bool
}

func (r *racingOrderStore) CreateIfAbsent(ctx context.Context, o *order.Order) (bool, error) {
	return r.inner.CreateIfAbsent(ctx, o)
}

func (r *racingOrderStore) GetByID(ctx context.Context, orderID string) (*order.Order, error) {
	if r.missFirst {
		r.missFirst = false
		return nil, order.ErrNotFound
	}
	return r.inner.GetByID(ctx, orderID)
}

func TestFinalizePublishesAfterPersist(t *testing.T) {
	carts := &fakeCartStore{getFunc: func(_ context.Context, id string) (*cart.Cart, error) {
		return testCart(id), nil
	}}
	orders := &fakeOrderStore{}
	var persistedBeforePublish bool
	pub := &fakePublisher{publishFunc: func(_ context.Context, o *order.Order) error {
		_, persistedBeforePublish = orders.byID[o.ID]
		return nil
	}}
	f := newTestFinalizer(carts, orders, pub, pricing.Config{})

	_, err := f.Finalize(context.Background(), "cart-5", dec("0"))
	require.NoError(t, err)
	assert.True(t, persistedBeforePublish, "OrderSubmitted must only go out after the order row exists")
}

func TestFinalizeCartDeleteFailureDoesNotFailCheckout(t *testing.T) {
	carts := &fakeCartStore{
		getFunc: func(_ context.Context, id string) (*cart.Cart, error) {
			return testCart(id), nil
		},
		deleteFunc: func(_ context.Context, _ string) error {
			return context.DeadlineExceeded
		},
	}
	orders := &fakeOrderStore{}
	pub := &fakePublisher{}
	f := newTestFinalizer(carts, orders, pub, pricing.Config{})

	o, err := f.Finalize(context.Background(), "cart-6", dec("0"))
	require.NoError(t, err)
	assert.Equal(t, "cart-6", o.ID)
	require.Len(t, pub.published, 1)
}
