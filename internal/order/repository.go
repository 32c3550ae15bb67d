package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/basnets24/restaurant.pos-sub000/internal/pricing"
)

var ErrNotFound = errors.New("order not found")

type Repository interface {
	// CreateIfAbsent persists the order atomically, keyed by id. It reports
	// false when an order with that id already exists, in which case nothing
	// is written; the caller loads the existing record instead.
	CreateIfAbsent(ctx context.Context, o *Order) (bool, error)
	GetByID(ctx context.Context, orderID string) (*Order, error)
}

// DBPool matches the methods from *pgxpool.Pool that we use.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// adjustment kinds in order_adjustments
const (
	adjDiscount      = "discount"
	adjServiceCharge = "service_charge"
	adjTax           = "tax"
)

func (r *PostgresRepository) CreateIfAbsent(ctx context.Context, o *Order) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Insert-if-absent closes the race between two concurrent finalizations
	// of the same cart: exactly one of them inserts.
	tag, err := tx.Exec(ctx, `
		INSERT INTO orders (
			id, status, table_id, customer_id, server_id, guest_count,
			subtotal, discount_total, service_charge_total, tax_total, tip, grand_total,
			created_at
		) VALUES ($1, $2, NULLIF($3,''), NULLIF($4,''), NULLIF($5,''), $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`, o.ID, o.Status, o.TableID, o.CustomerID, o.ServerID, o.GuestCount,
		o.Subtotal, o.DiscountTotal, o.ServiceChargeTotal, o.TaxTotal, o.Tip, o.GrandTotal,
		o.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	for _, l := range o.Lines {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_lines (order_id, menu_item_id, name, unit_price, quantity, notes)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6,''))
		`, o.ID, l.MenuItemID, l.Name, l.UnitPrice, l.Quantity, l.Notes)
		if err != nil {
			return false, fmt.Errorf("insert order line: %w", err)
		}
	}

	insertAdj := func(kind, ruleID, name string, percent, flat, amount decimal.Decimal, taxable bool) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO order_adjustments (order_id, kind, rule_id, name, percent, flat, amount, taxable)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, o.ID, kind, ruleID, name, percent, flat, amount, taxable)
		if err != nil {
			return fmt.Errorf("insert %s adjustment: %w", kind, err)
		}
		return nil
	}

	for _, d := range o.Discounts {
		if err := insertAdj(adjDiscount, d.RuleID, d.Name, d.Percent, d.Flat, d.Amount, false); err != nil {
			return false, err
		}
	}
	for _, c := range o.ServiceCharges {
		if err := insertAdj(adjServiceCharge, c.RuleID, c.Name, c.Percent, c.Flat, c.Amount, c.Taxable); err != nil {
			return false, err
		}
	}
	for _, t := range o.Taxes {
		if err := insertAdj(adjTax, t.RuleID, t.Name, t.Percent, t.Flat, t.Amount, false); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, orderID string) (*Order, error) {
	var o Order
	err := r.pool.QueryRow(ctx, `
		SELECT id, status, COALESCE(table_id,''), COALESCE(customer_id,''), COALESCE(server_id,''), guest_count,
		       subtotal, discount_total, service_charge_total, tax_total, tip, grand_total, created_at
		FROM orders WHERE id=$1
	`, orderID).Scan(
		&o.ID, &o.Status, &o.TableID, &o.CustomerID, &o.ServerID, &o.GuestCount,
		&o.Subtotal, &o.DiscountTotal, &o.ServiceChargeTotal, &o.TaxTotal, &o.Tip, &o.GrandTotal,
		&o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select order: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT menu_item_id, name, unit_price, quantity, COALESCE(notes,'')
		FROM order_lines WHERE order_id=$1 ORDER BY menu_item_id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("select order lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.MenuItemID, &l.Name, &l.UnitPrice, &l.Quantity, &l.Notes); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		o.Lines = append(o.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	if err := r.loadAdjustments(ctx, &o); err != nil {
		return nil, err
	}

	return &o, nil
}

func (r *PostgresRepository) loadAdjustments(ctx context.Context, o *Order) error {
	rows, err := r.pool.Query(ctx, `
		SELECT kind, rule_id, name, percent, flat, amount, taxable
		FROM order_adjustments WHERE order_id=$1 ORDER BY rule_id
	`, o.ID)
	if err != nil {
		return fmt.Errorf("select order adjustments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind, ruleID, name    string
			percent, flat, amount decimal.Decimal
			taxable               bool
		)
		if err := rows.Scan(&kind, &ruleID, &name, &percent, &flat, &amount, &taxable); err != nil {
			return fmt.Errorf("scan order adjustment: %w", err)
		}

		switch kind {
		case adjDiscount:
			o.Discounts = append(o.Discounts, pricing.AppliedDiscount{
				RuleID: ruleID, Name: name, Percent: percent, Flat: flat,
				Amount: amount, Scope: pricing.ScopeOrder,
			})
		case adjServiceCharge:
			o.ServiceCharges = append(o.ServiceCharges, pricing.ServiceCharge{
				RuleID: ruleID, Name: name, Percent: percent, Flat: flat,
				Amount: amount, Scope: pricing.ScopeOrder, Taxable: taxable,
			})
		case adjTax:
			o.Taxes = append(o.Taxes, pricing.AppliedTax{
				RuleID: ruleID, Name: name, Percent: percent, Flat: flat,
				Amount: amount, Scope: pricing.ScopeOrder,
			})
		}
	}
	return rows.Err()
}
