package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrNotFound = errors.New("cart not found")

type Repository interface {
	Create(ctx context.Context, c *Cart) error
	Get(ctx context.Context, cartID string) (*Cart, error)
	UpsertItem(ctx context.Context, cartID string, it Item) error
	RemoveItem(ctx context.Context, cartID, menuItemID string) error
	Delete(ctx context.Context, cartID string) error
}

// DBPool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Create(ctx context.Context, c *Cart) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO carts (id, table_id, customer_id, server_id, guest_count, created_at)
		VALUES ($1, NULLIF($2,''), NULLIF($3,''), NULLIF($4,''), $5, $6)
	`, c.ID, c.TableID, c.CustomerID, c.ServerID, c.GuestCount, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert cart: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, cartID string) (*Cart, error) {
	var c Cart
	err := r.pool.QueryRow(ctx, `
		SELECT id, COALESCE(table_id,''), COALESCE(customer_id,''), COALESCE(server_id,''), guest_count, created_at
		FROM carts WHERE id=$1
	`, cartID).Scan(&c.ID, &c.TableID, &c.CustomerID, &c.ServerID, &c.GuestCount, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select cart: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT menu_item_id, name, unit_price, quantity, COALESCE(notes,'')
		FROM cart_items WHERE cart_id=$1 ORDER BY added_at
	`, cartID)
	if err != nil {
		return nil, fmt.Errorf("select cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.MenuItemID, &it.Name, &it.UnitPrice, &it.Quantity, &it.Notes); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		c.Items = append(c.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return &c, nil
}

// UpsertItem adds a line or merges quantity into an existing one. The merge
// happens in a single statement so concurrent adds of the same item cannot
// produce two lines. The snapshotted name/price of the first add wins.
func (r *PostgresRepository) UpsertItem(ctx context.Context, cartID string, it Item) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO cart_items (cart_id, menu_item_id, name, unit_price, quantity, notes, added_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6,''), NOW())
		ON CONFLICT (cart_id, menu_item_id) DO UPDATE
		SET quantity = cart_items.quantity + EXCLUDED.quantity,
		    notes = COALESCE(EXCLUDED.notes, cart_items.notes)
	`, cartID, it.MenuItemID, it.Name, it.UnitPrice, it.Quantity, it.Notes)
	if err != nil {
		return fmt.Errorf("upsert cart item: %w", err)
	}
	return nil
}

func (r *PostgresRepository) RemoveItem(ctx context.Context, cartID, menuItemID string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM cart_items WHERE cart_id=$1 AND menu_item_id=$2`, cartID, menuItemID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, cartID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM carts WHERE id=$1`, cartID); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}
