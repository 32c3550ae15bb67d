package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("menu item not found")

// MenuItem is the slice of the menu catalog the settlement core needs:
// enough to snapshot a cart line at add time.
type MenuItem struct {
	ID        string          `json:"menuItemId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Available bool            `json:"available"`
}

type Repository interface {
	Get(ctx context.Context, menuItemID string) (MenuItem, error)
}

// DBPool matches the methods from *pgxpool.Pool that we use.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Get(ctx context.Context, menuItemID string) (MenuItem, error) {
	var item MenuItem
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, price, available FROM menu_items WHERE id=$1`, menuItemID)
	if err := row.Scan(&item.ID, &item.Name, &item.Price, &item.Available); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MenuItem{}, ErrNotFound
		}
		return MenuItem{}, fmt.Errorf("select menu item: %w", err)
	}
	return item, nil
}
