package table

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrOccupied means the table is held by a different active cart.
var ErrOccupied = errors.New("table occupied by another cart")

// Registry is the narrow contract with the table subsystem: a table can be
// occupied by at most one active cart at a time. Occupy is idempotent for
// the same cart and rejects a different one; Release is called by downstream
// consumers once the order settles.
type Registry interface {
	Occupy(ctx context.Context, tableID, cartID string) error
	Release(ctx context.Context, tableID string) error
}

// DBPool matches the methods from *pgxpool.Pool that we use.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type PostgresRegistry struct {
	pool DBPool
}

func NewPostgresRegistry(pool DBPool) *PostgresRegistry {
	return &PostgresRegistry{pool: pool}
}

// Occupy claims the table with an insert-if-absent so two concurrent carts
// cannot both win; the losing claim sees the holder's cart id.
func (r *PostgresRegistry) Occupy(ctx context.Context, tableID, cartID string) error {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO table_occupancy (table_id, cart_id, occupied_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (table_id) DO NOTHING
	`, tableID, cartID)
	if err != nil {
		return fmt.Errorf("occupy table: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var holder string
	err = r.pool.QueryRow(ctx,
		`SELECT cart_id FROM table_occupancy WHERE table_id=$1`, tableID).Scan(&holder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// released between insert and select; claim again
			return r.Occupy(ctx, tableID, cartID)
		}
		return fmt.Errorf("check table holder: %w", err)
	}
	if holder == cartID {
		return nil
	}
	return ErrOccupied
}

func (r *PostgresRegistry) Release(ctx context.Context, tableID string) error {
	if _, err := r.pool.Exec(ctx,
		`DELETE FROM table_occupancy WHERE table_id=$1`, tableID); err != nil {
		return fmt.Errorf("release table: %w", err)
	}
	return nil
}
