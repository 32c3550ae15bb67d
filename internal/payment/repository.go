package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrNotFound = errors.New("payment not found")

type Repository interface {
	// CreateIfAbsent inserts the payment keyed by order id. When a payment
	// for that order already exists, p is overwritten with the stored row
	// and false is returned.
	CreateIfAbsent(ctx context.Context, p *Payment) (bool, error)
	GetByOrderID(ctx context.Context, orderID string) (*Payment, error)
	// FindByProviderRef locates a payment by hosted session id or
	// payment-intent id, whichever the provider event carried.
	FindByProviderRef(ctx context.Context, sessionID, intentID string) (*Payment, error)
	SetSessionRefs(ctx context.Context, paymentID, sessionID, sessionURL, intentID string) error
	// MarkSucceeded / MarkFailed transition only out of pending; they report
	// false when the payment was already terminal (sticky states).
	MarkSucceeded(ctx context.Context, paymentID, receiptURL, eventID string) (bool, error)
	MarkFailed(ctx context.Context, paymentID, reason, eventID string) (bool, error)
	RecordLastEvent(ctx context.Context, paymentID, eventID string) error
	// RecordEvent registers a provider event id globally; false means the
	// exact event was processed before (webhook redelivery).
	RecordEvent(ctx context.Context, provider, eventID, paymentID string) (bool, error)
	// ReleaseEvent undoes RecordEvent after a failed apply so the
	// provider's redelivery is not deduped into a no-op.
	ReleaseEvent(ctx context.Context, provider, eventID string) error
}

// DBPool matches the methods from *pgxpool.Pool that we use.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const paymentColumns = `
	id, order_id, provider,
	COALESCE(session_id,''), COALESCE(session_url,''), COALESCE(intent_id,''),
	status, COALESCE(error_message,''), COALESCE(receipt_url,''), COALESCE(last_event_id,''),
	created_at, updated_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(
		&p.ID, &p.OrderID, &p.Provider,
		&p.SessionID, &p.SessionURL, &p.IntentID,
		&p.Status, &p.ErrorMessage, &p.ReceiptURL, &p.LastEventID,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	return &p, nil
}

func (r *PostgresRepository) CreateIfAbsent(ctx context.Context, p *Payment) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO payments (id, order_id, provider, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (order_id) DO NOTHING
	`, p.ID, p.OrderID, p.Provider, p.Status)
	if err != nil {
		return false, fmt.Errorf("insert payment: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	existing, err := r.GetByOrderID(ctx, p.OrderID)
	if err != nil {
		return false, err
	}
	*p = *existing
	return false, nil
}

func (r *PostgresRepository) GetByOrderID(ctx context.Context, orderID string) (*Payment, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE order_id=$1`, orderID)
	return scanPayment(row)
}

func (r *PostgresRepository) FindByProviderRef(ctx context.Context, sessionID, intentID string) (*Payment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE (NULLIF($1,'') IS NOT NULL AND session_id = $1)
		   OR (NULLIF($2,'') IS NOT NULL AND intent_id = $2)
	`, sessionID, intentID)
	return scanPayment(row)
}

func (r *PostgresRepository) SetSessionRefs(ctx context.Context, paymentID, sessionID, sessionURL, intentID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE payments
		SET session_id=$2, session_url=$3, intent_id=NULLIF($4,''), updated_at=NOW()
		WHERE id=$1
	`, paymentID, sessionID, sessionURL, intentID)
	if err != nil {
		return fmt.Errorf("set session refs: %w", err)
	}
	return nil
}

func (r *PostgresRepository) MarkSucceeded(ctx context.Context, paymentID, receiptURL, eventID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payments
		SET status=$2, receipt_url=NULLIF($3,''), last_event_id=$4, updated_at=NOW()
		WHERE id=$1 AND status=$5
	`, paymentID, StatusSucceeded, receiptURL, eventID, StatusPending)
	if err != nil {
		return false, fmt.Errorf("mark succeeded: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresRepository) MarkFailed(ctx context.Context, paymentID, reason, eventID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payments
		SET status=$2, error_message=$3, last_event_id=$4, updated_at=NOW()
		WHERE id=$1 AND status=$5
	`, paymentID, StatusFailed, reason, eventID, StatusPending)
	if err != nil {
		return false, fmt.Errorf("mark failed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresRepository) RecordLastEvent(ctx context.Context, paymentID, eventID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE payments SET last_event_id=$2, updated_at=NOW() WHERE id=$1
	`, paymentID, eventID)
	if err != nil {
		return fmt.Errorf("record last event: %w", err)
	}
	return nil
}

func (r *PostgresRepository) RecordEvent(ctx context.Context, provider, eventID, paymentID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO payment_events (provider, event_id, payment_id, received_at)
		VALUES ($1, $2, NULLIF($3,''), NOW())
		ON CONFLICT (provider, event_id) DO NOTHING
	`, provider, eventID, paymentID)
	if err != nil {
		return false, fmt.Errorf("record provider event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseEvent removes a recorded provider event id so the provider's
// redelivery of that event is processed again instead of deduped away.
func (r *PostgresRepository) ReleaseEvent(ctx context.Context, provider, eventID string) error {
	if _, err := r.pool.Exec(ctx,
		`DELETE FROM payment_events WHERE provider=$1 AND event_id=$2`, provider, eventID); err != nil {
		return fmt.Errorf("release provider event: %w", err)
	}
	return nil
}
