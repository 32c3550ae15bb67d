package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
)

const tableReleaseConsumerName = "settlement-table-release"

// TableReleaser is the slice of the table registry this consumer needs.
type TableReleaser interface {
	Release(ctx context.Context, tableID string) error
}

// Checkpointer records per-partition consumption checkpoints for dedup.
type Checkpointer interface {
	GetLastSequence(ctx context.Context, consumerName, partitionKey string) (int64, bool, error)
	UpsertLastSequence(ctx context.Context, consumerName, partitionKey string, newSeq int64) error
}

// PaymentSucceededHandler releases the order's table once payment settles.
// Duplicate deliveries are suppressed by sequence checkpoint; release itself
// is idempotent so a rare replay is harmless.
func PaymentSucceededHandler(tables TableReleaser, checkpoints Checkpointer, logger *log.Logger) HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		var env PaymentSucceededEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return fmt.Errorf("unmarshal PaymentSucceeded: %w", err)
		}
		if err := env.Validate(PaymentSucceededEventName, PaymentSucceededEventVersion); err != nil {
			return fmt.Errorf("invalid envelope: %w", err)
		}

		lastSeq, ok, err := checkpoints.GetLastSequence(ctx, tableReleaseConsumerName, env.PartitionKey)
		if err != nil {
			return err
		}
		if ok && env.Sequence != 0 && env.Sequence <= lastSeq {
			logger.Printf("skip duplicate PaymentSucceeded order=%s seq=%d last=%d", env.Payload.OrderID, env.Sequence, lastSeq)
			return nil
		}

		if tableID := env.Payload.Tenant.TableID; tableID != "" {
			if err := tables.Release(ctx, tableID); err != nil {
				return fmt.Errorf("release table %s: %w", tableID, err)
			}
			logger.Printf("released table %s for order %s", tableID, env.Payload.OrderID)
		}

		if env.Sequence != 0 {
			if err := checkpoints.UpsertLastSequence(ctx, tableReleaseConsumerName, env.PartitionKey, env.Sequence); err != nil {
				return err
			}
		}
		return nil
	}
}
