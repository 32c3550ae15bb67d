package events

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTableReleaser struct {
	releaseFunc func(ctx context.Context, tableID string) error
	released    []string
}

func (f *fakeTableReleaser) Release(ctx context.Context, tableID string) error {
	f.released = append(f.released, tableID)
	if f.releaseFunc != nil {
		return f.releaseFunc(ctx, tableID)
	}
	return nil
}

type fakeCheckpointer struct {
	last     map[string]int64
	upserted []int64
}

func (f *fakeCheckpointer) GetLastSequence(_ context.Context, _, partitionKey string) (int64, bool, error) {
	seq, ok := f.last[partitionKey]
	return seq, ok, nil
}

func (f *fakeCheckpointer) UpsertLastSequence(_ context.Context, _, partitionKey string, newSeq int64) error {
	if f.last == nil {
		f.last = map[string]int64{}
	}
	f.last[partitionKey] = newSeq
	f.upserted = append(f.upserted, newSeq)
	return nil
}

func paymentSucceededBody(t *testing.T, orderID, tableID string, seq int64) []byte {
	t.Helper()
	env := PaymentSucceededEnvelope{
		EventName:    PaymentSucceededEventName,
		EventVersion: PaymentSucceededEventVersion,
		EventID:      "evt-1",
		Producer:     "settlement-go",
		PartitionKey: orderID,
		Sequence:     seq,
		OccurredAt:   time.Now().UTC(),
		Payload: PaymentSucceededPayload{
			OrderID:   orderID,
			PaymentID: "pay-1",
			Tenant:    TenantRefs{TableID: tableID},
			Timestamp: time.Now().UTC(),
		},
	}
	body, err := json.Marshal(env)
	require.NoError(t, err)
	return body
}

func TestPaymentSucceededHandlerReleasesTable(t *testing.T) {
	tables := &fakeTableReleaser{}
	checkpoints := &fakeCheckpointer{}
	h := PaymentSucceededHandler(tables, checkpoints, log.New(io.Discard, "", 0))

	err := h(context.Background(), paymentSucceededBody(t, "ord-1", "table-3", 7))
	require.NoError(t, err)

	assert.Equal(t, []string{"table-3"}, tables.released)
	assert.Equal(t, []int64{7}, checkpoints.upserted)
}

func TestPaymentSucceededHandlerSkipsDuplicates(t *testing.T) {
	tables := &fakeTableReleaser{}
	checkpoints := &fakeCheckpointer{last: map[string]int64{"ord-1": 7}}
	h := PaymentSucceededHandler(tables, checkpoints, log.New(io.Discard, "", 0))

	err := h(context.Background(), paymentSucceededBody(t, "ord-1", "table-3", 7))
	require.NoError(t, err)

	assert.Empty(t, tables.released, "replayed sequence must not release again")
	assert.Empty(t, checkpoints.upserted)
}

func TestPaymentSucceededHandlerNoTable(t *testing.T) {
	tables := &fakeTableReleaser{}
	checkpoints := &fakeCheckpointer{}
	h := PaymentSucceededHandler(tables, checkpoints, log.New(io.Discard, "", 0))

	// takeaway orders carry no table reference
	err := h(context.Background(), paymentSucceededBody(t, "ord-2", "", 1))
	require.NoError(t, err)

	assert.Empty(t, tables.released)
	assert.Equal(t, []int64{1}, checkpoints.upserted)
}

func TestPaymentSucceededHandlerRejectsWrongEvent(t *testing.T) {
	h := PaymentSucceededHandler(&fakeTableReleaser{}, &fakeCheckpointer{}, log.New(io.Discard, "", 0))

	env := PaymentSucceededEnvelope{
		EventName:    "order.submitted",
		EventVersion: PaymentSucceededEventVersion,
		PartitionKey: "ord-1",
	}
	body, err := json.Marshal(env)
	require.NoError(t, err)

	assert.Error(t, h(context.Background(), body))
}

func TestPaymentSucceededHandlerCheckpointAfterRelease(t *testing.T) {
	// a failed release must leave the checkpoint untouched so the
	// redelivery retries the release
	tables := &fakeTableReleaser{releaseFunc: func(_ context.Context, _ string) error {
		return context.DeadlineExceeded
	}}
	checkpoints := &fakeCheckpointer{}
	h := PaymentSucceededHandler(tables, checkpoints, log.New(io.Discard, "", 0))

	err := h(context.Background(), paymentSucceededBody(t, "ord-3", "table-9", 2))
	require.Error(t, err)
	assert.Empty(t, checkpoints.upserted)
}
