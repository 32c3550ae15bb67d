package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/basnets24/restaurant.pos-sub000/internal/order"
	"github.com/basnets24/restaurant.pos-sub000/internal/sequence"
)

// Publisher emits settlement events to the events exchange. Every event is
// enveloped and carries a per-partition sequence (partitioned by order id)
// so consumers can dedupe under at-least-once delivery.
type Publisher struct {
	ch       *amqp.Channel
	seqRepo  *sequence.Repository
	producer string
}

func NewPublisher(conn *amqp.Connection, seqRepo *sequence.Repository) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareEventsExchange(ch); err != nil {
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}

	return &Publisher{ch: ch, seqRepo: seqRepo, producer: settlementServiceName}, nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

func (p *Publisher) PublishOrderSubmitted(ctx context.Context, o *order.Order) error {
	payload := OrderSubmittedPayload{
		OrderID:   o.ID,
		TableID:   o.TableID,
		Subtotal:  o.Subtotal,
		Timestamp: time.Now().UTC(),
	}
	for _, l := range o.Lines {
		payload.Items = append(payload.Items, LineSummary{
			MenuItemID: l.MenuItemID,
			Name:       l.Name,
			Quantity:   l.Quantity,
		})
	}

	return publish(ctx, p, OrderSubmittedRoutingKey,
		OrderSubmittedEventName, OrderSubmittedEventVersion,
		Meta{PartitionKey: o.ID}, payload)
}

func (p *Publisher) PublishPaymentSucceeded(ctx context.Context, meta Meta, paymentID, orderID, receiptURL string, tenant TenantRefs) error {
	payload := PaymentSucceededPayload{
		OrderID:    orderID,
		PaymentID:  paymentID,
		ReceiptURL: receiptURL,
		Tenant:     tenant,
		Timestamp:  time.Now().UTC(),
	}
	if meta.PartitionKey == "" {
		meta.PartitionKey = orderID
	}
	return publish(ctx, p, PaymentSucceededRoutingKey,
		PaymentSucceededEventName, PaymentSucceededEventVersion, meta, payload)
}

func (p *Publisher) PublishPaymentFailed(ctx context.Context, meta Meta, paymentID, orderID, reason string, tenant TenantRefs) error {
	payload := PaymentFailedPayload{
		OrderID:   orderID,
		PaymentID: paymentID,
		Reason:    reason,
		Tenant:    tenant,
		Timestamp: time.Now().UTC(),
	}
	if meta.PartitionKey == "" {
		meta.PartitionKey = orderID
	}
	return publish(ctx, p, PaymentFailedRoutingKey,
		PaymentFailedEventName, PaymentFailedEventVersion, meta, payload)
}

func publish[T any](ctx context.Context, p *Publisher, routingKey, eventName string, eventVersion int, meta Meta, payload T) error {
	seq, err := p.seqRepo.NextSequence(ctx, meta.PartitionKey)
	if err != nil {
		return fmt.Errorf("reserve sequence: %w", err)
	}

	correlationID := meta.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	env := EventEnvelope[T]{
		EventName:     eventName,
		EventVersion:  eventVersion,
		EventID:       uuid.NewString(),
		CorrelationID: correlationID,
		CausationID:   meta.CausationID,
		Producer:      p.producer,
		PartitionKey:  meta.PartitionKey,
		Sequence:      seq,
		OccurredAt:    time.Now().UTC(),
		Payload:       payload,
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventName, err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		EventsExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}
