// Package webhook consumes payment-gateway callback events and applies them
// idempotently to payment records. The gateway delivers at least once and
// possibly out of order; several event types can describe the same logical
// outcome, so every handler checks current state before mutating and the
// terminal states are sticky.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/basnets24/restaurant.pos-sub000/internal/events"
	"github.com/basnets24/restaurant.pos-sub000/internal/metrics"
	"github.com/basnets24/restaurant.pos-sub000/internal/order"
	"github.com/basnets24/restaurant.pos-sub000/internal/payment"
	"github.com/basnets24/restaurant.pos-sub000/internal/payment/stripe"
)

// PaymentStore is the slice of the payment repository the processor needs.
type PaymentStore interface {
	FindByProviderRef(ctx context.Context, sessionID, intentID string) (*payment.Payment, error)
	MarkSucceeded(ctx context.Context, paymentID, receiptURL, eventID string) (bool, error)
	MarkFailed(ctx context.Context, paymentID, reason, eventID string) (bool, error)
	RecordLastEvent(ctx context.Context, paymentID, eventID string) error
	RecordEvent(ctx context.Context, provider, eventID, paymentID string) (bool, error)
	ReleaseEvent(ctx context.Context, provider, eventID string) error
}

// OrderStore provides the tenant context published with settlement events.
type OrderStore interface {
	GetByID(ctx context.Context, orderID string) (*order.Order, error)
}

// Publisher emits the settlement outcome to the event bus.
type Publisher interface {
	PublishPaymentSucceeded(ctx context.Context, meta events.Meta, paymentID, orderID, receiptURL string, tenant events.TenantRefs) error
	PublishPaymentFailed(ctx context.Context, meta events.Meta, paymentID, orderID, reason string, tenant events.TenantRefs) error
}

// Verifier authenticates the raw payload against the signature header.
type Verifier interface {
	Verify(payload []byte, header string) error
}

// SessionFetcher re-checks paid state at the gateway for intent events,
// which do not carry the session's payment status.
type SessionFetcher interface {
	GetCheckoutSession(ctx context.Context, sessionID string) (stripe.Session, error)
}

type handlerFunc func(ctx context.Context, ev Event) error

// Processor applies gateway events. Dispatch is a table keyed by event
// type with an explicit no-op for unknown types, so new provider events
// never cause retries.
type Processor struct {
	payments PaymentStore
	orders   OrderStore
	pub      Publisher
	verifier Verifier
	sessions SessionFetcher
	provider string
	logger   *log.Logger
	metrics  *metrics.Metrics
	handlers map[string]handlerFunc
}

func NewProcessor(payments PaymentStore, orders OrderStore, pub Publisher, verifier Verifier, sessions SessionFetcher, provider string, logger *log.Logger, m *metrics.Metrics) *Processor {
	p := &Processor{
		payments: payments,
		orders:   orders,
		pub:      pub,
		verifier: verifier,
		sessions: sessions,
		provider: provider,
		logger:   logger,
		metrics:  m,
	}
	p.handlers = map[string]handlerFunc{
		typeSessionCompleted:      p.handleSessionSuccess,
		typeAsyncPaymentSucceeded: p.handleSessionSuccess,
		typeIntentSucceeded:       p.handleIntentSuccess,
		typeAsyncPaymentFailed:    p.handleSessionFailure("asynchronous payment failed"),
		typeSessionExpired:        p.handleSessionFailure("checkout session expired"),
		typeIntentFailed:          p.handleIntentFailure,
	}
	return p
}

// Handle verifies, dedupes, and dispatches one raw webhook delivery.
// stripe.ErrBadSignature is the only error the HTTP layer turns into a
// non-2xx response; everything else is logged and acknowledged.
func (p *Processor) Handle(ctx context.Context, raw []byte, signature string) error {
	if err := p.verifier.Verify(raw, signature); err != nil {
		p.metrics.WebhookEvents.WithLabelValues("unknown", "bad_signature").Inc()
		return err
	}

	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		p.metrics.WebhookEvents.WithLabelValues("unknown", "malformed").Inc()
		return fmt.Errorf("unmarshal event: %w", err)
	}
	if ev.ID == "" {
		p.metrics.WebhookEvents.WithLabelValues(ev.Type, "malformed").Inc()
		return errors.New("event missing id")
	}

	// Global dedup: the provider redelivers; the exact same event id is
	// applied at most once.
	first, err := p.payments.RecordEvent(ctx, p.provider, ev.ID, "")
	if err != nil {
		return fmt.Errorf("record event %s: %w", ev.ID, err)
	}
	if !first {
		p.logger.Printf("duplicate provider event %s ignored", ev.ID)
		p.metrics.WebhookEvents.WithLabelValues(ev.Type, "duplicate").Inc()
		return nil
	}

	handler, known := p.handlers[ev.Type]
	if !known {
		// forward compatibility: unknown events are acknowledged, never retried
		p.logger.Printf("ignoring unrecognized event type %q (%s)", ev.Type, ev.ID)
		p.metrics.WebhookEvents.WithLabelValues(ev.Type, "ignored").Inc()
		return nil
	}

	if err := handler(ctx, ev); err != nil {
		// The HTTP layer acks this delivery regardless, so give the event id
		// back: the provider's redelivery must get a real retry, not a
		// dedup no-op against a half-applied event.
		if relErr := p.payments.ReleaseEvent(context.WithoutCancel(ctx), p.provider, ev.ID); relErr != nil {
			p.logger.Printf("release event %s after failed apply: %v", ev.ID, relErr)
		}
		p.metrics.WebhookEvents.WithLabelValues(ev.Type, "error").Inc()
		return err
	}
	p.metrics.WebhookEvents.WithLabelValues(ev.Type, "processed").Inc()
	return nil
}

func (p *Processor) handleSessionSuccess(ctx context.Context, ev Event) error {
	var sess sessionObject
	if err := json.Unmarshal(ev.Data.Object, &sess); err != nil {
		return fmt.Errorf("unmarshal session object: %w", err)
	}

	pay, err := p.payments.FindByProviderRef(ctx, sess.ID, sess.PaymentIntent)
	if err != nil {
		return fmt.Errorf("locate payment for session %s: %w", sess.ID, err)
	}

	if pay.Status == payment.StatusSucceeded {
		return p.payments.RecordLastEvent(ctx, pay.ID, ev.ID)
	}

	// The completed event can precede actual capture; wait for a later
	// event rather than trusting the type alone.
	if !sess.paid() {
		p.logger.Printf("session %s not paid yet (%s), waiting", sess.ID, ev.Type)
		return nil
	}

	return p.succeed(ctx, pay, ev.ID, "")
}

func (p *Processor) handleIntentSuccess(ctx context.Context, ev Event) error {
	var intent intentObject
	if err := json.Unmarshal(ev.Data.Object, &intent); err != nil {
		return fmt.Errorf("unmarshal intent object: %w", err)
	}

	pay, err := p.payments.FindByProviderRef(ctx, "", intent.ID)
	if err != nil {
		return fmt.Errorf("locate payment for intent %s: %w", intent.ID, err)
	}

	if pay.Status == payment.StatusSucceeded {
		return p.payments.RecordLastEvent(ctx, pay.ID, ev.ID)
	}

	// Re-verify paid state with the gateway when we can; the intent event
	// alone does not carry the session's payment status.
	if pay.SessionID != "" {
		sess, err := p.sessions.GetCheckoutSession(ctx, pay.SessionID)
		if err != nil {
			return fmt.Errorf("verify session %s: %w", pay.SessionID, err)
		}
		if !sess.Paid() {
			p.logger.Printf("session %s not paid despite intent %s succeeded, waiting", pay.SessionID, intent.ID)
			return nil
		}
	} else if intent.Status != "succeeded" {
		return nil
	}

	return p.succeed(ctx, pay, ev.ID, intent.receiptURL())
}

func (p *Processor) handleSessionFailure(reason string) handlerFunc {
	return func(ctx context.Context, ev Event) error {
		var sess sessionObject
		if err := json.Unmarshal(ev.Data.Object, &sess); err != nil {
			return fmt.Errorf("unmarshal session object: %w", err)
		}

		pay, err := p.payments.FindByProviderRef(ctx, sess.ID, sess.PaymentIntent)
		if err != nil {
			return fmt.Errorf("locate payment for session %s: %w", sess.ID, err)
		}
		return p.fail(ctx, pay, ev.ID, reason)
	}
}

func (p *Processor) handleIntentFailure(ctx context.Context, ev Event) error {
	var intent intentObject
	if err := json.Unmarshal(ev.Data.Object, &intent); err != nil {
		return fmt.Errorf("unmarshal intent object: %w", err)
	}

	pay, err := p.payments.FindByProviderRef(ctx, "", intent.ID)
	if err != nil {
		return fmt.Errorf("locate payment for intent %s: %w", intent.ID, err)
	}
	return p.fail(ctx, pay, ev.ID, intent.failureReason())
}

// succeed transitions pending -> succeeded and publishes the outcome. The
// guarded update makes terminal states sticky under reordering: a failure
// arriving later, or a concurrent duplicate, finds status != pending and
// changes nothing.
func (p *Processor) succeed(ctx context.Context, pay *payment.Payment, eventID, receiptURL string) error {
	updated, err := p.payments.MarkSucceeded(ctx, pay.ID, receiptURL, eventID)
	if err != nil {
		return fmt.Errorf("mark payment %s succeeded: %w", pay.ID, err)
	}
	if !updated {
		// already terminal; nothing to publish
		return p.payments.RecordLastEvent(ctx, pay.ID, eventID)
	}

	p.logger.Printf("payment %s for order %s succeeded", pay.ID, pay.OrderID)

	// publication is part of the committed unit of work; cancellation of
	// the inbound request must not suppress it
	pubCtx := context.WithoutCancel(ctx)
	meta := events.Meta{CorrelationID: eventID, CausationID: eventID, PartitionKey: pay.OrderID}
	if err := p.pub.PublishPaymentSucceeded(pubCtx, meta, pay.ID, pay.OrderID, receiptURL, p.tenantRefs(pubCtx, pay.OrderID)); err != nil {
		return fmt.Errorf("publish PaymentSucceeded: %w", err)
	}
	return nil
}

func (p *Processor) fail(ctx context.Context, pay *payment.Payment, eventID, reason string) error {
	if pay.Status == payment.StatusFailed {
		return p.payments.RecordLastEvent(ctx, pay.ID, eventID)
	}

	updated, err := p.payments.MarkFailed(ctx, pay.ID, reason, eventID)
	if err != nil {
		return fmt.Errorf("mark payment %s failed: %w", pay.ID, err)
	}
	if !updated {
		// succeeded meanwhile or concurrently; terminal states are sticky
		p.logger.Printf("payment %s already terminal, failure event %s ignored", pay.ID, eventID)
		return nil
	}

	p.logger.Printf("payment %s for order %s failed: %s", pay.ID, pay.OrderID, reason)

	pubCtx := context.WithoutCancel(ctx)
	meta := events.Meta{CorrelationID: eventID, CausationID: eventID, PartitionKey: pay.OrderID}
	if err := p.pub.PublishPaymentFailed(pubCtx, meta, pay.ID, pay.OrderID, reason, p.tenantRefs(pubCtx, pay.OrderID)); err != nil {
		return fmt.Errorf("publish PaymentFailed: %w", err)
	}
	return nil
}

// tenantRefs loads the order's table/session context, best-effort: the
// settlement publication must not be lost over a missing read model.
func (p *Processor) tenantRefs(ctx context.Context, orderID string) events.TenantRefs {
	lookupCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	o, err := p.orders.GetByID(lookupCtx, orderID)
	if err != nil {
		p.logger.Printf("load order %s for tenant refs: %v", orderID, err)
		return events.TenantRefs{}
	}
	return events.TenantRefs{
		TableID:    o.TableID,
		CustomerID: o.CustomerID,
		ServerID:   o.ServerID,
	}
}
