package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/basnets24/restaurant.pos-sub000/internal/cart"
	"github.com/basnets24/restaurant.pos-sub000/internal/catalog"
	"github.com/basnets24/restaurant.pos-sub000/internal/checkout"
	"github.com/basnets24/restaurant.pos-sub000/internal/config"
	"github.com/basnets24/restaurant.pos-sub000/internal/db"
	"github.com/basnets24/restaurant.pos-sub000/internal/dedup"
	"github.com/basnets24/restaurant.pos-sub000/internal/events"
	"github.com/basnets24/restaurant.pos-sub000/internal/httpapi"
	"github.com/basnets24/restaurant.pos-sub000/internal/metrics"
	"github.com/basnets24/restaurant.pos-sub000/internal/order"
	"github.com/basnets24/restaurant.pos-sub000/internal/payment"
	"github.com/basnets24/restaurant.pos-sub000/internal/payment/stripe"
	"github.com/basnets24/restaurant.pos-sub000/internal/pricing"
	"github.com/basnets24/restaurant.pos-sub000/internal/sequence"
	"github.com/basnets24/restaurant.pos-sub000/internal/table"
	"github.com/basnets24/restaurant.pos-sub000/internal/webhook"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[settlement] ", log.LstdFlags|log.Lmicroseconds)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- DB ---
	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.DatabaseDSN, logger); err != nil {
			logger.Fatalf("db migrate: %v", err)
		}
	}

	cartRepo := cart.NewPostgresRepository(pool)
	menuRepo := catalog.NewPostgresRepository(pool)
	tables := table.NewPostgresRegistry(pool)
	orderRepo := order.NewPostgresRepository(pool)
	paymentRepo := payment.NewPostgresRepository(pool)
	seqRepo := sequence.NewRepository(pool)
	checkpoints := dedup.NewRepository(pool)
	pricingCfg := pricing.NewPGConfigProvider(pool)

	// --- AMQP ---
	conn := events.MustDialRabbit(cfg.RabbitURL)
	defer conn.Close()

	publisher, err := events.NewPublisher(conn, seqRepo)
	if err != nil {
		logger.Fatalf("create publisher: %v", err)
	}
	defer publisher.Close()

	handler := events.PaymentSucceededHandler(tables, checkpoints, logger)
	if err := events.StartConsumer(ctx, conn, events.PaymentSucceededRoutingKey, handler, logger); err != nil {
		logger.Fatalf("start consumer: %v", err)
	}

	// --- Stripe ---
	stripeClient, err := stripe.NewClient(stripe.ClientConfig{
		BaseURL:    cfg.StripeBaseURL,
		SecretKey:  cfg.StripeSecretKey,
		SuccessURL: cfg.CheckoutSuccessURL,
		CancelURL:  cfg.CheckoutCancelURL,
	})
	if err != nil {
		logger.Fatalf("create stripe client: %v", err)
	}
	verifier := stripe.NewSignatureVerifier(cfg.StripeWebhookSecret)

	// --- services ---
	m := metrics.New()
	cartSvc := cart.NewService(cartRepo, menuRepo, tables, logger)
	finalizer := checkout.NewFinalizer(cartRepo, orderRepo, pricingCfg, publisher, logger, m)
	sessionSvc := payment.NewSessionService(paymentRepo, orderRepo, stripeClient, stripe.ProviderName, logger)
	processor := webhook.NewProcessor(paymentRepo, orderRepo, publisher, verifier, stripeClient, stripe.ProviderName, logger, m)

	// --- HTTP ---
	router := httpapi.NewRouter(httpapi.RouterDeps{
		Carts: httpapi.NewCartHandler(cartSvc, finalizer, orderRepo, logger),
		Payments: httpapi.NewPaymentHandler(
			map[string]*payment.SessionService{stripe.ProviderName: sessionSvc},
			sessionSvc,
			logger,
			m,
		),
		Webhooks: httpapi.NewWebhookHandler(
			map[string]httpapi.WebhookEndpoint{
				stripe.ProviderName: {Processor: processor, SignatureHeader: stripe.SignatureHeader},
			},
			logger,
		),
		Metrics: m.Handler(),
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Printf("http listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Printf("shutdown signal: %s", sig)
	case err := <-errCh:
		logger.Printf("fatal error: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = httpServer.Shutdown(shutdownCtx)
	cancel()

	logger.Printf("shutdown complete")
}
