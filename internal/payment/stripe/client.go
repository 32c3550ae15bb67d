// Package stripe is a thin client for the Stripe-compatible hosted checkout
// API surface the settlement core uses: creating checkout sessions and
// retrieving their payment status.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

const ProviderName = "stripe"

// SessionRequest describes the hosted checkout session to create.
type SessionRequest struct {
	OrderID     string
	Amount      decimal.Decimal
	Currency    string
	Description string
	SuccessURL  string
	CancelURL   string
}

// Session is the subset of the provider's checkout session object we read.
type Session struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentIntent string `json:"payment_intent"`
	PaymentStatus string `json:"payment_status"`
	Status        string `json:"status"`
}

// Paid reports whether the gateway says the session has been paid.
func (s Session) Paid() bool {
	return s.PaymentStatus == "paid"
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Client calls the provider REST API. Calls run behind a circuit breaker so
// a degraded gateway fails fast instead of piling up checkout requests.
type Client struct {
	baseURL    *url.URL
	secretKey  string
	successURL string
	cancelURL  string
	http       *http.Client
	breaker    *gobreaker.CircuitBreaker[Session]
}

type ClientConfig struct {
	BaseURL    string
	SecretKey  string
	SuccessURL string
	CancelURL  string
	Timeout    time.Duration
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.stripe.com"
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid provider base url %q: %w", cfg.BaseURL, err)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[Session](gobreaker.Settings{
		Name:    "stripe",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		baseURL:    u,
		secretKey:  cfg.SecretKey,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		http:       &http.Client{Timeout: timeout},
		breaker:    breaker,
	}, nil
}

// CreateCheckoutSession creates a hosted checkout session for the order.
func (c *Client) CreateCheckoutSession(ctx context.Context, req SessionRequest) (Session, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("client_reference_id", req.OrderID)
	successURL, cancelURL := c.successURL, c.cancelURL
	if req.SuccessURL != "" {
		successURL = req.SuccessURL
	}
	if req.CancelURL != "" {
		cancelURL = req.CancelURL
	}
	form.Set("success_url", successURL)
	form.Set("cancel_url", cancelURL)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(req.Currency))
	// provider expects minor units
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(req.Amount.Mul(decimal.NewFromInt(100)).IntPart(), 10))
	name := req.Description
	if name == "" {
		name = "Order " + req.OrderID
	}
	form.Set("line_items[0][price_data][product_data][name]", name)
	form.Set("metadata[orderId]", req.OrderID)

	return c.breaker.Execute(func() (Session, error) {
		return c.do(ctx, http.MethodPost, "/v1/checkout/sessions", strings.NewReader(form.Encode()))
	})
}

// GetCheckoutSession retrieves a session, used to re-verify paid state.
func (c *Client) GetCheckoutSession(ctx context.Context, sessionID string) (Session, error) {
	return c.breaker.Execute(func() (Session, error) {
		return c.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(sessionID), nil)
	})
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (Session, error) {
	u := c.baseURL.ResolveReference(&url.URL{Path: path})

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return Session{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("provider request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Session{}, fmt.Errorf("read provider response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
			return Session{}, fmt.Errorf("provider error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return Session{}, fmt.Errorf("provider error (%d)", resp.StatusCode)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return s, nil
}
