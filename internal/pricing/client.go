// Package pricing is the client for the remote pricing/validation service.
// The server's response is the sole source of truth for totals; nothing
// client-side recomputes tax or shipping.
package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yourorg/checkout-orchestrator/internal/checkout"
)

// Item is one cart line as the pricing service expects it.
type Item struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"` // minor units
}

// OrderTotals is the authoritative server-computed breakdown, in minor
// units. Derived, never hand-edited.
type OrderTotals struct {
	Subtotal int64 `json:"subtotal"`
	Shipping int64 `json:"shipping"`
	Tax      int64 `json:"tax"`
	Discount int64 `json:"discount"`
	Total    int64 `json:"total"`
}

// Request is the common payload for validation and totals calculation.
type Request struct {
	Items      []Item                   `json:"items"`
	Address    checkout.ShippingAddress `json:"address"`
	CouponCode string                   `json:"coupon,omitempty"`
}

// ValidationResult is the outcome of pre-submission validation.
type ValidationResult struct {
	IsValid        bool     `json:"isValid"`
	Errors         []string `json:"errors"`
	Warnings       []string `json:"warnings"`
	AvailableItems []string `json:"availableItems"`
}

// APIError is a non-retryable HTTP failure carrying the server's message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pricing: HTTP %d: %s", e.Status, e.Message)
}

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 200 * time.Millisecond
	defaultMaxDelay    = 2 * time.Second
)

// retryableStatus reports whether the HTTP status warrants backoff and
// retry rather than an immediate failure.
func retryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Client calls the pricing service's validate and calculate endpoints.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewClient creates a pricing client. A nil http.Client gets a 10s-timeout
// default.
func NewClient(baseURL string, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:     baseURL,
		httpClient:  client,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		maxDelay:    defaultMaxDelay,
	}
}

// Validate checks items, address, and coupon with the remote service.
func (c *Client) Validate(ctx context.Context, req Request) (*ValidationResult, error) {
	var out ValidationResult
	if err := c.post(ctx, "/checkout/validate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Calculate returns the authoritative totals for the current cart state.
func (c *Client) Calculate(ctx context.Context, req Request) (*OrderTotals, error) {
	var out OrderTotals
	if err := c.post(ctx, "/checkout/calculate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("pricing: encoding request: %w", err)
	}

	var lastErr error
	delay := c.baseDelay
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("pricing: building request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("pricing: request failed (attempt %d): %w", attempt, err)
			continue
		}

		raw, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("pricing: reading response (attempt %d): %w", attempt, readErr)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if err := json.Unmarshal(raw, out); err != nil {
				return fmt.Errorf("pricing: decoding response: %w", err)
			}
			return nil
		}

		if retryableStatus(resp.StatusCode) {
			lastErr = &APIError{Status: resp.StatusCode, Message: serverMessage(raw)}
			continue
		}
		return &APIError{Status: resp.StatusCode, Message: serverMessage(raw)}
	}
	return lastErr
}

// serverMessage extracts the server-provided message from an error body,
// falling back to the raw text.
func serverMessage(raw []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return string(raw)
}
