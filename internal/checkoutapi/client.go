// Package checkoutapi is the client for the storefront checkout backend:
// server-side session lifecycle, order completion, and the payment
// initialization/verification endpoints.
package checkoutapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yourorg/checkout-orchestrator/internal/checkout"
	"github.com/yourorg/checkout-orchestrator/internal/pricing"
)

// Session is the server-tracked, time-limited record of an in-progress
// checkout, distinct from the client-persisted draft blob.
type Session struct {
	ID        string    `json:"id"`
	StoreID   string    `json:"storeId"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CompleteRequest is the full checkout payload submitted to create the
// order. Resubmitting an identical payload must not double-create the
// order; that idempotency is the server's contract.
type CompleteRequest struct {
	StoreID    string              `json:"storeId"`
	SessionID  string              `json:"sessionId,omitempty"`
	FormData   checkout.Form       `json:"formData"`
	Items      []pricing.Item      `json:"items"`
	Totals     pricing.OrderTotals `json:"totals"`
	CouponCode string              `json:"coupon,omitempty"`
}

// CompleteResponse carries the identifiers of the created order.
type CompleteResponse struct {
	OrderID          string `json:"orderId"`
	OrderNumber      string `json:"orderNumber"`
	PaymentReference string `json:"paymentReference,omitempty"`
	PaymentURL       string `json:"paymentUrl,omitempty"`
	Status           string `json:"status"`
}

// InitializePaymentRequest starts one payment attempt for an order.
type InitializePaymentRequest struct {
	OrderID     string            `json:"orderId"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Method      string            `json:"method"`
	Gateway     string            `json:"gateway"`
	CallbackURL string            `json:"callbackUrl"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// InitializePaymentResponse is the gateway handoff returned by the backend.
type InitializePaymentResponse struct {
	Success          bool   `json:"success"`
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorizationUrl,omitempty"`
	AccessCode       string `json:"accessCode,omitempty"`
	Message          string `json:"message,omitempty"`
	ErrorCode        string `json:"errorCode,omitempty"`
}

// PaymentStatusResponse reports the current state of a payment attempt.
type PaymentStatusResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"` // pending, completed, failed, cancelled
	ErrorCode string `json:"errorCode,omitempty"`
	Message   string `json:"message,omitempty"`
}

// APIError is a non-retryable HTTP failure carrying the server's message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("checkoutapi: HTTP %d: %s", e.Status, e.Message)
}

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 200 * time.Millisecond
	defaultMaxDelay    = 2 * time.Second
)

func retryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Client talks to the checkout backend with bounded exponential backoff on
// retryable statuses.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewClient creates a checkout backend client. A nil http.Client gets a
// 15s-timeout default.
func NewClient(baseURL string, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:     baseURL,
		httpClient:  client,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		maxDelay:    defaultMaxDelay,
	}
}

// CreateSession opens a server-side checkout session for a store.
func (c *Client) CreateSession(ctx context.Context, storeID string) (*Session, error) {
	var out Session
	payload := map[string]string{"storeId": storeID}
	if err := c.do(ctx, http.MethodPost, "/checkout/session", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSession fetches a server-side session by ID.
func (c *Client) GetSession(ctx context.Context, id string) (*Session, error) {
	var out Session
	if err := c.do(ctx, http.MethodGet, "/checkout/session/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateSession patches mutable fields of a server-side session.
func (c *Client) UpdateSession(ctx context.Context, id string, patch map[string]any) (*Session, error) {
	var out Session
	if err := c.do(ctx, http.MethodPatch, "/checkout/session/"+id, patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Complete submits the full checkout payload and returns the created order.
func (c *Client) Complete(ctx context.Context, req CompleteRequest) (*CompleteResponse, error) {
	var out CompleteResponse
	if err := c.do(ctx, http.MethodPost, "/checkout/complete", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// InitializePayment starts a payment attempt for an existing order.
func (c *Client) InitializePayment(ctx context.Context, req InitializePaymentRequest) (*InitializePaymentResponse, error) {
	var out InitializePaymentResponse
	if err := c.do(ctx, http.MethodPost, "/payments/initialize", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyPayment confirms the final state of a payment attempt.
func (c *Client) VerifyPayment(ctx context.Context, reference string) (*PaymentStatusResponse, error) {
	var out PaymentStatusResponse
	if err := c.do(ctx, http.MethodGet, "/payments/verify/"+reference, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PaymentStatus polls the current state of a payment attempt.
func (c *Client) PaymentStatus(ctx context.Context, reference string) (*PaymentStatusResponse, error) {
	var out PaymentStatusResponse
	if err := c.do(ctx, http.MethodGet, "/payments/status/"+reference, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RetryPayment asks the backend for a fresh handoff on an existing attempt.
func (c *Client) RetryPayment(ctx context.Context, reference string) (*InitializePaymentResponse, error) {
	var out InitializePaymentResponse
	if err := c.do(ctx, http.MethodPost, "/payments/retry/"+reference, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("checkoutapi: encoding request: %w", err)
		}
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

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("checkoutapi: building request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("checkoutapi: request failed (attempt %d): %w", attempt, err)
			continue
		}

		raw, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("checkoutapi: reading response (attempt %d): %w", attempt, readErr)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(raw, out); err != nil {
				return fmt.Errorf("checkoutapi: decoding response: %w", err)
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
