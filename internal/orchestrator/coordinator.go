// Package orchestrator sequences order submission: validation, totals,
// order creation, and the payment handoff. Phases are strictly sequential;
// totals are never calculated before validation succeeds and payment is
// never initiated before an order exists.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yourorg/checkout-orchestrator/internal/callback"
	"github.com/yourorg/checkout-orchestrator/internal/checkout"
	"github.com/yourorg/checkout-orchestrator/internal/checkoutapi"
	"github.com/yourorg/checkout-orchestrator/internal/gateway"
	"github.com/yourorg/checkout-orchestrator/internal/policy"
	"github.com/yourorg/checkout-orchestrator/internal/pricing"
	"github.com/yourorg/checkout-orchestrator/internal/telemetry"
)

// Phase is the coordinator's position in the submission sequence.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseValidating        Phase = "validating"
	PhaseCalculatingTotals Phase = "calculating-totals"
	PhaseCreatingOrder     Phase = "creating-order"
	PhaseAwaitingPayment   Phase = "awaiting-payment"
	PhaseCompleted         Phase = "completed"
	PhaseFailed            Phase = "failed"
)

// ErrSubmissionInFlight rejects duplicate submission while a run is pending.
var ErrSubmissionInFlight = errors.New("orchestrator: a submission is already in flight")

// ErrNothingToRetry rejects a retry with no failed attempt behind it.
var ErrNothingToRetry = errors.New("orchestrator: no failed payment attempt to retry")

// PricingService validates the cart and computes authoritative totals.
type PricingService interface {
	Validate(ctx context.Context, req pricing.Request) (*pricing.ValidationResult, error)
	Calculate(ctx context.Context, req pricing.Request) (*pricing.OrderTotals, error)
}

// OrderService creates orders and verifies payment attempts.
type OrderService interface {
	Complete(ctx context.Context, req checkoutapi.CompleteRequest) (*checkoutapi.CompleteResponse, error)
	VerifyPayment(ctx context.Context, reference string) (*checkoutapi.PaymentStatusResponse, error)
}

// RateLimiter is the slice of the payment retry limiter the coordinator
// consults.
type RateLimiter interface {
	CanAttempt(ctx context.Context, key string) bool
	RecordFailure(ctx context.Context, key string) error
	RemainingAttempts(ctx context.Context, key string) int
	RemainingTime(ctx context.Context, key string) time.Duration
	Reset(ctx context.Context, key string) error
}

// CallbackWaiter resolves a payment reference to its asynchronous outcome.
type CallbackWaiter interface {
	Await(ctx context.Context, reference string) callback.Result
}

// SubmitRequest is everything one submission run needs.
type SubmitRequest struct {
	Form       checkout.Form
	Items      []pricing.Item
	CouponCode string
	SessionID  string
	Currency   string // defaults to USD
}

// Outcome statuses.
const (
	OutcomeCompleted        = "completed"
	OutcomeFailed           = "failed"
	OutcomeCancelled        = "cancelled"
	OutcomeValidationFailed = "validation-failed"
)

// Outcome is the resolved result of a submission or retry.
type Outcome struct {
	Status            string                `json:"status"`
	OrderID           string                `json:"orderId,omitempty"`
	OrderNumber       string                `json:"orderNumber,omitempty"`
	Reference         string                `json:"reference,omitempty"`
	Totals            *pricing.OrderTotals  `json:"totals,omitempty"`
	Activation        *gateway.Activation   `json:"activation,omitempty"`
	Error             *gateway.PaymentError `json:"error,omitempty"`
	ValidationErrors  []string              `json:"validationErrors,omitempty"`
	Decision          *policy.Decision      `json:"-"`
	RemainingAttempts int                   `json:"remainingAttempts,omitempty"`
	RetryAfter        time.Duration         `json:"retryAfter,omitempty"`
}

// Config wires a coordinator's collaborators.
type Config struct {
	StoreID         string
	Pricing         PricingService
	Orders          OrderService
	Registry        *gateway.Registry
	Broker          CallbackWaiter
	Limiter         RateLimiter
	Enforcer        *policy.Enforcer
	Metrics         *telemetry.Metrics
	CallbackURL     string
	CallbackTimeout time.Duration
}

// Coordinator runs the submission state machine for one store's checkout.
type Coordinator struct {
	cfg Config

	mu       sync.Mutex
	phase    Phase
	pending  bool
	order    *checkoutapi.CompleteResponse
	totals   *pricing.OrderTotals
	attempt  *gateway.Attempt
	attempts int // attempts made during this submission, including retries
	lastReq  *SubmitRequest
	lastErr  *gateway.PaymentError
}

// NewCoordinator creates a coordinator in the idle phase.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	switch {
	case cfg.Pricing == nil:
		return nil, errors.New("orchestrator: pricing service is required")
	case cfg.Orders == nil:
		return nil, errors.New("orchestrator: order service is required")
	case cfg.Registry == nil:
		return nil, errors.New("orchestrator: gateway registry is required")
	case cfg.Broker == nil:
		return nil, errors.New("orchestrator: callback waiter is required")
	case cfg.Limiter == nil:
		return nil, errors.New("orchestrator: rate limiter is required")
	case cfg.Enforcer == nil:
		return nil, errors.New("orchestrator: policy enforcer is required")
	}
	if cfg.CallbackTimeout <= 0 {
		cfg.CallbackTimeout = 5 * time.Minute
	}
	return &Coordinator{cfg: cfg, phase: PhaseIdle}, nil
}

// Phase returns the coordinator's current phase.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// LastError returns the failure behind the current failed phase, if any.
func (c *Coordinator) LastError() *gateway.PaymentError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Attempt returns the most recent payment attempt, if any.
func (c *Coordinator) Attempt() *gateway.Attempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt
}

func (c *Coordinator) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.SubmissionPhases.WithLabelValues(string(p)).Inc()
	}
}

func (c *Coordinator) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending {
		return ErrSubmissionInFlight
	}
	c.pending = true
	return nil
}

func (c *Coordinator) end() {
	c.mu.Lock()
	c.pending = false
	c.mu.Unlock()
}

// Submit runs the full submission sequence for req.
func (c *Coordinator) Submit(ctx context.Context, req SubmitRequest) (*Outcome, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	tracer := otel.Tracer("orchestrator")
	ctx, span := tracer.Start(ctx, "Coordinator.Submit")
	defer span.End()
	span.SetAttributes(attribute.String("checkout.store_id", c.cfg.StoreID))

	pricingReq := pricing.Request{Items: req.Items, Address: req.Form.ShippingAddress, CouponCode: req.CouponCode}

	// Validation. Errors here resolve locally: back to idle, nothing
	// submitted.
	c.setPhase(PhaseValidating)
	validation, err := c.cfg.Pricing.Validate(ctx, pricingReq)
	if err != nil {
		c.setPhase(PhaseIdle)
		return nil, fmt.Errorf("orchestrator: validating checkout: %w", err)
	}
	if !validation.IsValid {
		log.Printf("Orchestrator: validation rejected submission for store %s: %v", c.cfg.StoreID, validation.Errors)
		c.setPhase(PhaseIdle)
		return &Outcome{Status: OutcomeValidationFailed, ValidationErrors: validation.Errors}, nil
	}

	// Authoritative totals. Client-displayed totals are provisional until
	// this confirms them.
	c.setPhase(PhaseCalculatingTotals)
	totals, err := c.cfg.Pricing.Calculate(ctx, pricingReq)
	if err != nil {
		c.setPhase(PhaseIdle)
		return nil, fmt.Errorf("orchestrator: calculating totals: %w", err)
	}

	c.setPhase(PhaseCreatingOrder)
	order, err := c.cfg.Orders.Complete(ctx, checkoutapi.CompleteRequest{
		StoreID:    c.cfg.StoreID,
		SessionID:  req.SessionID,
		FormData:   req.Form,
		Items:      req.Items,
		Totals:     *totals,
		CouponCode: req.CouponCode,
	})
	if err != nil {
		c.setPhase(PhaseIdle)
		return nil, fmt.Errorf("orchestrator: creating order: %w", err)
	}

	c.mu.Lock()
	c.order = order
	c.totals = totals
	c.attempts = 0
	reqCopy := req
	c.lastReq = &reqCopy
	c.mu.Unlock()

	return c.executeAttempt(ctx, req, totals, order)
}

// Retry re-invokes the gateway for the existing order after a failure.
// Only ever triggered by an explicit user action.
func (c *Coordinator) Retry(ctx context.Context) (*Outcome, error) {
	c.mu.Lock()
	if c.phase != PhaseFailed || c.order == nil || c.lastReq == nil {
		c.mu.Unlock()
		return nil, ErrNothingToRetry
	}
	req := *c.lastReq
	order := c.order
	totals := c.totals
	c.mu.Unlock()

	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	tracer := otel.Tracer("orchestrator")
	ctx, span := tracer.Start(ctx, "Coordinator.Retry")
	defer span.End()

	return c.executeAttempt(ctx, req, totals, order)
}

// executeAttempt runs the awaiting-payment phase: limiter check, adapter
// invocation, and callback resolution.
func (c *Coordinator) executeAttempt(ctx context.Context, req SubmitRequest, totals *pricing.OrderTotals, order *checkoutapi.CompleteResponse) (*Outcome, error) {
	form := req.Form
	email := form.CustomerInfo.Email

	if !c.cfg.Limiter.CanAttempt(ctx, email) {
		retryAfter := c.cfg.Limiter.RemainingTime(ctx, email)
		pe := gateway.NewPaymentError(gateway.CodeRateLimited, "", "")
		c.recordFailedPhase(pe)
		return &Outcome{
			Status:     OutcomeFailed,
			OrderID:    order.OrderID,
			Error:      pe,
			RetryAfter: retryAfter,
		}, nil
	}

	adapter, err := c.cfg.Registry.Lookup(form.Payment.Gateway)
	if err != nil {
		c.setPhase(PhaseIdle)
		return nil, err
	}

	c.setPhase(PhaseAwaitingPayment)
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}
	initReq := gateway.InitRequest{
		OrderID:       order.OrderID,
		Amount:        totals.Total,
		Currency:      currency,
		Method:        gateway.Method(form.Payment.Type),
		CustomerEmail: email,
		CallbackURL:   c.cfg.CallbackURL,
		Metadata:      map[string]string{"orderNumber": order.OrderNumber},
	}

	attempt := gateway.NewAttempt(adapter.Name(), initReq)
	c.mu.Lock()
	c.attempt = attempt
	c.attempts++
	c.mu.Unlock()
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.PaymentAttempts.WithLabelValues(adapter.Name(), string(initReq.Method)).Inc()
	}

	started := time.Now()
	res, initErr := adapter.Initialize(ctx, initReq)
	attempt.Reference = res.Reference

	if initErr != nil || !res.Success {
		pe := gateway.Classify(initErr, res.Reference)
		if pe == nil {
			pe = gateway.NewPaymentError(gateway.CodeGatewayError, res.Message, res.Reference)
		}
		return c.failAttempt(ctx, attempt, order, email, pe, started), nil
	}

	if res.Resolved {
		// Wallet-connect attempts resolve inside the adapter.
		return c.completeAttempt(ctx, attempt, order, totals, email, res.Activation, started), nil
	}

	cbCtx, cancel := context.WithTimeout(ctx, c.cfg.CallbackTimeout)
	defer cancel()
	result := c.cfg.Broker.Await(cbCtx, res.Reference)

	switch result.Status {
	case callback.StatusSuccess:
		return c.completeAttempt(ctx, attempt, order, totals, email, res.Activation, started), nil
	case callback.StatusCancelled, callback.StatusAbandoned:
		// Not counted against the limiter.
		attempt.Status = gateway.AttemptCancelled
		c.observeOutcome(OutcomeCancelled, "", started)
		c.setPhase(PhaseIdle)
		log.Printf("Orchestrator: payment %s %s for order %s", attempt.Reference, result.Status, order.OrderID)
		return &Outcome{Status: OutcomeCancelled, OrderID: order.OrderID, Reference: attempt.Reference}, nil
	default:
		pe := c.verifyFailure(ctx, attempt.Reference)
		return c.failAttempt(ctx, attempt, order, email, pe, started), nil
	}
}

// verifyFailure asks the backend for the attempt's error code; the
// callback payload itself only carries a status.
func (c *Coordinator) verifyFailure(ctx context.Context, reference string) *gateway.PaymentError {
	status, err := c.cfg.Orders.VerifyPayment(ctx, reference)
	if err != nil {
		return gateway.NewPaymentError(gateway.CodeGatewayError, "", reference)
	}
	code := gateway.CodeFromGateway(status.ErrorCode)
	return gateway.NewPaymentError(code, status.Message, reference)
}

func (c *Coordinator) completeAttempt(ctx context.Context, attempt *gateway.Attempt, order *checkoutapi.CompleteResponse, totals *pricing.OrderTotals, email string, activation *gateway.Activation, started time.Time) *Outcome {
	attempt.Status = gateway.AttemptSuccess

	// The limiter resets before success is reported anywhere.
	if err := c.cfg.Limiter.Reset(ctx, email); err != nil {
		log.Printf("Orchestrator: failed to reset rate limiter for %s: %v", email, err)
	}

	c.mu.Lock()
	c.lastErr = nil
	c.mu.Unlock()
	c.observeOutcome(OutcomeCompleted, "", started)
	c.setPhase(PhaseCompleted)

	return &Outcome{
		Status:      OutcomeCompleted,
		OrderID:     order.OrderID,
		OrderNumber: order.OrderNumber,
		Reference:   attempt.Reference,
		Totals:      totals,
		Activation:  activation,
	}
}

func (c *Coordinator) failAttempt(ctx context.Context, attempt *gateway.Attempt, order *checkoutapi.CompleteResponse, email string, pe *gateway.PaymentError, started time.Time) *Outcome {
	attempt.Status = gateway.AttemptFailed
	if err := c.cfg.Limiter.RecordFailure(ctx, email); err != nil {
		log.Printf("Orchestrator: failed to record payment failure for %s: %v", email, err)
	}

	c.mu.Lock()
	attemptCount := c.attempts
	c.mu.Unlock()

	remaining := c.cfg.Limiter.RemainingAttempts(ctx, email)
	decision := c.cfg.Enforcer.Evaluate(policy.Params{
		Code:              string(pe.Code),
		Retryable:         pe.Retryable,
		AttemptCount:      attemptCount,
		RemainingAttempts: remaining,
		Amount:            attempt.Amount,
	})

	c.recordFailedPhase(pe)
	c.observeOutcome(OutcomeFailed, string(pe.Code), started)
	log.Printf("Orchestrator: payment failed for order %s: %s", order.OrderID, pe.Error())

	return &Outcome{
		Status:            OutcomeFailed,
		OrderID:           order.OrderID,
		Reference:         pe.Reference,
		Error:             pe,
		Decision:          &decision,
		RemainingAttempts: remaining,
		RetryAfter:        c.cfg.Limiter.RemainingTime(ctx, email),
	}
}

func (c *Coordinator) recordFailedPhase(pe *gateway.PaymentError) {
	c.mu.Lock()
	c.lastErr = pe
	c.mu.Unlock()
	c.setPhase(PhaseFailed)
}

func (c *Coordinator) observeOutcome(status, code string, started time.Time) {
	if c.cfg.Metrics == nil {
		return
	}
	c.cfg.Metrics.PaymentOutcomes.WithLabelValues(status, code).Inc()
	c.cfg.Metrics.PaymentDuration.Observe(time.Since(started).Seconds())
}
