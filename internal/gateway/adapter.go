// Package gateway defines the interface every payment gateway adapter
// implements, plus the shared failure taxonomy and attempt record.
// Adapters handle all provider-specific initialization calls and error
// mapping, normalizing raw provider responses into a common InitResult so
// the orchestrator never branches on gateway identity beyond selecting
// which adapter to call.
package gateway

import (
	"context"
	"time"
)

// Method is the customer-selected payment method type.
type Method string

const (
	MethodCard         Method = "card"
	MethodBankTransfer Method = "bank_transfer"
	MethodWallet       Method = "wallet"
	MethodBasePay      Method = "basepay"
)

// ActivationKind distinguishes how the customer is handed off to the
// provider to complete payment.
type ActivationKind string

const (
	ActivationRedirect ActivationKind = "redirect"
	ActivationPopup    ActivationKind = "popup"
	ActivationWallet   ActivationKind = "wallet"
)

// Activation is the target handed to the customer to complete payment:
// a URL to redirect to, a URL to open in a popup, or an in-page wallet
// connector trigger.
type Activation struct {
	Kind       ActivationKind `json:"kind"`
	URL        string         `json:"url,omitempty"`
	AccessCode string         `json:"accessCode,omitempty"`

	// Closed signals that a popup window was dismissed. Advisory only:
	// window closure is never treated as payment success or failure, the
	// authoritative signal always comes from the callback broker or an
	// explicit status poll.
	Closed <-chan struct{} `json:"-"`
}

// InitRequest carries everything an adapter needs to initialize one
// payment attempt.
type InitRequest struct {
	OrderID       string
	Amount        int64 // minor units
	Currency      string
	Method        Method
	CustomerEmail string
	CallbackURL   string
	Metadata      map[string]string
}

// InitResult is the uniform outcome of adapter initialization.
type InitResult struct {
	Success    bool
	Reference  string
	Activation *Activation
	Message    string

	// Resolved is set by adapters that drive the attempt to a terminal
	// state themselves (wallet-connect polls to completion). When true the
	// orchestrator must not wait for a callback; Success is final.
	Resolved bool
}

// Adapter is implemented once per external payment gateway.
type Adapter interface {
	// Initialize starts a payment attempt and returns the reference plus
	// activation target. A failed initialization returns an InitResult
	// with Success false and, where possible, a *PaymentError as the error.
	Initialize(ctx context.Context, req InitRequest) (InitResult, error)

	// Name returns the gateway identifier used in registry lookups and
	// callback message types.
	Name() string
}

// AttemptStatus is the lifecycle state of one payment attempt.
type AttemptStatus string

const (
	AttemptPending   AttemptStatus = "pending"
	AttemptSuccess   AttemptStatus = "success"
	AttemptFailed    AttemptStatus = "failed"
	AttemptCancelled AttemptStatus = "cancelled"
)

// Attempt records a single invocation of a gateway adapter. Created when
// the adapter is called; its terminal status is set by the callback broker
// result or a timeout.
type Attempt struct {
	Reference string        `json:"reference"`
	Gateway   string        `json:"gateway"`
	Method    Method        `json:"method"`
	Amount    int64         `json:"amount"`
	Currency  string        `json:"currency"`
	OrderID   string        `json:"orderId"`
	StartedAt time.Time     `json:"startedAt"`
	Status    AttemptStatus `json:"status"`
}

// NewAttempt creates a pending attempt for the given initialization request.
func NewAttempt(gatewayName string, req InitRequest) *Attempt {
	return &Attempt{
		Gateway:   gatewayName,
		Method:    req.Method,
		Amount:    req.Amount,
		Currency:  req.Currency,
		OrderID:   req.OrderID,
		StartedAt: time.Now().UTC(),
		Status:    AttemptPending,
	}
}
