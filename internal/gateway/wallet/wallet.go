// Package wallet implements the wallet-connect activation strategy for
// crypto-style payment. The adapter invokes the external wallet-pay
// primitive directly, then polls its status check until the attempt
// reaches a terminal state or the caller's deadline elapses.
package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/yourorg/checkout-orchestrator/internal/gateway"
)

// Terminal connector statuses.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Connector is the external wallet-pay primitive.
type Connector interface {
	// Pay triggers the in-page wallet payment and returns its reference.
	Pay(ctx context.Context, orderID string, amount int64, currency string) (string, error)
	// Status reports the attempt's current status and, when failed, the
	// provider's error code.
	Status(ctx context.Context, reference string) (status, errorCode string, err error)
}

// Adapter drives a wallet payment to a terminal state before returning.
type Adapter struct {
	name         string
	connector    Connector
	pollInterval time.Duration
	timeout      time.Duration
}

// NewAdapter creates a wallet adapter registered under name.
func NewAdapter(name string, connector Connector, pollInterval, timeout time.Duration) *Adapter {
	if connector == nil {
		panic("wallet: connector cannot be nil")
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Adapter{name: name, connector: connector, pollInterval: pollInterval, timeout: timeout}
}

func (a *Adapter) Name() string { return a.name }

// Initialize runs the wallet payment and polls to completion. The result
// is always Resolved: the orchestrator must not wait for a callback on top
// of it.
func (a *Adapter) Initialize(ctx context.Context, req gateway.InitRequest) (gateway.InitResult, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	reference, err := a.connector.Pay(ctx, req.OrderID, req.Amount, req.Currency)
	if err != nil {
		return gateway.InitResult{Success: false, Resolved: true},
			gateway.NewPaymentError(gateway.CodeNetworkError, fmt.Sprintf("wallet pay failed: %v", err), "")
	}

	activation := &gateway.Activation{Kind: gateway.ActivationWallet}
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		status, errorCode, err := a.connector.Status(ctx, reference)
		if err != nil {
			if ctx.Err() != nil {
				return gateway.InitResult{Success: false, Reference: reference, Resolved: true},
					gateway.NewPaymentError(gateway.CodePaymentTimeout, "", reference)
			}
			// Transient status-check failures keep polling; the attempt
			// may still complete.
		} else {
			switch status {
			case StatusCompleted:
				return gateway.InitResult{Success: true, Reference: reference, Activation: activation, Resolved: true}, nil
			case StatusFailed:
				code := gateway.CodeFromGateway(errorCode)
				return gateway.InitResult{Success: false, Reference: reference, Resolved: true},
					gateway.NewPaymentError(code, "", reference)
			}
		}

		select {
		case <-ctx.Done():
			return gateway.InitResult{Success: false, Reference: reference, Resolved: true},
				gateway.NewPaymentError(gateway.CodePaymentTimeout, "", reference)
		case <-ticker.C:
		}
	}
}
