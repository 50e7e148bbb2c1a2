// Package popup implements the popup-window activation strategy, used for
// bank transfer and international card flows. A blocked popup is a
// user-facing error, not retryable. The popup's closed state is watched
// purely as a UI signal; closure alone is never success or failure — only
// an explicit callback message is authoritative.
package popup

import (
	"context"
	"errors"
	"fmt"

	"github.com/yourorg/checkout-orchestrator/internal/checkoutapi"
	"github.com/yourorg/checkout-orchestrator/internal/gateway"
)

// ErrBlocked reports that the surface refused to open the popup window.
var ErrBlocked = errors.New("popup: window was blocked")

// Handle is an open popup window.
type Handle interface {
	// Closed is signalled when the window is dismissed. Advisory only.
	Closed() <-chan struct{}
}

// Launcher opens popup windows on the customer-facing surface. It returns
// ErrBlocked when the surface refuses to open one.
type Launcher interface {
	Open(url string) (Handle, error)
}

// PaymentsAPI is the slice of the checkout backend this adapter needs.
type PaymentsAPI interface {
	InitializePayment(ctx context.Context, req checkoutapi.InitializePaymentRequest) (*checkoutapi.InitializePaymentResponse, error)
}

// Adapter initializes the payment and opens its authorization URL in a
// popup window.
type Adapter struct {
	name     string
	payments PaymentsAPI
	launcher Launcher
}

// NewAdapter creates a popup adapter registered under name.
func NewAdapter(name string, payments PaymentsAPI, launcher Launcher) *Adapter {
	if payments == nil {
		panic("popup: payments API cannot be nil")
	}
	if launcher == nil {
		panic("popup: launcher cannot be nil")
	}
	return &Adapter{name: name, payments: payments, launcher: launcher}
}

func (a *Adapter) Name() string { return a.name }

// Initialize starts the payment and opens the popup. The attempt stays
// pending until the callback broker resolves it; the Closed channel on the
// activation only lets the surface offer to reopen the window.
func (a *Adapter) Initialize(ctx context.Context, req gateway.InitRequest) (gateway.InitResult, error) {
	resp, err := a.payments.InitializePayment(ctx, checkoutapi.InitializePaymentRequest{
		OrderID:     req.OrderID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Method:      string(req.Method),
		Gateway:     a.name,
		CallbackURL: req.CallbackURL,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return gateway.InitResult{Success: false},
			gateway.NewPaymentError(gateway.CodeNetworkError, fmt.Sprintf("initializing %s payment: %v", a.name, err), "")
	}
	if !resp.Success {
		code := gateway.CodeFromGateway(resp.ErrorCode)
		return gateway.InitResult{Success: false, Reference: resp.Reference, Message: resp.Message},
			gateway.NewPaymentError(code, resp.Message, resp.Reference)
	}
	if resp.AuthorizationURL == "" {
		return gateway.InitResult{Success: false, Reference: resp.Reference},
			gateway.NewPaymentError(gateway.CodeGatewayError, fmt.Sprintf("%s returned no authorization URL", a.name), resp.Reference)
	}

	handle, err := a.launcher.Open(resp.AuthorizationURL)
	if err != nil {
		pe := gateway.NewPaymentError(gateway.CodeUnknown,
			"The payment window was blocked. Please allow popups for this site and try again.", resp.Reference)
		pe.Retryable = false
		return gateway.InitResult{Success: false, Reference: resp.Reference}, pe
	}

	return gateway.InitResult{
		Success:   true,
		Reference: resp.Reference,
		Activation: &gateway.Activation{
			Kind:       gateway.ActivationPopup,
			URL:        resp.AuthorizationURL,
			AccessCode: resp.AccessCode,
			Closed:     handle.Closed(),
		},
	}, nil
}
