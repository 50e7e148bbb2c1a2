// Package redirect implements the full-page redirect activation strategy,
// used for card payments where returning via the callback URL is
// acceptable. The page navigates away entirely; resolution happens only
// after the browser returns through the callback.
package redirect

import (
	"context"
	"fmt"

	"github.com/yourorg/checkout-orchestrator/internal/checkoutapi"
	"github.com/yourorg/checkout-orchestrator/internal/gateway"
)

// PaymentsAPI is the slice of the checkout backend this adapter needs.
type PaymentsAPI interface {
	InitializePayment(ctx context.Context, req checkoutapi.InitializePaymentRequest) (*checkoutapi.InitializePaymentResponse, error)
}

// Adapter hands the customer an authorization URL to redirect to.
type Adapter struct {
	name     string
	payments PaymentsAPI
}

// NewAdapter creates a redirect adapter registered under name.
func NewAdapter(name string, payments PaymentsAPI) *Adapter {
	if payments == nil {
		panic("redirect: payments API cannot be nil")
	}
	return &Adapter{name: name, payments: payments}
}

func (a *Adapter) Name() string { return a.name }

// Initialize starts the payment and returns the redirect target. The
// attempt stays pending until the callback broker resolves it.
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

	return gateway.InitResult{
		Success:   true,
		Reference: resp.Reference,
		Activation: &gateway.Activation{
			Kind:       gateway.ActivationRedirect,
			URL:        resp.AuthorizationURL,
			AccessCode: resp.AccessCode,
		},
	}, nil
}
