package wallet

import (
	"context"
	"fmt"

	"github.com/yourorg/checkout-orchestrator/internal/checkoutapi"
)

// PaymentsAPI is the slice of the checkout backend the API-backed
// connector needs.
type PaymentsAPI interface {
	InitializePayment(ctx context.Context, req checkoutapi.InitializePaymentRequest) (*checkoutapi.InitializePaymentResponse, error)
	PaymentStatus(ctx context.Context, reference string) (*checkoutapi.PaymentStatusResponse, error)
}

// APIConnector implements Connector against the checkout backend's
// payment endpoints.
type APIConnector struct {
	payments    PaymentsAPI
	gatewayName string
	callbackURL string
}

// NewAPIConnector creates a connector for one wallet gateway.
func NewAPIConnector(payments PaymentsAPI, gatewayName, callbackURL string) *APIConnector {
	if payments == nil {
		panic("wallet: payments API cannot be nil")
	}
	return &APIConnector{payments: payments, gatewayName: gatewayName, callbackURL: callbackURL}
}

func (c *APIConnector) Pay(ctx context.Context, orderID string, amount int64, currency string) (string, error) {
	resp, err := c.payments.InitializePayment(ctx, checkoutapi.InitializePaymentRequest{
		OrderID:     orderID,
		Amount:      amount,
		Currency:    currency,
		Method:      "wallet",
		Gateway:     c.gatewayName,
		CallbackURL: c.callbackURL,
	})
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("wallet: %s rejected payment: %s", c.gatewayName, resp.Message)
	}
	return resp.Reference, nil
}

func (c *APIConnector) Status(ctx context.Context, reference string) (string, string, error) {
	resp, err := c.payments.PaymentStatus(ctx, reference)
	if err != nil {
		return "", "", err
	}
	switch resp.Status {
	case StatusCompleted, StatusFailed:
		return resp.Status, resp.ErrorCode, nil
	case "cancelled":
		// A cancelled wallet attempt reads as a failure with no code; the
		// taxonomy maps it to UNKNOWN_ERROR.
		return StatusFailed, resp.ErrorCode, nil
	default:
		return StatusPending, "", nil
	}
}
