package redirect

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/checkout-orchestrator/internal/checkoutapi"
	"github.com/yourorg/checkout-orchestrator/internal/gateway"
)

type fakePayments struct {
	lastReq checkoutapi.InitializePaymentRequest
	resp    *checkoutapi.InitializePaymentResponse
	err     error
}

func (f *fakePayments) InitializePayment(_ context.Context, req checkoutapi.InitializePaymentRequest) (*checkoutapi.InitializePaymentResponse, error) {
	f.lastReq = req
	return f.resp, f.err
}

func initRequest() gateway.InitRequest {
	return gateway.InitRequest{
		OrderID:       "order-1",
		Amount:        12960,
		Currency:      "USD",
		Method:        gateway.MethodCard,
		CustomerEmail: "ada@example.com",
		CallbackURL:   "https://shop.example.com/payments/callback",
	}
}

func TestAdapter_InitializeSuccess(t *testing.T) {
	payments := &fakePayments{resp: &checkoutapi.InitializePaymentResponse{
		Success:          true,
		Reference:        "ref-1",
		AuthorizationURL: "https://cardpay.example.com/authorize/ref-1",
		AccessCode:       "ac-123",
	}}
	a := NewAdapter("cardpay", payments)

	res, err := a.Initialize(context.Background(), initRequest())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.Resolved, "redirect attempts resolve via callback")
	assert.Equal(t, "ref-1", res.Reference)
	require.NotNil(t, res.Activation)
	assert.Equal(t, gateway.ActivationRedirect, res.Activation.Kind)
	assert.Equal(t, "https://cardpay.example.com/authorize/ref-1", res.Activation.URL)
	assert.Equal(t, "ac-123", res.Activation.AccessCode)

	assert.Equal(t, "cardpay", payments.lastReq.Gateway)
	assert.Equal(t, "card", payments.lastReq.Method)
	assert.Equal(t, int64(12960), payments.lastReq.Amount)
}

func TestAdapter_InitializeNetworkError(t *testing.T) {
	payments := &fakePayments{err: errors.New("connection refused")}
	a := NewAdapter("cardpay", payments)

	res, err := a.Initialize(context.Background(), initRequest())
	assert.False(t, res.Success)

	var pe *gateway.PaymentError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, gateway.CodeNetworkError, pe.Code)
	assert.True(t, pe.Retryable)
}

func TestAdapter_InitializeDeclined(t *testing.T) {
	payments := &fakePayments{resp: &checkoutapi.InitializePaymentResponse{
		Success:   false,
		Reference: "ref-2",
		ErrorCode: "expired_card",
		Message:   "card expired",
	}}
	a := NewAdapter("cardpay", payments)

	res, err := a.Initialize(context.Background(), initRequest())
	assert.False(t, res.Success)
	assert.Equal(t, "ref-2", res.Reference)

	var pe *gateway.PaymentError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, gateway.CodeExpiredCard, pe.Code)
	assert.False(t, pe.Retryable)
	assert.Equal(t, "ref-2", pe.Reference)
}

func TestAdapter_InitializeMissingURL(t *testing.T) {
	payments := &fakePayments{resp: &checkoutapi.InitializePaymentResponse{
		Success:   true,
		Reference: "ref-3",
	}}
	a := NewAdapter("cardpay", payments)

	res, err := a.Initialize(context.Background(), initRequest())
	assert.False(t, res.Success)

	var pe *gateway.PaymentError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, gateway.CodeGatewayError, pe.Code)
}

func TestNewAdapter_NilPaymentsPanics(t *testing.T) {
	assert.Panics(t, func() { NewAdapter("cardpay", nil) })
}
