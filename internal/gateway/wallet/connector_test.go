package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/checkout-orchestrator/internal/checkoutapi"
)

type fakePayments struct {
	initResp   *checkoutapi.InitializePaymentResponse
	initErr    error
	statusResp *checkoutapi.PaymentStatusResponse
	statusErr  error

	lastInit checkoutapi.InitializePaymentRequest
}

func (f *fakePayments) InitializePayment(_ context.Context, req checkoutapi.InitializePaymentRequest) (*checkoutapi.InitializePaymentResponse, error) {
	f.lastInit = req
	return f.initResp, f.initErr
}

func (f *fakePayments) PaymentStatus(context.Context, string) (*checkoutapi.PaymentStatusResponse, error) {
	return f.statusResp, f.statusErr
}

func TestAPIConnector_Pay(t *testing.T) {
	payments := &fakePayments{initResp: &checkoutapi.InitializePaymentResponse{Success: true, Reference: "wal-1"}}
	c := NewAPIConnector(payments, "walletconnect", "https://shop.example.com/payments/callback")

	ref, err := c.Pay(context.Background(), "order-1", 7500, "USD")
	require.NoError(t, err)
	assert.Equal(t, "wal-1", ref)
	assert.Equal(t, "wallet", payments.lastInit.Method)
	assert.Equal(t, "walletconnect", payments.lastInit.Gateway)
	assert.Equal(t, int64(7500), payments.lastInit.Amount)
}

func TestAPIConnector_PayRejected(t *testing.T) {
	payments := &fakePayments{initResp: &checkoutapi.InitializePaymentResponse{Success: false, Message: "wallet unavailable"}}
	c := NewAPIConnector(payments, "walletconnect", "")

	_, err := c.Pay(context.Background(), "order-1", 7500, "USD")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wallet unavailable")
}

func TestAPIConnector_Status(t *testing.T) {
	cases := []struct {
		backend    string
		errorCode  string
		wantStatus string
		wantCode   string
	}{
		{"completed", "", StatusCompleted, ""},
		{"failed", "insufficient_funds", StatusFailed, "insufficient_funds"},
		{"cancelled", "", StatusFailed, ""},
		{"pending", "", StatusPending, ""},
		{"initializing", "", StatusPending, ""},
	}
	for _, tc := range cases {
		t.Run(tc.backend, func(t *testing.T) {
			payments := &fakePayments{statusResp: &checkoutapi.PaymentStatusResponse{
				Reference: "wal-1", Status: tc.backend, ErrorCode: tc.errorCode,
			}}
			c := NewAPIConnector(payments, "walletconnect", "")

			status, code, err := c.Status(context.Background(), "wal-1")
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantCode, code)
		})
	}
}

func TestAPIConnector_StatusError(t *testing.T) {
	payments := &fakePayments{statusErr: errors.New("backend down")}
	c := NewAPIConnector(payments, "walletconnect", "")

	_, _, err := c.Status(context.Background(), "wal-1")
	assert.Error(t, err)
}

func TestNewAPIConnector_NilPaymentsPanics(t *testing.T) {
	assert.Panics(t, func() { NewAPIConnector(nil, "walletconnect", "") })
}
