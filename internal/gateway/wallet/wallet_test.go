package wallet

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/checkout-orchestrator/internal/gateway"
)

// scriptedConnector returns pending for the first n status checks, then a
// terminal status.
type scriptedConnector struct {
	payErr      error
	pendingFor  int
	finalStatus string
	errorCode   string
	statusErr   error

	calls atomic.Int32
}

func (c *scriptedConnector) Pay(context.Context, string, int64, string) (string, error) {
	if c.payErr != nil {
		return "", c.payErr
	}
	return "wal-ref-1", nil
}

func (c *scriptedConnector) Status(context.Context, string) (string, string, error) {
	n := int(c.calls.Add(1))
	if c.statusErr != nil {
		return "", "", c.statusErr
	}
	if n <= c.pendingFor {
		return StatusPending, "", nil
	}
	return c.finalStatus, c.errorCode, nil
}

func initRequest() gateway.InitRequest {
	return gateway.InitRequest{OrderID: "order-1", Amount: 7500, Currency: "USD", Method: gateway.MethodWallet}
}

func TestAdapter_PollsToCompletion(t *testing.T) {
	conn := &scriptedConnector{pendingFor: 2, finalStatus: StatusCompleted}
	a := NewAdapter("walletconnect", conn, time.Millisecond, time.Second)

	res, err := a.Initialize(context.Background(), initRequest())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Resolved, "wallet attempts resolve themselves")
	assert.Equal(t, "wal-ref-1", res.Reference)
	require.NotNil(t, res.Activation)
	assert.Equal(t, gateway.ActivationWallet, res.Activation.Kind)
	assert.GreaterOrEqual(t, int(conn.calls.Load()), 3)
}

func TestAdapter_PollsToFailure(t *testing.T) {
	conn := &scriptedConnector{pendingFor: 1, finalStatus: StatusFailed, errorCode: "insufficient_funds"}
	a := NewAdapter("walletconnect", conn, time.Millisecond, time.Second)

	res, err := a.Initialize(context.Background(), initRequest())
	assert.False(t, res.Success)
	assert.True(t, res.Resolved)

	var pe *gateway.PaymentError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, gateway.CodeInsufficientFunds, pe.Code)
	assert.Equal(t, "wal-ref-1", pe.Reference)
}

func TestAdapter_TimesOutWhilePending(t *testing.T) {
	conn := &scriptedConnector{pendingFor: 1 << 30, finalStatus: StatusCompleted}
	a := NewAdapter("walletconnect", conn, time.Millisecond, 20*time.Millisecond)

	res, err := a.Initialize(context.Background(), initRequest())
	assert.False(t, res.Success)
	assert.True(t, res.Resolved)

	var pe *gateway.PaymentError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, gateway.CodePaymentTimeout, pe.Code)
}

func TestAdapter_PayFailure(t *testing.T) {
	conn := &scriptedConnector{payErr: errors.New("wallet locked")}
	a := NewAdapter("walletconnect", conn, time.Millisecond, time.Second)

	res, err := a.Initialize(context.Background(), initRequest())
	assert.False(t, res.Success)
	assert.True(t, res.Resolved)

	var pe *gateway.PaymentError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, gateway.CodeNetworkError, pe.Code)
}

func TestAdapter_TransientStatusErrorsTimeOutEventually(t *testing.T) {
	conn := &scriptedConnector{statusErr: errors.New("rpc glitch")}
	a := NewAdapter("walletconnect", conn, time.Millisecond, 20*time.Millisecond)

	_, err := a.Initialize(context.Background(), initRequest())
	var pe *gateway.PaymentError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, gateway.CodePaymentTimeout, pe.Code)
}

func TestNewAdapter_NilConnectorPanics(t *testing.T) {
	assert.Panics(t, func() { NewAdapter("walletconnect", nil, 0, 0) })
}
