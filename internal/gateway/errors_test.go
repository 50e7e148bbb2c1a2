package gateway

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCode_Retryable(t *testing.T) {
	retryable := []Code{
		CodeInsufficientFunds, CodeCardDeclined, CodeNetworkError,
		CodeGatewayError, CodeRateLimited, CodePaymentTimeout, CodeUnknown,
	}
	for _, c := range retryable {
		assert.True(t, c.Retryable(), "code %s", c)
	}

	terminal := []Code{
		CodeExpiredCard, CodeInvalidCard, CodeFraudDetected,
		CodeCurrencyNotSupported, CodeAmountTooLarge,
	}
	for _, c := range terminal {
		assert.False(t, c.Retryable(), "code %s", c)
	}
}

func TestCode_Valid(t *testing.T) {
	assert.True(t, CodeCardDeclined.Valid())
	assert.False(t, Code("SOMETHING_ELSE").Valid())
	assert.False(t, Code("").Valid())
}

func TestNewPaymentError_Defaults(t *testing.T) {
	pe := NewPaymentError(CodeExpiredCard, "", "ref-1")
	assert.Equal(t, CodeExpiredCard, pe.Code)
	assert.Equal(t, messages[CodeExpiredCard], pe.Message)
	assert.False(t, pe.Retryable)
	assert.Equal(t, "ref-1", pe.Reference)
	assert.False(t, pe.Timestamp.IsZero())
}

func TestNewPaymentError_UnknownCodeCollapses(t *testing.T) {
	pe := NewPaymentError(Code("provider_weirdness"), "", "")
	assert.Equal(t, CodeUnknown, pe.Code)
	assert.True(t, pe.Retryable)
}

func TestPaymentError_Error(t *testing.T) {
	withRef := NewPaymentError(CodeCardDeclined, "declined", "ref-9")
	assert.Contains(t, withRef.Error(), "CARD_DECLINED")
	assert.Contains(t, withRef.Error(), "ref-9")

	noRef := NewPaymentError(CodeCardDeclined, "declined", "")
	assert.NotContains(t, noRef.Error(), "ref=")
}

func TestPaymentError_Description(t *testing.T) {
	pe := NewPaymentError(CodeRateLimited, "raw provider text", "")
	assert.Equal(t, messages[CodeRateLimited], pe.Description())
}

func TestClassify(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		assert.Nil(t, Classify(nil, "ref"))
	})

	t.Run("existing PaymentError is preserved", func(t *testing.T) {
		original := NewPaymentError(CodeFraudDetected, "", "ref-1")
		wrapped := fmt.Errorf("attempt failed: %w", original)
		got := Classify(wrapped, "other-ref")
		assert.Same(t, original, got)
	})

	t.Run("plain error becomes unknown", func(t *testing.T) {
		got := Classify(errors.New("socket hangup"), "ref-2")
		require.NotNil(t, got)
		assert.Equal(t, CodeUnknown, got.Code)
		assert.Equal(t, "socket hangup", got.Message)
		assert.Equal(t, "ref-2", got.Reference)
	})
}

func TestCodeFromGateway(t *testing.T) {
	cases := map[string]Code{
		"CARD_DECLINED":          CodeCardDeclined, // exact taxonomy code
		"insufficient_funds":     CodeInsufficientFunds,
		"do_not_honor":           CodeCardDeclined,
		"incorrect_cvc":          CodeInvalidCard,
		"FRAUDULENT":             CodeFraudDetected,
		"timeout":                CodePaymentTimeout,
		"currency_not_supported": CodeCurrencyNotSupported,
		"some_new_code":          CodeUnknown,
		"":                       CodeUnknown,
	}
	for raw, want := range cases {
		assert.Equal(t, want, CodeFromGateway(raw), "raw %q", raw)
	}
}
