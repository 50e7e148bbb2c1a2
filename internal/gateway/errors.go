package gateway

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Code identifies a payment failure class. The set is closed; anything a
// gateway reports outside of it collapses to CodeUnknown.
type Code string

const (
	CodeInsufficientFunds    Code = "INSUFFICIENT_FUNDS"
	CodeCardDeclined         Code = "CARD_DECLINED"
	CodeExpiredCard          Code = "EXPIRED_CARD"
	CodeInvalidCard          Code = "INVALID_CARD"
	CodeNetworkError         Code = "NETWORK_ERROR"
	CodeGatewayError         Code = "GATEWAY_ERROR"
	CodeRateLimited          Code = "RATE_LIMITED"
	CodeFraudDetected        Code = "FRAUD_DETECTED"
	CodeCurrencyNotSupported Code = "CURRENCY_NOT_SUPPORTED"
	CodeAmountTooLarge       Code = "AMOUNT_TOO_LARGE"
	CodePaymentTimeout       Code = "PAYMENT_TIMEOUT"
	CodeUnknown              Code = "UNKNOWN_ERROR"
)

// nonRetryable lists codes that can never succeed without the customer
// changing their input (card, method, or currency).
var nonRetryable = map[Code]bool{
	CodeExpiredCard:          true,
	CodeInvalidCard:          true,
	CodeFraudDetected:        true,
	CodeCurrencyNotSupported: true,
	CodeAmountTooLarge:       true,
}

// Retryable reports whether a failure with this code may be retried with the
// same input, subject to the rate limiter.
func (c Code) Retryable() bool {
	return !nonRetryable[c]
}

// Valid reports whether c is one of the defined codes.
func (c Code) Valid() bool {
	switch c {
	case CodeInsufficientFunds, CodeCardDeclined, CodeExpiredCard, CodeInvalidCard,
		CodeNetworkError, CodeGatewayError, CodeRateLimited, CodeFraudDetected,
		CodeCurrencyNotSupported, CodeAmountTooLarge, CodePaymentTimeout, CodeUnknown:
		return true
	}
	return false
}

// messages maps each code to the human description shown alongside the
// suggested action when a payment fails.
var messages = map[Code]string{
	CodeInsufficientFunds:    "The payment was declined due to insufficient funds.",
	CodeCardDeclined:         "The card was declined by the issuer.",
	CodeExpiredCard:          "The card has expired. Please use a different card.",
	CodeInvalidCard:          "The card details are invalid. Please check and try again.",
	CodeNetworkError:         "A network error interrupted the payment. Please try again.",
	CodeGatewayError:         "The payment provider reported an error. Please try again.",
	CodeRateLimited:          "Too many payment attempts. Please wait before retrying.",
	CodeFraudDetected:        "The payment was blocked. Please contact support.",
	CodeCurrencyNotSupported: "This currency is not supported by the selected payment method.",
	CodeAmountTooLarge:       "The amount exceeds the limit for this payment method.",
	CodePaymentTimeout:       "The payment timed out before completing. Please try again.",
	CodeUnknown:              "The payment could not be completed. Please try again or contact support.",
}

// PaymentError is the failure record produced by an unsuccessful payment
// attempt. Retryable usually follows from the code but can be pinned at
// construction (a blocked popup is never retryable regardless of code).
type PaymentError struct {
	Code      Code      `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Reference string    `json:"reference,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *PaymentError) Error() string {
	if e.Reference != "" {
		return fmt.Sprintf("payment failed [%s] ref=%s: %s", e.Code, e.Reference, e.Message)
	}
	return fmt.Sprintf("payment failed [%s]: %s", e.Code, e.Message)
}

// NewPaymentError builds a PaymentError for code, defaulting the message and
// retryable flag from the taxonomy.
func NewPaymentError(code Code, message, reference string) *PaymentError {
	if !code.Valid() {
		code = CodeUnknown
	}
	if message == "" {
		message = messages[code]
	}
	return &PaymentError{
		Code:      code,
		Message:   message,
		Retryable: code.Retryable(),
		Reference: reference,
		Timestamp: time.Now().UTC(),
	}
}

// Description returns the canonical user-facing message for the error's code.
func (e *PaymentError) Description() string {
	return messages[e.Code]
}

// Classify normalizes any error into a PaymentError. Existing PaymentErrors
// pass through unchanged; everything else becomes CodeUnknown.
func Classify(err error, reference string) *PaymentError {
	if err == nil {
		return nil
	}
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe
	}
	return NewPaymentError(CodeUnknown, err.Error(), reference)
}

// gatewayCodes maps common provider-reported codes onto the taxonomy.
var gatewayCodes = map[string]Code{
	"insufficient_funds":     CodeInsufficientFunds,
	"card_declined":          CodeCardDeclined,
	"declined":               CodeCardDeclined,
	"do_not_honor":           CodeCardDeclined,
	"expired_card":           CodeExpiredCard,
	"invalid_card":           CodeInvalidCard,
	"invalid_number":         CodeInvalidCard,
	"incorrect_cvc":          CodeInvalidCard,
	"network_error":          CodeNetworkError,
	"gateway_error":          CodeGatewayError,
	"processing_error":       CodeGatewayError,
	"rate_limited":           CodeRateLimited,
	"too_many_requests":      CodeRateLimited,
	"fraud_detected":         CodeFraudDetected,
	"fraudulent":             CodeFraudDetected,
	"currency_not_supported": CodeCurrencyNotSupported,
	"amount_too_large":       CodeAmountTooLarge,
	"timeout":                CodePaymentTimeout,
}

// CodeFromGateway maps a raw provider error code to the taxonomy. Exact
// taxonomy codes pass through; unrecognized codes fall back to CodeUnknown.
func CodeFromGateway(raw string) Code {
	if c := Code(strings.ToUpper(raw)); c.Valid() {
		return c
	}
	if c, ok := gatewayCodes[strings.ToLower(raw)]; ok {
		return c
	}
	return CodeUnknown
}
