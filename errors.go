package x402

import (
	"errors"
	"fmt"
)

var (
	// Protocol errors
	ErrMissingChallenge = errors.New("missing or malformed 402 challenge")
	ErrInvalidChallenge = errors.New("invalid payment challenge")
	ErrAmountMismatch   = errors.New("challenge amount differs from configured amount")
	ErrPaymentRejected  = errors.New("payment rejected by server")
	ErrTransport        = errors.New("transport failure")

	// Configuration errors
	ErrInvalidConfig      = errors.New("invalid payment configuration")
	ErrUnsupportedNetwork = errors.New("unsupported network")

	// Signing errors
	ErrEncoding          = errors.New("typed data encoding failed")
	ErrSigning           = errors.New("failed to sign payment")
	ErrInvalidPrivateKey = errors.New("invalid private key")
	ErrInvalidMnemonic   = errors.New("invalid mnemonic phrase")
	ErrInvalidKeystore   = errors.New("invalid keystore file")
	ErrWrongPassword     = errors.New("wrong keystore password")

	// Receipt errors
	ErrMalformedReceipt = errors.New("malformed settlement receipt")

	// Policy errors
	ErrAmountExceedsLimit = errors.New("payment amount exceeds per-payment limit")
	ErrBudgetExceeded     = errors.New("hourly spending budget exceeded")
	ErrRateLimitExceeded  = errors.New("payment rate limit exceeded")
	ErrPaymentDeclined    = errors.New("payment declined by policy")
)

// PaymentError provides detailed payment error information
type PaymentError struct {
	Code    string
	Message string
	URL     string
	Amount  string
	Network string
	Wrapped error
}

func (e *PaymentError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s (url: %s, amount: %s, network: %s): %v",
			e.Code, e.Message, e.URL, e.Amount, e.Network, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s (url: %s, amount: %s, network: %s)",
		e.Code, e.Message, e.URL, e.Amount, e.Network)
}

func (e *PaymentError) Unwrap() error {
	return e.Wrapped
}

// NewPaymentError creates a new PaymentError
func NewPaymentError(code, message, url, amount, network string, wrapped error) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		URL:     url,
		Amount:  amount,
		Network: network,
		Wrapped: wrapped,
	}
}
