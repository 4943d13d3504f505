package x402

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// EncodePaymentHeader serializes a payment payload into the X-PAYMENT header
// value: JSON reduced to standard base64. Idempotent for the same payload.
func EncodePaymentHeader(p *PaymentPayload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodePaymentHeader parses an X-PAYMENT header value back into its
// payload. Used by round-trip tests and local verification.
func DecodePaymentHeader(header string) (*PaymentPayload, error) {
	data, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, fmt.Errorf("invalid payment header: %w", err)
	}
	var payload PaymentPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("invalid payment header: %w", err)
	}
	return &payload, nil
}

// DecodeSettlementHeader parses an X-PAYMENT-RESPONSE header value into a
// settlement receipt. Facilitators send base64-encoded JSON; bare JSON is
// accepted too. A receipt with no transaction reference is malformed.
func DecodeSettlementHeader(header string) (*SettlementResponse, error) {
	raw := []byte(strings.TrimSpace(header))
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty header", ErrMalformedReceipt)
	}

	if raw[0] != '{' {
		decoded, err := base64.StdEncoding.DecodeString(string(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedReceipt, err)
		}
		raw = decoded
	}

	var receipt SettlementResponse
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReceipt, err)
	}
	if receipt.Transaction == "" {
		return nil, fmt.Errorf("%w: missing transaction reference", ErrMalformedReceipt)
	}
	return &receipt, nil
}
