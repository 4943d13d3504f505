package x402

import (
	"encoding/json"
)

// PaymentRequirement represents one payment method offered in a 402 challenge
type PaymentRequirement struct {
	Scheme            string            `json:"scheme"`
	Network           string            `json:"network"`
	MaxAmountRequired string            `json:"maxAmountRequired"`
	Asset             string            `json:"asset"`
	PayTo             string            `json:"payTo"`
	Resource          string            `json:"resource,omitempty"`
	Description       string            `json:"description,omitempty"`
	MimeType          string            `json:"mimeType,omitempty"`
	MaxTimeoutSeconds int               `json:"maxTimeoutSeconds,omitempty"`
	Extra             map[string]string `json:"extra,omitempty"`
}

// UnmarshalJSON accepts the field aliases seen from deployed x402 servers:
// "amount" for maxAmountRequired, "address" for payTo, "networkId" for network.
func (r *PaymentRequirement) UnmarshalJSON(data []byte) error {
	type plain PaymentRequirement
	aux := struct {
		*plain
		Amount    string `json:"amount"`
		Address   string `json:"address"`
		NetworkID string `json:"networkId"`
	}{plain: (*plain)(r)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if r.MaxAmountRequired == "" {
		r.MaxAmountRequired = aux.Amount
	}
	if r.PayTo == "" {
		r.PayTo = aux.Address
	}
	if r.Network == "" {
		r.Network = aux.NetworkID
	}
	return nil
}

// PaymentRequired is the body of a 402 response
type PaymentRequired struct {
	X402Version int                  `json:"x402Version"`
	Error       string               `json:"error,omitempty"`
	Accepts     []PaymentRequirement `json:"accepts"`
}

// UnmarshalJSON tolerates the singular "accept" key some servers emit.
func (p *PaymentRequired) UnmarshalJSON(data []byte) error {
	type plain PaymentRequired
	aux := struct {
		*plain
		Accept []PaymentRequirement `json:"accept"`
	}{plain: (*plain)(p)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(p.Accepts) == 0 {
		p.Accepts = aux.Accept
	}
	return nil
}

// PaymentPayload is the signed payment sent in the X-PAYMENT header
type PaymentPayload struct {
	X402Version int             `json:"x402Version"`
	Scheme      string          `json:"scheme"`
	Network     string          `json:"network"`
	Payload     ExactEvmPayload `json:"payload"`
}

// ExactEvmPayload carries the signature and EIP-3009 authorization
// for the "exact" scheme on EVM networks
type ExactEvmPayload struct {
	Signature     string               `json:"signature"`
	Authorization PaymentAuthorization `json:"authorization"`
}

// PaymentAuthorization is the wire form of a TransferWithAuthorization
// message. Numeric fields are decimal strings per the x402 spec.
type PaymentAuthorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// SettlementResponse represents the X-PAYMENT-RESPONSE header content
type SettlementResponse struct {
	Success     bool   `json:"success"`
	Transaction string `json:"transaction"`
	Network     string `json:"network"`
	Payer       string `json:"payer"`
	ErrorReason string `json:"errorReason,omitempty"`
}

const (
	// X402Version is the protocol version this client speaks
	X402Version = 1

	// SchemeExact is the single-use exact-amount transfer scheme
	SchemeExact = "exact"

	// PaymentHeader carries the signed payment on the retried request
	PaymentHeader = "X-PAYMENT"

	// SettlementHeader carries the facilitator's settlement receipt
	SettlementHeader = "X-PAYMENT-RESPONSE"
)
