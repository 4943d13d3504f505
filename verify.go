package x402

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// VerificationResult is the outcome of locally verifying a payment header.
// It mirrors what a facilitator checks before settling.
type VerificationResult struct {
	Valid       bool
	Reason      string
	Signer      common.Address
	ClaimedFrom common.Address
	To          common.Address
	Amount      *big.Int
}

// VerifyPaymentHeader decodes an X-PAYMENT header, rebuilds the typed data
// it claims to authorize, recovers the signing address and compares it to
// the claimed sender. Domain parameters come from the network table, so
// only the table's own token deployments can be verified. nil networks
// uses DefaultNetworks().
func VerifyPaymentHeader(header string, networks *NetworkTable) (*VerificationResult, error) {
	if networks == nil {
		networks = DefaultNetworks()
	}

	payload, err := DecodePaymentHeader(header)
	if err != nil {
		return nil, err
	}

	network := networks.Lookup(payload.Network)
	if network == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedNetwork, payload.Network)
	}

	auth, err := parseWireAuthorization(payload.Payload.Authorization)
	if err != nil {
		return nil, err
	}

	signature, err := parseWireSignature(payload.Payload.Signature)
	if err != nil {
		return nil, err
	}

	domain := &TransferDomain{
		Name:              network.TokenName,
		Version:           network.TokenVersion,
		ChainID:           network.ChainID,
		VerifyingContract: network.USDC,
	}
	digest, err := HashTransferAuthorization(domain, auth)
	if err != nil {
		return nil, err
	}

	pubkey, err := crypto.SigToPub(digest, signature)
	if err != nil {
		return nil, fmt.Errorf("signature recovery failed: %w", err)
	}
	recovered := crypto.PubkeyToAddress(*pubkey)

	result := &VerificationResult{
		Signer:      recovered,
		ClaimedFrom: auth.From,
		To:          auth.To,
		Amount:      auth.Value,
	}
	if recovered == auth.From {
		result.Valid = true
	} else {
		result.Reason = fmt.Sprintf("signer mismatch: recovered %s, claimed %s", recovered.Hex(), auth.From.Hex())
	}
	return result, nil
}

// parseWireAuthorization converts the wire-form authorization back into its
// typed representation
func parseWireAuthorization(wire PaymentAuthorization) (*TransferAuthorization, error) {
	if !common.IsHexAddress(wire.From) || !common.IsHexAddress(wire.To) {
		return nil, fmt.Errorf("malformed authorization address")
	}

	value, ok := new(big.Int).SetString(wire.Value, 10)
	if !ok {
		return nil, fmt.Errorf("malformed authorization value %q", wire.Value)
	}
	validAfter, ok := new(big.Int).SetString(wire.ValidAfter, 10)
	if !ok {
		return nil, fmt.Errorf("malformed validAfter %q", wire.ValidAfter)
	}
	validBefore, ok := new(big.Int).SetString(wire.ValidBefore, 10)
	if !ok {
		return nil, fmt.Errorf("malformed validBefore %q", wire.ValidBefore)
	}

	nonceBytes, err := hex.DecodeString(strings.TrimPrefix(wire.Nonce, "0x"))
	if err != nil || len(nonceBytes) != 32 {
		return nil, fmt.Errorf("malformed nonce %q", wire.Nonce)
	}

	auth := &TransferAuthorization{
		From:        common.HexToAddress(wire.From),
		To:          common.HexToAddress(wire.To),
		Value:       value,
		ValidAfter:  validAfter,
		ValidBefore: validBefore,
	}
	copy(auth.Nonce[:], nonceBytes)
	return auth, nil
}

// parseWireSignature decodes a 65-byte hex signature and normalizes V for
// public key recovery
func parseWireSignature(sig string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(sig, "0x"))
	if err != nil {
		return nil, fmt.Errorf("malformed signature: %w", err)
	}
	if len(raw) != crypto.SignatureLength {
		return nil, fmt.Errorf("malformed signature: %d bytes", len(raw))
	}
	if raw[64] >= 27 {
		raw = append([]byte(nil), raw...)
		raw[64] -= 27
	}
	return raw, nil
}
