package x402

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// transferTypes declares the EIP-712 type set for EIP-3009
// TransferWithAuthorization. Field order is part of the type hash and
// must match the token contract exactly.
var transferTypes = apitypes.Types{
	"EIP712Domain": []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"TransferWithAuthorization": []apitypes.Type{
		{Name: "from", Type: "address"},
		{Name: "to", Type: "address"},
		{Name: "value", Type: "uint256"},
		{Name: "validAfter", Type: "uint256"},
		{Name: "validBefore", Type: "uint256"},
		{Name: "nonce", Type: "bytes32"},
	},
}

// TypedData assembles the full EIP-712 structure for an authorization
func TypedData(domain *TransferDomain, auth *TransferAuthorization) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       transferTypes,
		PrimaryType: "TransferWithAuthorization",
		Domain: apitypes.TypedDataDomain{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainId:           (*math.HexOrDecimal256)(domain.ChainID),
			VerifyingContract: domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"from":        auth.From.Hex(),
			"to":          auth.To.Hex(),
			"value":       (*math.HexOrDecimal256)(auth.Value),
			"validAfter":  (*math.HexOrDecimal256)(auth.ValidAfter),
			"validBefore": (*math.HexOrDecimal256)(auth.ValidBefore),
			"nonce":       "0x" + hex.EncodeToString(auth.Nonce[:]),
		},
	}
}

// HashTransferAuthorization produces the 32-byte digest to sign:
// keccak256("\x19\x01" || domainSeparator || structHash). Deterministic for
// fixed inputs; performs no I/O.
func HashTransferAuthorization(domain *TransferDomain, auth *TransferAuthorization) ([]byte, error) {
	for name, v := range map[string]interface{ BitLen() int }{
		"value":       auth.Value,
		"validAfter":  auth.ValidAfter,
		"validBefore": auth.ValidBefore,
	} {
		if v.BitLen() > 256 {
			return nil, fmt.Errorf("%w: %s exceeds uint256", ErrEncoding, name)
		}
	}
	if auth.Value.Sign() < 0 || auth.ValidAfter.Sign() < 0 || auth.ValidBefore.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative value in uint256 field", ErrEncoding)
	}

	digest, _, err := apitypes.TypedDataAndHash(TypedData(domain, auth))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return digest, nil
}
