package x402

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// clockSkewTolerance is subtracted from validAfter so authorizations are
// accepted by verifiers whose clocks run slightly behind ours.
const clockSkewTolerance = 60 * time.Second

// NonceFunc produces a 32-byte authorization nonce. Implementations must be
// safe for concurrent use; a repeated nonce from the same sender is rejected
// by the token contract.
type NonceFunc func() ([32]byte, error)

// NowFunc supplies the current time for the validity window.
type NowFunc func() time.Time

// DefaultNonce draws 32 random bytes from crypto/rand
func DefaultNonce() ([32]byte, error) {
	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nonce, fmt.Errorf("nonce generation failed: %w", err)
	}
	return nonce, nil
}

// TransferDomain is the EIP-712 domain separator scoping an authorization
// to one token deployment on one chain
type TransferDomain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// TransferAuthorization is an EIP-3009 TransferWithAuthorization message.
// Built fresh for every payment attempt and discarded after the header is
// encoded; never cached or reused.
type TransferAuthorization struct {
	From        common.Address
	To          common.Address
	Value       *big.Int
	ValidAfter  *big.Int
	ValidBefore *big.Int
	Nonce       [32]byte
}

// Wire converts the authorization to its x402 wire form
func (a *TransferAuthorization) Wire() PaymentAuthorization {
	return PaymentAuthorization{
		From:        a.From.Hex(),
		To:          a.To.Hex(),
		Value:       a.Value.String(),
		ValidAfter:  a.ValidAfter.String(),
		ValidBefore: a.ValidBefore.String(),
		Nonce:       "0x" + hex.EncodeToString(a.Nonce[:]),
	}
}

// buildAuthorization constructs the message and domain for one payment
// attempt. challenge is nil in sign-only mode, in which case the
// configuration's own recipient, amount and network defaults apply.
// cfg must already have defaults applied and have passed Validate.
func buildAuthorization(cfg PaymentConfig, challenge *PaymentRequirement, from common.Address, nonceFn NonceFunc, nowFn NowFunc) (*TransferAuthorization, *TransferDomain, error) {
	network, err := cfg.network()
	if err != nil {
		return nil, nil, err
	}

	configured, err := cfg.amount(network)
	if err != nil {
		return nil, nil, err
	}

	to := cfg.To
	asset := cfg.asset(network)
	domainName := network.TokenName
	domainVersion := network.TokenVersion
	value := configured
	window := cfg.ValidFor

	if challenge != nil {
		// Mismatch precedence: network first, then asset, then amount.
		if challenge.Network != "" && !sameNetwork(cfg.Networks, challenge.Network, network) {
			return nil, nil, fmt.Errorf("%w: challenge network %q does not match configured %q",
				ErrInvalidChallenge, challenge.Network, cfg.Network)
		}

		if challenge.Asset != "" {
			if !common.IsHexAddress(challenge.Asset) {
				return nil, nil, fmt.Errorf("%w: malformed asset %q", ErrInvalidChallenge, challenge.Asset)
			}
			challengeAsset := common.HexToAddress(challenge.Asset)
			if cfg.Asset != "" && challengeAsset != asset {
				return nil, nil, fmt.Errorf("%w: challenge asset %s does not match configured %s",
					ErrInvalidChallenge, challengeAsset.Hex(), asset.Hex())
			}
			asset = challengeAsset
		}

		// The domain must match what the verifier asserts. Fall back to
		// the network table only for its own USDC deployment.
		if name, ok := challenge.Extra["name"]; ok && name != "" {
			domainName = name
		} else if asset != network.USDC {
			return nil, nil, fmt.Errorf("%w: missing domain name for asset %s", ErrInvalidChallenge, asset.Hex())
		}
		if version, ok := challenge.Extra["version"]; ok && version != "" {
			domainVersion = version
		} else if asset != network.USDC {
			return nil, nil, fmt.Errorf("%w: missing domain version for asset %s", ErrInvalidChallenge, asset.Hex())
		}

		if to == "" {
			if challenge.PayTo == "" {
				return nil, nil, fmt.Errorf("%w: missing payTo", ErrInvalidChallenge)
			}
			to = challenge.PayTo
		}

		if challenge.MaxAmountRequired != "" {
			required, ok := new(big.Int).SetString(challenge.MaxAmountRequired, 10)
			if !ok {
				return nil, nil, fmt.Errorf("%w: unparseable amount %q", ErrInvalidChallenge, challenge.MaxAmountRequired)
			}
			if required.Sign() <= 0 {
				return nil, nil, fmt.Errorf("%w: non-positive amount %q", ErrInvalidChallenge, challenge.MaxAmountRequired)
			}
			if configured != nil && configured.Cmp(required) != 0 {
				return nil, nil, fmt.Errorf("%w: challenge requires %s, configured %s",
					ErrAmountMismatch, required.String(), configured.String())
			}
			if value == nil {
				value = required
			}
		}

		if challenge.MaxTimeoutSeconds > 0 {
			timeout := time.Duration(challenge.MaxTimeoutSeconds) * time.Second
			if timeout < window {
				window = timeout
			}
		}
	}

	if to == "" {
		return nil, nil, fmt.Errorf("%w: recipient is required in sign-only mode", ErrInvalidConfig)
	}
	if !common.IsHexAddress(to) {
		return nil, nil, fmt.Errorf("%w: malformed recipient %q", ErrInvalidChallenge, to)
	}
	if value == nil {
		if challenge == nil {
			return nil, nil, fmt.Errorf("%w: amount is required in sign-only mode", ErrInvalidConfig)
		}
		return nil, nil, fmt.Errorf("%w: missing amount", ErrInvalidChallenge)
	}

	nonce, err := nonceFn()
	if err != nil {
		return nil, nil, err
	}

	// Both timestamps derive from a single clock read to avoid skew
	// between validAfter and validBefore.
	now := nowFn()
	validAfter := now.Add(-clockSkewTolerance).Unix()
	validBefore := now.Add(window).Unix()

	auth := &TransferAuthorization{
		From:        from,
		To:          common.HexToAddress(to),
		Value:       value,
		ValidAfter:  big.NewInt(validAfter),
		ValidBefore: big.NewInt(validBefore),
		Nonce:       nonce,
	}
	domain := &TransferDomain{
		Name:              domainName,
		Version:           domainVersion,
		ChainID:           network.ChainID,
		VerifyingContract: asset,
	}
	return auth, domain, nil
}

// sameNetwork reports whether name resolves to the same chain as n,
// accepting CAIP-2 ids and aliases interchangeably
func sameNetwork(table *NetworkTable, name string, n *Network) bool {
	if strings.EqualFold(name, n.ID) || strings.EqualFold(name, n.Alias) {
		return true
	}
	resolved := table.Lookup(name)
	return resolved != nil && resolved.ChainID.Cmp(n.ChainID) == 0
}
