package x402

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// DefaultNetwork is Base mainnet
	DefaultNetwork = "eip155:8453"

	// DefaultValidFor is the authorization validity window
	DefaultValidFor = 300 * time.Second
)

// PaymentConfig describes a payment the caller is willing to make.
// It is validated once and treated as immutable afterwards.
type PaymentConfig struct {
	// Signer produces the EIP-712 signature. Required.
	Signer PaymentSigner

	// To is the recipient address. Overrides the challenge's payTo when
	// set; required in sign-only mode with no challenge.
	To string

	// Amount is the transfer amount as a decimal token string ("0.005").
	// Converted to minor units with the token's decimal count before any
	// signing. Mutually exclusive with AmountRaw.
	Amount string

	// AmountRaw is the transfer amount already in minor units ("5000").
	AmountRaw string

	// Network is a CAIP-2 id or short alias. Defaults to Base mainnet.
	Network string

	// Asset overrides the network's default USDC contract.
	Asset string

	// ValidFor is the authorization validity window. Defaults to 300s.
	ValidFor time.Duration

	// Scheme is the x402 payment scheme. Defaults to "exact".
	Scheme string

	// Networks is the lookup table for network parameters.
	// Defaults to DefaultNetworks().
	Networks *NetworkTable
}

// ToMinorUnits converts a decimal token amount to minor units using the
// token's fixed decimal count. Fails if the amount has more fractional
// digits than the token supports.
func ToMinorUnits(amount string, decimals int) (*big.Int, error) {
	rat, ok := new(big.Rat).SetString(amount)
	if !ok {
		return nil, fmt.Errorf("%w: unparseable amount %q", ErrInvalidConfig, amount)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	scaled := new(big.Rat).Mul(rat, new(big.Rat).SetInt(scale))
	if !scaled.IsInt() {
		return nil, fmt.Errorf("%w: amount %q needs more than %d decimals", ErrInvalidConfig, amount, decimals)
	}
	return new(big.Int).Set(scaled.Num()), nil
}

// withDefaults returns a copy with zero-valued optional fields filled in
func (c PaymentConfig) withDefaults() PaymentConfig {
	if c.Network == "" {
		c.Network = DefaultNetwork
	}
	if c.Scheme == "" {
		c.Scheme = SchemeExact
	}
	if c.ValidFor <= 0 {
		c.ValidFor = DefaultValidFor
	}
	if c.Networks == nil {
		c.Networks = DefaultNetworks()
	}
	return c
}

// network resolves the configured network from the table
func (c PaymentConfig) network() (*Network, error) {
	n := c.Networks.Lookup(c.Network)
	if n == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedNetwork, c.Network)
	}
	return n, nil
}

// asset returns the token contract to sign against
func (c PaymentConfig) asset(n *Network) common.Address {
	if c.Asset != "" {
		return common.HexToAddress(c.Asset)
	}
	return n.USDC
}

// amount resolves the configured amount in minor units, or nil when the
// caller left the amount to the server's challenge
func (c PaymentConfig) amount(n *Network) (*big.Int, error) {
	switch {
	case c.Amount != "" && c.AmountRaw != "":
		return nil, fmt.Errorf("%w: Amount and AmountRaw are mutually exclusive", ErrInvalidConfig)
	case c.Amount != "":
		return ToMinorUnits(c.Amount, n.TokenDecimals)
	case c.AmountRaw != "":
		raw, ok := new(big.Int).SetString(c.AmountRaw, 10)
		if !ok {
			return nil, fmt.Errorf("%w: unparseable raw amount %q", ErrInvalidConfig, c.AmountRaw)
		}
		return raw, nil
	default:
		return nil, nil
	}
}

// Validate checks that the configuration could produce a valid signature.
// An invalid configuration never reaches the encoder.
func (c PaymentConfig) Validate() error {
	cfg := c.withDefaults()

	if cfg.Signer == nil {
		return fmt.Errorf("%w: signer is required", ErrInvalidConfig)
	}

	n, err := cfg.network()
	if err != nil {
		return err
	}

	if cfg.To != "" && !common.IsHexAddress(cfg.To) {
		return fmt.Errorf("%w: malformed recipient address %q", ErrInvalidConfig, cfg.To)
	}
	if cfg.Asset != "" && !common.IsHexAddress(cfg.Asset) {
		return fmt.Errorf("%w: malformed asset address %q", ErrInvalidConfig, cfg.Asset)
	}

	amount, err := cfg.amount(n)
	if err != nil {
		return err
	}
	if amount != nil && amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidConfig)
	}

	return nil
}
