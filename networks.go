package x402

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Network describes an EVM network the harness can pay on, including the
// USDC deployment used for the "exact" scheme's EIP-3009 transfers.
type Network struct {
	ID            string // CAIP-2 identifier, e.g. "eip155:8453"
	Alias         string // x402 short name, e.g. "base"
	ChainID       *big.Int
	USDC          common.Address
	TokenName     string // EIP-712 domain name of the token contract
	TokenVersion  string // EIP-712 domain version
	TokenDecimals int
}

// NetworkTable maps network identifiers to their parameters. Lookups accept
// both CAIP-2 ids and short aliases. Register all custom networks before
// handing the table to a Client; the table is not locked.
type NetworkTable struct {
	networks map[string]*Network
}

// NewNetworkTable creates an empty network table
func NewNetworkTable() *NetworkTable {
	return &NetworkTable{networks: make(map[string]*Network)}
}

// Register adds or replaces a network under both its CAIP-2 id and alias
func (t *NetworkTable) Register(n Network) {
	entry := n
	if entry.ID != "" {
		t.networks[strings.ToLower(entry.ID)] = &entry
	}
	if entry.Alias != "" {
		t.networks[strings.ToLower(entry.Alias)] = &entry
	}
}

// Lookup resolves a network by CAIP-2 id or alias, or nil if unknown
func (t *NetworkTable) Lookup(name string) *Network {
	return t.networks[strings.ToLower(name)]
}

// DefaultNetworks returns the built-in table of USDC deployments
func DefaultNetworks() *NetworkTable {
	t := NewNetworkTable()
	t.Register(Network{
		ID:            "eip155:8453",
		Alias:         "base",
		ChainID:       big.NewInt(8453),
		USDC:          common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
		TokenName:     "USD Coin",
		TokenVersion:  "2",
		TokenDecimals: 6,
	})
	t.Register(Network{
		ID:            "eip155:84532",
		Alias:         "base-sepolia",
		ChainID:       big.NewInt(84532),
		USDC:          common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e"),
		TokenName:     "USDC",
		TokenVersion:  "2",
		TokenDecimals: 6,
	})
	t.Register(Network{
		ID:            "eip155:1",
		Alias:         "ethereum",
		ChainID:       big.NewInt(1),
		USDC:          common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		TokenName:     "USD Coin",
		TokenVersion:  "2",
		TokenDecimals: 6,
	})
	t.Register(Network{
		ID:            "eip155:11155111",
		Alias:         "sepolia",
		ChainID:       big.NewInt(11155111),
		USDC:          common.HexToAddress("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238"),
		TokenName:     "USDC",
		TokenVersion:  "2",
		TokenDecimals: 6,
	})
	t.Register(Network{
		ID:            "eip155:43114",
		Alias:         "avalanche",
		ChainID:       big.NewInt(43114),
		USDC:          common.HexToAddress("0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E"),
		TokenName:     "USD Coin",
		TokenVersion:  "2",
		TokenDecimals: 6,
	})
	t.Register(Network{
		ID:            "eip155:43113",
		Alias:         "avalanche-fuji",
		ChainID:       big.NewInt(43113),
		USDC:          common.HexToAddress("0x5425890298aed601595a70AB815c96711a31Bc65"),
		TokenName:     "USD Coin",
		TokenVersion:  "2",
		TokenDecimals: 6,
	})
	return t
}
