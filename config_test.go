package x402

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPrivateKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testRecipient  = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	testSender     = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func TestToMinorUnits(t *testing.T) {
	t.Run("ConvertsDecimalToMinorUnits", func(t *testing.T) {
		amount, err := ToMinorUnits("0.005", 6)
		require.NoError(t, err)
		assert.Equal(t, "5000", amount.String())
	})

	t.Run("ConvertsWholeAmounts", func(t *testing.T) {
		amount, err := ToMinorUnits("1", 6)
		require.NoError(t, err)
		assert.Equal(t, "1000000", amount.String())
	})

	t.Run("RejectsExcessPrecision", func(t *testing.T) {
		_, err := ToMinorUnits("0.0000001", 6)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("RejectsGarbage", func(t *testing.T) {
		_, err := ToMinorUnits("five dollars", 6)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestPaymentConfigValidate(t *testing.T) {
	signer, err := NewPrivateKeySigner(testPrivateKey)
	require.NoError(t, err)

	t.Run("AcceptsMinimalConfig", func(t *testing.T) {
		cfg := PaymentConfig{Signer: signer}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("RequiresSigner", func(t *testing.T) {
		cfg := PaymentConfig{To: testRecipient, Amount: "0.005"}
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})

	t.Run("RejectsUnknownNetwork", func(t *testing.T) {
		cfg := PaymentConfig{Signer: signer, Network: "eip155:999999"}
		assert.ErrorIs(t, cfg.Validate(), ErrUnsupportedNetwork)
	})

	t.Run("RejectsMalformedRecipient", func(t *testing.T) {
		cfg := PaymentConfig{Signer: signer, To: "not-an-address"}
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})

	t.Run("RejectsNegativeAmount", func(t *testing.T) {
		cfg := PaymentConfig{Signer: signer, AmountRaw: "-5"}
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})

	t.Run("RejectsZeroAmount", func(t *testing.T) {
		cfg := PaymentConfig{Signer: signer, Amount: "0"}
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})

	t.Run("RejectsConflictingAmounts", func(t *testing.T) {
		cfg := PaymentConfig{Signer: signer, Amount: "0.005", AmountRaw: "5000"}
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})

	t.Run("AcceptsNetworkAlias", func(t *testing.T) {
		cfg := PaymentConfig{Signer: signer, Network: "base-sepolia"}
		assert.NoError(t, cfg.Validate())
	})
}

func TestNetworkTable(t *testing.T) {
	table := DefaultNetworks()

	t.Run("LooksUpByCAIP2AndAlias", func(t *testing.T) {
		byID := table.Lookup("eip155:8453")
		byAlias := table.Lookup("base")
		require.NotNil(t, byID)
		require.NotNil(t, byAlias)
		assert.Equal(t, byID.ChainID, byAlias.ChainID)
		assert.Equal(t, "USD Coin", byID.TokenName)
	})

	t.Run("UnknownNetworkIsNil", func(t *testing.T) {
		assert.Nil(t, table.Lookup("eip155:31337"))
	})

	t.Run("RegisterAddsCustomNetwork", func(t *testing.T) {
		custom := NewNetworkTable()
		custom.Register(Network{ID: "eip155:31337", Alias: "anvil", TokenDecimals: 6})
		assert.NotNil(t, custom.Lookup("anvil"))
		assert.NotNil(t, custom.Lookup("EIP155:31337"))
	})
}
