package x402

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedAuthorization() (*TransferDomain, *TransferAuthorization) {
	domain := &TransferDomain{
		Name:              "USD Coin",
		Version:           "2",
		ChainID:           big.NewInt(8453),
		VerifyingContract: common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
	}
	auth := &TransferAuthorization{
		From:        common.HexToAddress(testSender),
		To:          common.HexToAddress(testRecipient),
		Value:       big.NewInt(5000),
		ValidAfter:  big.NewInt(1700000000),
		ValidBefore: big.NewInt(1700000300),
	}
	for i := range auth.Nonce {
		auth.Nonce[i] = byte(i)
	}
	return domain, auth
}

func TestHashTransferAuthorization(t *testing.T) {
	t.Run("IsDeterministic", func(t *testing.T) {
		domain, auth := fixedAuthorization()

		first, err := HashTransferAuthorization(domain, auth)
		require.NoError(t, err)
		require.Len(t, first, 32)

		for i := 0; i < 100; i++ {
			again, err := HashTransferAuthorization(domain, auth)
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}
	})

	t.Run("NonceChangesDigest", func(t *testing.T) {
		domain, auth := fixedAuthorization()
		first, err := HashTransferAuthorization(domain, auth)
		require.NoError(t, err)

		auth.Nonce[0] ^= 0xff
		second, err := HashTransferAuthorization(domain, auth)
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("DomainChangesDigest", func(t *testing.T) {
		domain, auth := fixedAuthorization()
		first, err := HashTransferAuthorization(domain, auth)
		require.NoError(t, err)

		domain.ChainID = big.NewInt(84532)
		second, err := HashTransferAuthorization(domain, auth)
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("RejectsValueOverUint256", func(t *testing.T) {
		domain, auth := fixedAuthorization()
		auth.Value = new(big.Int).Lsh(big.NewInt(1), 257)

		_, err := HashTransferAuthorization(domain, auth)
		assert.ErrorIs(t, err, ErrEncoding)
	})

	t.Run("RejectsNegativeValue", func(t *testing.T) {
		domain, auth := fixedAuthorization()
		auth.Value = big.NewInt(-1)

		_, err := HashTransferAuthorization(domain, auth)
		assert.ErrorIs(t, err, ErrEncoding)
	})
}
