package x402

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// First account of the well-known hardhat test mnemonic; not a real wallet.
const testMnemonic = "test test test test test test test test test test test junk"

func TestPrivateKeySigner(t *testing.T) {
	t.Run("DerivesAddressFromKey", func(t *testing.T) {
		signer, err := NewPrivateKeySigner(testPrivateKey)
		require.NoError(t, err)
		assert.Equal(t, testSender, signer.Address().Hex())
	})

	t.Run("AcceptsUnprefixedKey", func(t *testing.T) {
		signer, err := NewPrivateKeySigner(testPrivateKey[2:])
		require.NoError(t, err)
		assert.Equal(t, testSender, signer.Address().Hex())
	})

	t.Run("RejectsMalformedKey", func(t *testing.T) {
		_, err := NewPrivateKeySigner("0xzznothex")
		assert.ErrorIs(t, err, ErrInvalidPrivateKey)

		_, err = NewPrivateKeySigner("0x1234")
		assert.ErrorIs(t, err, ErrInvalidPrivateKey)
	})

	t.Run("ProducesEthereumSignature", func(t *testing.T) {
		signer, err := NewPrivateKeySigner(testPrivateKey)
		require.NoError(t, err)

		domain, auth := fixedAuthorization()
		digest, err := HashTransferAuthorization(domain, auth)
		require.NoError(t, err)

		signature, err := signer.Sign(digest)
		require.NoError(t, err)
		require.Len(t, signature, 65)
		assert.Contains(t, []byte{27, 28}, signature[64])
	})
}

func TestMnemonicSigner(t *testing.T) {
	t.Run("DerivesDefaultEthereumPath", func(t *testing.T) {
		signer, err := NewMnemonicSigner(testMnemonic, "")
		require.NoError(t, err)
		assert.Equal(t, testSender, signer.Address().Hex())
	})

	t.Run("ExplicitPathMatchesDefault", func(t *testing.T) {
		signer, err := NewMnemonicSigner(testMnemonic, "m/44'/60'/0'/0/0")
		require.NoError(t, err)
		assert.Equal(t, testSender, signer.Address().Hex())
	})

	t.Run("DifferentPathDifferentAddress", func(t *testing.T) {
		signer, err := NewMnemonicSigner(testMnemonic, "m/44'/60'/0'/0/1")
		require.NoError(t, err)
		assert.NotEqual(t, testSender, signer.Address().Hex())
	})

	t.Run("RejectsInvalidMnemonic", func(t *testing.T) {
		_, err := NewMnemonicSigner("not a valid mnemonic at all", "")
		assert.ErrorIs(t, err, ErrInvalidMnemonic)
	})

	t.Run("RejectsInvalidPath", func(t *testing.T) {
		_, err := NewMnemonicSigner(testMnemonic, "not/a/path")
		assert.Error(t, err)
	})
}

func TestKeystoreSigner(t *testing.T) {
	t.Run("RejectsInvalidKeystoreJSON", func(t *testing.T) {
		_, err := NewKeystoreSigner([]byte(`{"not":"a keystore"}`), "password")
		assert.Error(t, err)
	})
}

func TestMockSigner(t *testing.T) {
	t.Run("ClaimsConfiguredAddress", func(t *testing.T) {
		signer := NewMockSigner(testSender)
		assert.Equal(t, testSender, signer.Address().Hex())

		signature, err := signer.Sign(make([]byte, 32))
		require.NoError(t, err)
		assert.Len(t, signature, 65)
	})

	t.Run("FailingSignerSurfacesSigningError", func(t *testing.T) {
		signer := NewFailingSigner(assert.AnError)
		_, err := signer.Sign(make([]byte, 32))
		assert.ErrorIs(t, err, ErrSigning)
	})
}
