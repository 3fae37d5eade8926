package auth

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticAuthorizer(t *testing.T) {
	admin := common.HexToAddress("0x1111111111111111111111111111111111111111")
	other := common.HexToAddress("0x2222222222222222222222222222222222222222")

	a, err := NewStaticAuthorizer(admin)
	require.NoError(t, err)

	assert.True(t, a.IsAuthorized(admin))
	assert.False(t, a.IsAuthorized(other))
	assert.False(t, a.IsAuthorized(common.Address{}))
	assert.Equal(t, admin, a.Admin())
}

func TestStaticAuthorizerZeroAddress(t *testing.T) {
	_, err := NewStaticAuthorizer(common.Address{})
	require.Error(t, err)
}

func TestSignAndRecover(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	expected := crypto.PubkeyToAddress(key.PublicKey)
	keyHex := common.Bytes2Hex(crypto.FromECDSA(key))

	message := []byte(`{"root":"0xabc"}`)
	sig, err := SignMessage(message, keyHex)
	require.NoError(t, err)
	require.Len(t, sig, crypto.SignatureLength)

	recovered, err := RecoverSigner(message, sig)
	require.NoError(t, err)
	assert.Equal(t, expected, recovered)
}

// Wallets emit V as 27/28; recovery must accept both conventions.
func TestRecoverSignerWalletV(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	expected := crypto.PubkeyToAddress(key.PublicKey)
	keyHex := common.Bytes2Hex(crypto.FromECDSA(key))

	message := []byte("pause")
	sig, err := SignMessage(message, keyHex)
	require.NoError(t, err)

	walletSig := make([]byte, len(sig))
	copy(walletSig, sig)
	walletSig[crypto.RecoveryIDOffset] += 27

	recovered, err := RecoverSigner(message, walletSig)
	require.NoError(t, err)
	assert.Equal(t, expected, recovered)
}

func TestRecoverSignerTamperedMessage(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	expected := crypto.PubkeyToAddress(key.PublicKey)
	keyHex := common.Bytes2Hex(crypto.FromECDSA(key))

	sig, err := SignMessage([]byte("withdraw 100"), keyHex)
	require.NoError(t, err)

	recovered, err := RecoverSigner([]byte("withdraw 999"), sig)
	if err == nil {
		// Recovery over a different message yields some other address
		assert.NotEqual(t, expected, recovered)
	}
}

func TestRecoverSignerBadLength(t *testing.T) {
	_, err := RecoverSigner([]byte("msg"), []byte{1, 2, 3})
	require.Error(t, err)
}
