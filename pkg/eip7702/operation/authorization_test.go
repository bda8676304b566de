package operation

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizationSigningHashPreimage(t *testing.T) {
	auth := &Authorization{
		ChainID: big.NewInt(11155111),
		Address: common.HexToAddress("0x63c0c19a282a1B52b07dD5a65b58948A07DAE32B"),
		Nonce:   3,
	}

	payload, err := rlp.EncodeToBytes([]interface{}{auth.ChainID, auth.Address, auth.Nonce})
	require.NoError(t, err)
	expected := crypto.Keccak256Hash(append([]byte{0x05}, payload...))

	got, err := auth.SigningHash()
	require.NoError(t, err)
	assert.Equal(t, expected, got)
}

func TestAuthorizationSignAndRecover(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := crypto.PubkeyToAddress(key.PublicKey)

	auth := &Authorization{
		ChainID: big.NewInt(1),
		Address: common.HexToAddress("0x63c0c19a282a1B52b07dD5a65b58948A07DAE32B"),
		Nonce:   0,
	}

	hash, err := auth.SigningHash()
	require.NoError(t, err)
	sig, err := crypto.Sign(hash.Bytes(), key)
	require.NoError(t, err)
	sig[64] += 27
	auth.Signature = sig

	recovered, err := auth.RecoverSigner()
	require.NoError(t, err)
	assert.Equal(t, signer, recovered)
}

func TestAuthorizationRecoverRejectsBadRecoveryID(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	auth := &Authorization{ChainID: big.NewInt(1), Nonce: 1}
	hash, err := auth.SigningHash()
	require.NoError(t, err)
	sig, err := crypto.Sign(hash.Bytes(), key)
	require.NoError(t, err)
	// raw 0/1 recovery id is not accepted on the wire
	auth.Signature = sig

	_, err = auth.RecoverSigner()
	assert.Error(t, err)
}

func TestAuthorizationRecoverRejectsShortSignature(t *testing.T) {
	auth := &Authorization{ChainID: big.NewInt(1), Signature: make([]byte, 64)}
	_, err := auth.RecoverSigner()
	assert.Error(t, err)
}

func TestDifferentNoncesProduceDifferentAuthorizationHashes(t *testing.T) {
	a := &Authorization{ChainID: big.NewInt(1), Address: common.HexToAddress("0x2"), Nonce: 0}
	b := &Authorization{ChainID: big.NewInt(1), Address: common.HexToAddress("0x2"), Nonce: 1}

	ha, err := a.SigningHash()
	require.NoError(t, err)
	hb, err := b.SigningHash()
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}

func TestDelegationCodeRoundTrip(t *testing.T) {
	delegate := common.HexToAddress("0x63c0c19a282a1B52b07dD5a65b58948A07DAE32B")

	code := DelegationCode(delegate)
	require.Len(t, code, 23)
	assert.Equal(t, []byte{0xef, 0x01, 0x00}, code[:3])

	got, ok := ParseDelegation(code)
	require.True(t, ok)
	assert.Equal(t, delegate, got)
}

func TestParseDelegationRejectsNonDesignatorCode(t *testing.T) {
	tests := []struct {
		name string
		code []byte
	}{
		{"empty", nil},
		{"plain contract code", []byte{0x60, 0x80, 0x60, 0x40}},
		{"wrong prefix", append([]byte{0xef, 0x01, 0x01}, make([]byte, 20)...)},
		{"truncated designator", []byte{0xef, 0x01, 0x00, 0xaa}},
		{"oversized designator", append([]byte{0xef, 0x01, 0x00}, make([]byte, 21)...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ParseDelegation(tt.code)
			assert.False(t, ok)
		})
	}
}
