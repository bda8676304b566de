package operation

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedSampleOperation() *Operation {
	op := sampleOperation()
	op.Signature = make([]byte, SignatureLength)
	op.Signature[64] = 27
	return op
}

func TestOperationWireRoundTrip(t *testing.T) {
	op := signedSampleOperation()

	data, err := op.MarshalBinary()
	require.NoError(t, err)

	decoded := &Operation{}
	require.NoError(t, decoded.UnmarshalBinary(data))

	assert.Equal(t, op.Sender, decoded.Sender)
	assert.Equal(t, 0, op.Nonce.Cmp(decoded.Nonce))
	assert.Equal(t, op.CallData, decoded.CallData)
	assert.Equal(t, 0, op.VerificationGasLimit.Cmp(decoded.VerificationGasLimit))
	assert.Equal(t, 0, op.CallGasLimit.Cmp(decoded.CallGasLimit))
	assert.Equal(t, 0, op.PreVerificationGas.Cmp(decoded.PreVerificationGas))
	assert.Equal(t, 0, op.MaxPriorityFeePerGas.Cmp(decoded.MaxPriorityFeePerGas))
	assert.Equal(t, 0, op.MaxFeePerGas.Cmp(decoded.MaxFeePerGas))
	assert.Equal(t, op.FeeCompensation, decoded.FeeCompensation)
	assert.Equal(t, op.Signature, decoded.Signature)

	// both sides must hash identically after the trip
	h1, err := op.SigningHash(testDomain())
	require.NoError(t, err)
	h2, err := decoded.SigningHash(testDomain())
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestOperationWireRejectsUnsigned(t *testing.T) {
	op := sampleOperation()
	_, err := op.MarshalBinary()
	assert.Error(t, err)
}

func TestOperationWireRejectsTruncation(t *testing.T) {
	data, err := signedSampleOperation().MarshalBinary()
	require.NoError(t, err)

	for _, cut := range []int{1, 20, 52, len(data) - 1} {
		decoded := &Operation{}
		assert.Error(t, decoded.UnmarshalBinary(data[:cut]), "cut at %d", cut)
	}
}

func TestOperationWireRejectsTrailingBytes(t *testing.T) {
	data, err := signedSampleOperation().MarshalBinary()
	require.NoError(t, err)

	decoded := &Operation{}
	assert.Error(t, decoded.UnmarshalBinary(append(data, 0x00)))
}

func TestAuthorizationWireRoundTrip(t *testing.T) {
	auth := &Authorization{
		ChainID:   big.NewInt(11155111),
		Address:   common.HexToAddress("0x63c0c19a282a1B52b07dD5a65b58948A07DAE32B"),
		Nonce:     42,
		Signature: make([]byte, SignatureLength),
	}
	auth.Signature[64] = 28

	data, err := auth.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, 32+20+8+SignatureLength)

	decoded := &Authorization{}
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.Equal(t, 0, auth.ChainID.Cmp(decoded.ChainID))
	assert.Equal(t, auth.Address, decoded.Address)
	assert.Equal(t, auth.Nonce, decoded.Nonce)
	assert.Equal(t, auth.Signature, decoded.Signature)
}

func TestAuthorizationWireRejectsUnsigned(t *testing.T) {
	auth := &Authorization{ChainID: big.NewInt(1)}
	_, err := auth.MarshalBinary()
	assert.Error(t, err)
}

func TestAuthorizationWireRejectsTrailingBytes(t *testing.T) {
	auth := &Authorization{ChainID: big.NewInt(1), Signature: make([]byte, SignatureLength)}
	data, err := auth.MarshalBinary()
	require.NoError(t, err)

	decoded := &Authorization{}
	assert.Error(t, decoded.UnmarshalBinary(append(data, 0xff)))
}
