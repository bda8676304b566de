package operation

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRejectsOversizedPackedFields(t *testing.T) {
	tooBig := new(big.Int).Lsh(big.NewInt(1), 128)

	tests := []struct {
		name   string
		mutate func(op *Operation)
	}{
		{"verificationGasLimit over 128 bits", func(op *Operation) { op.VerificationGasLimit = tooBig }},
		{"callGasLimit over 128 bits", func(op *Operation) { op.CallGasLimit = tooBig }},
		{"maxPriorityFeePerGas over 128 bits", func(op *Operation) { op.MaxPriorityFeePerGas = tooBig }},
		{"maxFeePerGas over 128 bits", func(op *Operation) { op.MaxFeePerGas = tooBig }},
		{"negative gas limit", func(op *Operation) { op.CallGasLimit = big.NewInt(-1) }},
		{"odd fee descriptor length", func(op *Operation) { op.FeeCompensation = make([]byte, 20) }},
		{"short signature", func(op *Operation) { op.Signature = make([]byte, 64) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := &Operation{Sender: common.HexToAddress("0x1")}
			tt.mutate(op)
			assert.Error(t, op.Validate())
		})
	}
}

func TestValidateAcceptsZeroValueOperation(t *testing.T) {
	op := &Operation{}
	assert.NoError(t, op.Validate())
}

func TestPackedGasLimitsLayout(t *testing.T) {
	op := &Operation{
		VerificationGasLimit: big.NewInt(0x1122),
		CallGasLimit:         big.NewInt(0x33),
	}

	word, err := op.PackedGasLimits()
	require.NoError(t, err)
	require.Len(t, word, 32)

	hi, lo := unpackUint128Pair(word)
	assert.Equal(t, int64(0x1122), hi.Int64())
	assert.Equal(t, int64(0x33), lo.Int64())

	// big-endian within each half
	assert.Equal(t, byte(0x11), word[14])
	assert.Equal(t, byte(0x22), word[15])
	assert.Equal(t, byte(0x33), word[31])
}

func TestPackedFeesMaxValue(t *testing.T) {
	op := &Operation{
		MaxPriorityFeePerGas: new(big.Int).Set(maxUint128),
		MaxFeePerGas:         new(big.Int).Set(maxUint128),
	}

	word, err := op.PackedFees()
	require.NoError(t, err)
	for _, b := range word {
		assert.Equal(t, byte(0xff), b)
	}
}

func TestPackedFeesOverflowErrors(t *testing.T) {
	op := &Operation{
		MaxFeePerGas: new(big.Int).Add(maxUint128, big.NewInt(1)),
	}
	_, err := op.PackedFees()
	assert.Error(t, err)
}

func TestFeeCompensationRoundTrip(t *testing.T) {
	token := common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	amount := big.NewInt(5_000_000)

	desc := EncodeFeeCompensation(token, amount)
	require.Len(t, desc, FeeCompensationLength)

	gotToken, gotAmount, err := DecodeFeeCompensation(desc)
	require.NoError(t, err)
	assert.Equal(t, token, gotToken)
	assert.Equal(t, 0, amount.Cmp(gotAmount))
}

func TestDecodeFeeCompensationRejectsBadLength(t *testing.T) {
	_, _, err := DecodeFeeCompensation(make([]byte, 51))
	assert.Error(t, err)

	_, _, err = DecodeFeeCompensation(nil)
	assert.Error(t, err)
}
