package orchestrator

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cluster1900/eip7702-fulldemo-sub000/pkg/eip7702/operation"
)

func TestJsonOperationRoundTrip(t *testing.T) {
	op := &operation.Operation{
		Sender:               common.HexToAddress("0x8a36dDa7Bc0cB7f2425e5EabB4A683B2116e4eDc"),
		Nonce:                big.NewInt(7),
		CallData:             []byte{0xde, 0xad},
		VerificationGasLimit: big.NewInt(150000),
		CallGasLimit:         big.NewInt(200000),
		PreVerificationGas:   big.NewInt(50000),
		MaxPriorityFeePerGas: big.NewInt(2_000_000_000),
		MaxFeePerGas:         big.NewInt(30_000_000_000),
		FeeCompensation:      operation.EncodeFeeCompensation(common.HexToAddress("0x2"), big.NewInt(5_000_000)),
		Signature:            make([]byte, operation.SignatureLength),
	}
	op.Signature[64] = 27

	encoded := toJsonOperation(op)
	decoded, err := encoded.toOperation()
	require.NoError(t, err)

	assert.Equal(t, op.Sender, decoded.Sender)
	assert.Equal(t, 0, op.Nonce.Cmp(decoded.Nonce))
	assert.Equal(t, op.CallData, decoded.CallData)
	assert.Equal(t, 0, op.MaxFeePerGas.Cmp(decoded.MaxFeePerGas))
	assert.Equal(t, op.FeeCompensation, decoded.FeeCompensation)
	assert.Equal(t, op.Signature, decoded.Signature)
}

func TestJsonOperationRejectsBadHex(t *testing.T) {
	j := JsonOperation{
		Sender: "0x8a36dDa7Bc0cB7f2425e5EabB4A683B2116e4eDc",
		Nonce:  "0xzz",
	}
	_, err := j.toOperation()
	assert.Error(t, err)

	j = JsonOperation{
		Sender:   "0x8a36dDa7Bc0cB7f2425e5EabB4A683B2116e4eDc",
		Nonce:    "0x1",
		CallData: "0x123", // odd length
	}
	_, err = j.toOperation()
	assert.Error(t, err)
}

func TestJsonOperationRejectsInvalidFieldRanges(t *testing.T) {
	j := JsonOperation{
		Sender:    "0x8a36dDa7Bc0cB7f2425e5EabB4A683B2116e4eDc",
		Nonce:     "0x0",
		Signature: "0x0102", // not 65 bytes
	}
	_, err := j.toOperation()
	assert.Error(t, err)
}

func TestJsonAuthorizationRoundTrip(t *testing.T) {
	auth := &operation.Authorization{
		ChainID:   big.NewInt(11155111),
		Address:   common.HexToAddress("0x63c0c19a282a1B52b07dD5a65b58948A07DAE32B"),
		Nonce:     42,
		Signature: make([]byte, operation.SignatureLength),
	}

	encoded := toJsonAuthorization(auth)
	require.NotNil(t, encoded)

	decoded, err := encoded.toAuthorization()
	require.NoError(t, err)
	assert.Equal(t, 0, auth.ChainID.Cmp(decoded.ChainID))
	assert.Equal(t, auth.Address, decoded.Address)
	assert.Equal(t, auth.Nonce, decoded.Nonce)
	assert.Equal(t, auth.Signature, decoded.Signature)
}

func TestNilAuthorizationStaysNil(t *testing.T) {
	assert.Nil(t, toJsonAuthorization(nil))

	var j *JsonAuthorization
	auth, err := j.toAuthorization()
	require.NoError(t, err)
	assert.Nil(t, auth)
}

func TestSeedStateHandlesLargeNonce(t *testing.T) {
	// Operation nonces are 256-bit and caller-supplied; seeding must jump to
	// the value, not count up to it.
	orch := &Orchestrator{}
	nonce, ok := new(big.Int).SetString("ffffffffffff", 16)
	require.True(t, ok)

	op := &operation.Operation{
		Sender: common.HexToAddress("0xa11ce"),
		Nonce:  nonce,
	}

	start := time.Now()
	state, err := orch.seedState(&DryRunRequest{}, op)
	require.NoError(t, err)
	require.Less(t, time.Since(start), time.Second)

	assert.Equal(t, 0, nonce.Cmp(state.OperationNonce(op.Sender)))
}

func TestSeedStateAdvancesNonceAndSetsDelegation(t *testing.T) {
	orch := &Orchestrator{}
	op := &operation.Operation{
		Sender: common.HexToAddress("0xa11ce"),
		Nonce:  big.NewInt(3),
	}

	state, err := orch.seedState(&DryRunRequest{
		TokenBalances: []BalanceSeed{
			{Token: "0x0000000000000000000000000000000000001000", Holder: "0x000000000000000000000000000000000000a11c", Amount: "0x64"},
		},
	}, op)
	require.NoError(t, err)

	assert.Equal(t, int64(3), state.OperationNonce(op.Sender).Int64())
	_, delegated := operation.ParseDelegation(state.Code(op.Sender))
	assert.True(t, delegated)
	assert.Equal(t, int64(0x64), state.TokenBalance(
		common.HexToAddress("0x0000000000000000000000000000000000001000"),
		common.HexToAddress("0x000000000000000000000000000000000000a11c"),
	).Int64())
}
