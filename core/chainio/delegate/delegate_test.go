package delegate

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackExecuteBatchRoundTrip(t *testing.T) {
	calls := []BatchCall{
		{
			Target: common.HexToAddress("0x1000"),
			Value:  big.NewInt(0),
			Data:   []byte{0xa9, 0x05, 0x9c, 0xbb, 0x01, 0x02},
		},
		{
			Target: common.HexToAddress("0x2000"),
			Value:  big.NewInt(12345),
			Data:   []byte{},
		},
	}

	callData, err := PackExecuteBatch(calls)
	require.NoError(t, err)
	require.True(t, len(callData) > 4)

	decoded, err := UnpackExecuteBatch(callData)
	require.NoError(t, err)
	require.Len(t, decoded, 2)

	assert.Equal(t, calls[0].Target, decoded[0].Target)
	assert.Equal(t, 0, calls[0].Value.Cmp(decoded[0].Value))
	assert.Equal(t, calls[0].Data, decoded[0].Data)
	assert.Equal(t, calls[1].Target, decoded[1].Target)
	assert.Equal(t, 0, calls[1].Value.Cmp(decoded[1].Value))
	assert.Empty(t, decoded[1].Data)
}

func TestPackExecuteBatchNormalizesNilFields(t *testing.T) {
	callData, err := PackExecuteBatch([]BatchCall{
		{Target: common.HexToAddress("0x1")},
	})
	require.NoError(t, err)

	decoded, err := UnpackExecuteBatch(callData)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, 0, decoded[0].Value.Sign())
	assert.Empty(t, decoded[0].Data)
}

func TestPackExecuteBatchEmptyList(t *testing.T) {
	callData, err := PackExecuteBatch(nil)
	require.NoError(t, err)

	decoded, err := UnpackExecuteBatch(callData)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestUnpackExecuteBatchRejectsWrongSelector(t *testing.T) {
	_, err := UnpackExecuteBatch([]byte{0xde, 0xad, 0xbe, 0xef, 0x00})
	assert.Error(t, err)
}

func TestUnpackExecuteBatchRejectsShortCalldata(t *testing.T) {
	_, err := UnpackExecuteBatch([]byte{0x01})
	assert.Error(t, err)
}

func TestUnpackExecuteBatchRejectsMangledBody(t *testing.T) {
	callData, err := PackExecuteBatch([]BatchCall{{Target: common.HexToAddress("0x1")}})
	require.NoError(t, err)

	_, err = UnpackExecuteBatch(callData[:len(callData)-7])
	assert.Error(t, err)
}

func TestPackTokenTransferSelector(t *testing.T) {
	data, err := PackTokenTransfer(common.HexToAddress("0x2"), big.NewInt(100))
	require.NoError(t, err)
	require.Len(t, data, 4+32+32)
	// transfer(address,uint256)
	assert.Equal(t, []byte{0xa9, 0x05, 0x9c, 0xbb}, data[:4])
}

func TestPackTokenApproveSelector(t *testing.T) {
	data, err := PackTokenApprove(common.HexToAddress("0x2"), big.NewInt(100))
	require.NoError(t, err)
	require.Len(t, data, 4+32+32)
	// approve(address,uint256)
	assert.Equal(t, []byte{0x09, 0x5e, 0xa7, 0xb3}, data[:4])
}

func TestSettlementAddressOverride(t *testing.T) {
	original := SettlementAddress()
	defer SetSettlementAddress(original)

	next := common.HexToAddress("0x1234")
	SetSettlementAddress(next)
	assert.Equal(t, next, SettlementAddress())
}
