package model

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSubmissionDefaults(t *testing.T) {
	sender := common.HexToAddress("0xa11ce")
	sub := NewSubmission(sender, big.NewInt(3), "0xabc")

	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, sender.Hex(), sub.Sender)
	assert.Equal(t, "3", sub.Nonce)
	assert.Equal(t, "0xabc", sub.OperationHash)
	assert.Equal(t, SubmissionPending, sub.Status)
	assert.NotZero(t, sub.CreatedAt)
	assert.Zero(t, sub.CompletedAt)
}

func TestSubmissionIDsAreSortable(t *testing.T) {
	a := GenerateSubmissionID()
	b := GenerateSubmissionID()
	assert.NotEqual(t, a, b)
	// ulids created later never sort before earlier ones
	assert.LessOrEqual(t, a, b)
}

func TestSubmissionJSONRoundTrip(t *testing.T) {
	sub := NewSubmission(common.HexToAddress("0xb0b"), big.NewInt(9), "0xdef")
	sub.Complete(SubmissionConfirmed, "0x747848617368", 1234)

	data, err := sub.ToJSON()
	require.NoError(t, err)

	decoded, err := SubmissionFromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, decoded.ID)
	assert.Equal(t, sub.Sender, decoded.Sender)
	assert.Equal(t, sub.Nonce, decoded.Nonce)
	assert.Equal(t, SubmissionConfirmed, decoded.Status)
	assert.Equal(t, "0x747848617368", decoded.TxHash)
	assert.Equal(t, uint64(1234), decoded.BlockNumber)
	assert.NotZero(t, decoded.CompletedAt)
}

func TestSubmissionFromJSONRejectsGarbage(t *testing.T) {
	_, err := SubmissionFromJSON([]byte("{not json"))
	assert.Error(t, err)
}

func TestStorageKeyPrefix(t *testing.T) {
	sub := NewSubmission(common.HexToAddress("0x1"), nil, "0x0")
	assert.Equal(t, "0", sub.Nonce)
	assert.Equal(t, append([]byte{}, []byte("submission:"+sub.ID)...), sub.StorageKey())
	assert.Equal(t, sub.StorageKey(), SubmissionStorageKey(sub.ID))
}
