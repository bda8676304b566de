package orchestrator

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cluster1900/eip7702-fulldemo-sub000/model"
	"github.com/cluster1900/eip7702-fulldemo-sub000/storage"
)

func newTestStore(t *testing.T) *SubmissionStore {
	t.Helper()
	db, err := storage.NewWithPath(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSubmissionStore(db)
}

func TestSubmissionStoreCreateAndGet(t *testing.T) {
	store := newTestStore(t)

	sub := model.NewSubmission(common.HexToAddress("0xa11ce"), big.NewInt(0), "0xhash1")
	require.NoError(t, store.Create(sub))

	got, err := store.Get(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, got.ID)
	assert.Equal(t, model.SubmissionPending, got.Status)

	total, err := store.Total()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total)
}

func TestSubmissionStorePendingLifecycle(t *testing.T) {
	store := newTestStore(t)

	first := model.NewSubmission(common.HexToAddress("0xa11ce"), big.NewInt(0), "0xhash1")
	second := model.NewSubmission(common.HexToAddress("0xb0b"), big.NewInt(1), "0xhash2")
	require.NoError(t, store.Create(first))
	require.NoError(t, store.Create(second))

	pending, err := store.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 2)

	count, err := store.PendingCount()
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	first.Complete(model.SubmissionConfirmed, "0xtx", 100)
	require.NoError(t, store.Update(first))

	pending, err = store.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)

	// the finalized record is still readable
	got, err := store.Get(first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SubmissionConfirmed, got.Status)
	assert.Equal(t, uint64(100), got.BlockNumber)
}

func TestSubmissionStoreListIsCreationOrdered(t *testing.T) {
	store := newTestStore(t)

	var ids []string
	for i := int64(0); i < 5; i++ {
		sub := model.NewSubmission(common.HexToAddress("0xa11ce"), big.NewInt(i), "0x")
		require.NoError(t, store.Create(sub))
		ids = append(ids, sub.ID)
	}

	subs, err := store.List()
	require.NoError(t, err)
	require.Len(t, subs, 5)
	for i, sub := range subs {
		assert.Equal(t, ids[i], sub.ID)
	}
}

func TestSubmissionStoreGetUnknownID(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get("01J00000000000000000000000")
	assert.Error(t, err)
}
