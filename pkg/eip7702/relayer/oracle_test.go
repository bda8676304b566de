package relayer

import (
	"context"
	"math/big"
	"testing"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cluster1900/eip7702-fulldemo-sub000/core/chainio/delegate"
	"github.com/cluster1900/eip7702-fulldemo-sub000/pkg/eip7702/operation"
)

// countingNode is a NodeReader that counts upstream queries so tests can
// assert cache behavior.
type countingNode struct {
	code     []byte
	seqNonce uint64
	opNonce  *big.Int

	codeCalls int
	seqCalls  int
	callCalls int
}

func (n *countingNode) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	n.codeCalls++
	return n.code, nil
}

func (n *countingNode) NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error) {
	n.seqCalls++
	return n.seqNonce, nil
}

func (n *countingNode) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	n.callCalls++
	return common.LeftPadBytes(n.opNonce.Bytes(), 32), nil
}

func newTestOracle(t *testing.T, node *countingNode) *Oracle {
	t.Helper()
	cache, err := NewCache(time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return NewOracle(node, cache, nil)
}

func TestHasDelegatedCodeDetectsSettlementDesignator(t *testing.T) {
	node := &countingNode{code: operation.DelegationCode(delegate.SettlementAddress())}
	oracle := newTestOracle(t, node)
	account := common.HexToAddress("0xa11ce")

	delegated, err := oracle.HasDelegatedCode(context.Background(), account)
	require.NoError(t, err)
	assert.True(t, delegated)
}

func TestHasDelegatedCodeRejectsForeignDelegate(t *testing.T) {
	node := &countingNode{code: operation.DelegationCode(common.HexToAddress("0xbad"))}
	oracle := newTestOracle(t, node)

	delegated, err := oracle.HasDelegatedCode(context.Background(), common.HexToAddress("0xa11ce"))
	require.NoError(t, err)
	assert.False(t, delegated)
}

func TestHasDelegatedCodeRejectsPlainCode(t *testing.T) {
	node := &countingNode{code: []byte{0x60, 0x80}}
	oracle := newTestOracle(t, node)

	delegated, err := oracle.HasDelegatedCode(context.Background(), common.HexToAddress("0xa11ce"))
	require.NoError(t, err)
	assert.False(t, delegated)
}

func TestHasDelegatedCodeServesRepeatsFromCache(t *testing.T) {
	node := &countingNode{code: operation.DelegationCode(delegate.SettlementAddress())}
	oracle := newTestOracle(t, node)
	account := common.HexToAddress("0xa11ce")

	for i := 0; i < 5; i++ {
		delegated, err := oracle.HasDelegatedCode(context.Background(), account)
		require.NoError(t, err)
		assert.True(t, delegated)
	}
	assert.Equal(t, 1, node.codeCalls, "repeat reads must hit the cache")
}

func TestAccountSequenceNonceCaches(t *testing.T) {
	node := &countingNode{seqNonce: 42}
	oracle := newTestOracle(t, node)
	account := common.HexToAddress("0xa11ce")

	for i := 0; i < 3; i++ {
		nonce, err := oracle.AccountSequenceNonce(context.Background(), account)
		require.NoError(t, err)
		assert.Equal(t, uint64(42), nonce)
	}
	assert.Equal(t, 1, node.seqCalls)
}

func TestOperationNonceCaches(t *testing.T) {
	node := &countingNode{opNonce: big.NewInt(7)}
	oracle := newTestOracle(t, node)
	account := common.HexToAddress("0xa11ce")

	for i := 0; i < 3; i++ {
		nonce, err := oracle.OperationNonce(context.Background(), account)
		require.NoError(t, err)
		assert.Equal(t, int64(7), nonce.Int64())
	}
	assert.Equal(t, 1, node.callCalls)
}

func TestInvalidateForcesRefetch(t *testing.T) {
	node := &countingNode{
		code:     []byte{}, // not delegated yet
		seqNonce: 1,
		opNonce:  big.NewInt(0),
	}
	oracle := newTestOracle(t, node)
	account := common.HexToAddress("0xa11ce")
	ctx := context.Background()

	delegated, err := oracle.HasDelegatedCode(ctx, account)
	require.NoError(t, err)
	require.False(t, delegated)
	_, err = oracle.AccountSequenceNonce(ctx, account)
	require.NoError(t, err)
	_, err = oracle.OperationNonce(ctx, account)
	require.NoError(t, err)

	// the first delegation-establishing operation landed
	node.code = operation.DelegationCode(delegate.SettlementAddress())
	oracle.Invalidate(account)

	delegated, err = oracle.HasDelegatedCode(ctx, account)
	require.NoError(t, err)
	assert.True(t, delegated, "stale cached answer must not survive invalidation")
	assert.Equal(t, 2, node.codeCalls)
	assert.Equal(t, 1, node.seqCalls)

	_, err = oracle.AccountSequenceNonce(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, 2, node.seqCalls)
}

func TestCacheGetMissesUnknownKey(t *testing.T) {
	cache, err := NewCache(time.Minute)
	require.NoError(t, err)
	defer cache.Close()

	_, ok := cache.Get("nothing")
	assert.False(t, ok)

	cache.Set("k", []byte{1, 2, 3})
	v, ok := cache.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, v)

	cache.Invalidate("k")
	_, ok = cache.Get("k")
	assert.False(t, ok)
}
