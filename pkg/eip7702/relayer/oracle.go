package relayer

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/cluster1900/eip7702-fulldemo-sub000/core/chainio/delegate"
	"github.com/cluster1900/eip7702-fulldemo-sub000/pkg/eip7702/operation"
	"github.com/cluster1900/eip7702-fulldemo-sub000/pkg/logger"
)

// NodeReader is the slice of the ledger node the oracle needs: account code,
// account transaction-sequence nonces, and read-only contract calls.
// *ethclient.Client satisfies it.
type NodeReader interface {
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Oracle answers delegation-state questions with a bounded-lifetime cache in
// front of the node. Readers may observe answers up to one TTL stale; the
// per-account entries are explicitly invalidated after the account's first
// delegation-establishing operation lands.
type Oracle struct {
	node   NodeReader
	cache  *Cache
	logger logger.Logger
}

func NewOracle(node NodeReader, cache *Cache, lgr logger.Logger) *Oracle {
	return &Oracle{node: node, cache: cache, logger: logger.EnsureLogger(lgr)}
}

func delegationKey(account common.Address) string { return "delegation:" + account.Hex() }
func seqNonceKey(account common.Address) string   { return "seqnonce:" + account.Hex() }
func opNonceKey(account common.Address) string    { return "opnonce:" + account.Hex() }

// HasDelegatedCode reports whether account currently carries a delegation
// designator pointing at the settlement contract.
func (o *Oracle) HasDelegatedCode(ctx context.Context, account common.Address) (bool, error) {
	if cached, ok := o.cache.Get(delegationKey(account)); ok && len(cached) == 1 {
		return cached[0] == 1, nil
	}
	code, err := o.node.CodeAt(ctx, account, nil)
	if err != nil {
		return false, fmt.Errorf("failed to read account code: %w", err)
	}
	delegated := false
	if target, ok := operation.ParseDelegation(code); ok {
		delegated = target == delegate.SettlementAddress()
	}
	answer := []byte{0}
	if delegated {
		answer[0] = 1
	}
	o.cache.Set(delegationKey(account), answer)
	return delegated, nil
}

// AccountSequenceNonce reads the account's transaction-sequence nonce, the
// one an authorization companion must carry. Distinct from OperationNonce.
func (o *Oracle) AccountSequenceNonce(ctx context.Context, account common.Address) (uint64, error) {
	if cached, ok := o.cache.Get(seqNonceKey(account)); ok && len(cached) == 8 {
		return binary.BigEndian.Uint64(cached), nil
	}
	nonce, err := o.node.NonceAt(ctx, account, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to read account nonce: %w", err)
	}
	o.cache.Set(seqNonceKey(account), binary.BigEndian.AppendUint64(nil, nonce))
	return nonce, nil
}

// OperationNonce reads the settlement contract's replay counter for account.
func (o *Oracle) OperationNonce(ctx context.Context, account common.Address) (*big.Int, error) {
	if cached, ok := o.cache.Get(opNonceKey(account)); ok {
		return new(big.Int).SetBytes(cached), nil
	}
	nonce, err := delegate.OperationNonce(ctx, o.node, account)
	if err != nil {
		return nil, err
	}
	o.cache.Set(opNonceKey(account), nonce.Bytes())
	return nonce, nil
}

// Invalidate drops every cached answer for account. Called right after the
// account's first successful delegation-establishing operation so the next
// build does not demand another authorization companion.
func (o *Oracle) Invalidate(account common.Address) {
	o.cache.Invalidate(delegationKey(account))
	o.cache.Invalidate(seqNonceKey(account))
	o.cache.Invalidate(opNonceKey(account))
	o.logger.Debug("oracle cache invalidated", "account", account.Hex())
}
