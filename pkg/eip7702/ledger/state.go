// Package ledger abstracts the state the settlement engine reads and
// mutates: per-account operation nonces, ERC-20 balances and allowances, and
// sub-call dispatch. The in-memory implementation backs engine tests and the
// orchestrator's dry-run endpoint; on a real deployment the same interface
// is the contract's storage.
package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// State is the mutable ledger surface the engine operates on. Every method
// is part of the same synchronous unit of work; Snapshot/RevertToSnapshot
// bound the all-or-nothing region.
type State interface {
	// Snapshot marks the current state and returns an id usable with
	// RevertToSnapshot. Snapshots nest.
	Snapshot() int
	RevertToSnapshot(id int)

	// OperationNonce reads the per-account replay counter, zero for
	// accounts never seen before.
	OperationNonce(account common.Address) *big.Int
	// IncrementOperationNonce advances the counter by exactly one.
	IncrementOperationNonce(account common.Address)

	// TokenTransferFrom moves ERC-20 value from `from` to `to`, consuming
	// the allowance `from` granted to the settlement contract. It fails on
	// insufficient balance or allowance without partial effect.
	TokenTransferFrom(token, from, to common.Address, amount *big.Int) error

	// Call dispatches one batch sub-call in the sender's context. A non-nil
	// error means the sub-call reverted.
	Call(sender, target common.Address, value *big.Int, data []byte) error
}
