// Package engine implements the operation validation-and-execution rules the
// settlement contract enforces on-ledger: canonical-hash signature
// verification, strictly sequential nonce accounting, ERC-20 fee settlement
// to the relaying payee, and all-or-nothing batch execution. The relayer
// runs the same code pre-submission so both sides agree bit-for-bit.
package engine

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cluster1900/eip7702-fulldemo-sub000/core/chainio/delegate"
	"github.com/cluster1900/eip7702-fulldemo-sub000/pkg/eip7702/ledger"
	"github.com/cluster1900/eip7702-fulldemo-sub000/pkg/eip7702/operation"
	"github.com/cluster1900/eip7702-fulldemo-sub000/pkg/logger"
)

// Engine is one settlement boundary: a delegate contract identity, its
// signing domain, and the ledger state it owns. It has no concurrency of its
// own; each ProcessOperation call is one synchronous atomic unit.
type Engine struct {
	self   common.Address
	domain operation.Domain
	state  ledger.State
	logger logger.Logger
}

func New(self common.Address, domain operation.Domain, state ledger.State, lgr logger.Logger) *Engine {
	return &Engine{
		self:   self,
		domain: domain,
		state:  state,
		logger: logger.EnsureLogger(lgr),
	}
}

// Domain returns the signing domain this engine verifies against.
func (e *Engine) Domain() operation.Domain { return e.domain }

// ProcessOperation validates op and, if valid, applies its batch. payee is
// whoever relays the operation; missingFunds is the prefund shortfall the
// caller computed. The sequence is fail-closed:
//
//  1. signature check, no state touched on failure
//  2. nonce check, no state touched on failure
//  3. nonce increment, fee settlement, batch execution; any failure here
//     reverts everything back to the pre-operation state
//
// On success it returns the number of batch calls applied and the ledger
// counter for the sender has advanced by exactly one.
func (e *Engine) ProcessOperation(op *operation.Operation, payee common.Address, missingFunds *big.Int) (int, error) {
	if err := op.Validate(); err != nil {
		return 0, newError(CodeInvalidSignature, fmt.Errorf("malformed operation: %w", err))
	}
	if err := VerifyOperationSignature(op, e.domain); err != nil {
		return 0, err
	}

	current := e.state.OperationNonce(op.Sender)
	if op.Nonce == nil || current.Cmp(op.Nonce) != 0 {
		return 0, newError(CodeInvalidNonce, fmt.Errorf("have %s, operation carries %s", current, op.Nonce))
	}

	calls, err := e.decodeBatch(op.CallData)
	if err != nil {
		return 0, err
	}

	snapshot := e.state.Snapshot()
	e.state.IncrementOperationNonce(op.Sender)

	if err := e.settleFee(op, payee, missingFunds); err != nil {
		e.state.RevertToSnapshot(snapshot)
		return 0, err
	}

	applied, err := e.ExecuteBatch(e.self, op.Sender, calls)
	if err != nil {
		e.state.RevertToSnapshot(snapshot)
		return 0, err
	}

	e.logger.Debug("operation settled", "sender", op.Sender.Hex(), "nonce", op.Nonce.String(), "calls", applied)
	return applied, nil
}

// decodeBatch turns the opaque callData into the call list. Empty callData
// is an empty batch (a pure fee/nonce operation).
func (e *Engine) decodeBatch(callData []byte) ([]operation.Call, error) {
	if len(callData) == 0 {
		return nil, nil
	}
	decoded, err := delegate.UnpackExecuteBatch(callData)
	if err != nil {
		return nil, newCallFailed(0, fmt.Errorf("undecodable batch calldata: %w", err))
	}
	calls := make([]operation.Call, len(decoded))
	for i, c := range decoded {
		calls[i] = operation.Call{Target: c.Target, Value: c.Value, Data: c.Data}
	}
	return calls, nil
}
