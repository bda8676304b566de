package engine

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cluster1900/eip7702-fulldemo-sub000/pkg/eip7702/operation"
)

// settleFee compensates the relaying payee in ERC-20 value. No transfer
// happens when there is no shortfall or no descriptor. The descriptor
// carries no payee field: compensation goes to whoever submitted the
// operation, so the caller passes the payee in explicitly.
func (e *Engine) settleFee(op *operation.Operation, payee common.Address, missingFunds *big.Int) error {
	if missingFunds == nil || missingFunds.Sign() <= 0 {
		return nil
	}
	if len(op.FeeCompensation) == 0 {
		return nil
	}
	token, amount, err := operation.DecodeFeeCompensation(op.FeeCompensation)
	if err != nil {
		return newError(CodeTransferFailed, err)
	}
	if err := e.state.TokenTransferFrom(token, op.Sender, payee, amount); err != nil {
		return newError(CodeTransferFailed, fmt.Errorf("fee transfer of %s from %s: %w", amount, op.Sender.Hex(), err))
	}
	return nil
}
