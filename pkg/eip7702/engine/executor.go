package engine

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cluster1900/eip7702-fulldemo-sub000/pkg/eip7702/operation"
)

// ExecuteBatch applies calls in order on behalf of sender. If call i fails,
// every effect from calls 0..i is rolled back and the error carries i; there
// is no partial-success mode. Only the settlement boundary itself may invoke
// the executor: any other caller fails with OnlyAuthorizedCaller.
func (e *Engine) ExecuteBatch(caller, sender common.Address, calls []operation.Call) (int, error) {
	if caller != e.self {
		return 0, newError(CodeOnlyAuthorizedCaller, fmt.Errorf("caller %s is not the settlement contract %s", caller.Hex(), e.self.Hex()))
	}

	snapshot := e.state.Snapshot()
	for i, call := range calls {
		if err := e.state.Call(sender, call.Target, call.Value, call.Data); err != nil {
			e.state.RevertToSnapshot(snapshot)
			return 0, newCallFailed(i, err)
		}
	}
	return len(calls), nil
}
