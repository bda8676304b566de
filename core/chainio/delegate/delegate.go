// Package delegate packs and unpacks calldata for the settlement delegate
// contract, and reads its per-account operation nonce.
package delegate

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const delegateABIJSON = `[
	{"type":"function","name":"executeBatch","stateMutability":"nonpayable","inputs":[{"name":"calls","type":"tuple[]","components":[{"name":"target","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"}]}],"outputs":[{"name":"applied","type":"uint256"}]},
	{"type":"function","name":"getNonce","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

var (
	buildOnce   sync.Once
	delegateABI abi.ABI
	buildErr    error
)

// abiCall mirrors the executeBatch tuple layout for abi.ConvertType.
type abiCall struct {
	Target common.Address
	Value  *big.Int
	Data   []byte
}

func loadABI() (abi.ABI, error) {
	buildOnce.Do(func() {
		delegateABI, buildErr = abi.JSON(strings.NewReader(delegateABIJSON))
		if buildErr != nil {
			buildErr = fmt.Errorf("invalid delegate ABI: %w", buildErr)
		}
	})
	return delegateABI, buildErr
}

// BatchCall is the shape shared with pkg/eip7702/operation.Call; it is
// redeclared here so this package stays a leaf under core/chainio.
type BatchCall struct {
	Target common.Address
	Value  *big.Int
	Data   []byte
}

// PackExecuteBatch builds executeBatch calldata from an ordered call list.
func PackExecuteBatch(calls []BatchCall) ([]byte, error) {
	parsed, err := loadABI()
	if err != nil {
		return nil, err
	}
	tuples := make([]abiCall, len(calls))
	for i, c := range calls {
		value := c.Value
		if value == nil {
			value = big.NewInt(0)
		}
		data := c.Data
		if data == nil {
			// go-ethereum's encoder mishandles nil byte slices; always hand
			// it a zero-length one.
			data = make([]byte, 0)
		}
		tuples[i] = abiCall{Target: c.Target, Value: value, Data: data}
	}
	return parsed.Pack("executeBatch", tuples)
}

// UnpackExecuteBatch decodes executeBatch calldata back into its call list.
func UnpackExecuteBatch(callData []byte) ([]BatchCall, error) {
	parsed, err := loadABI()
	if err != nil {
		return nil, err
	}
	method := parsed.Methods["executeBatch"]
	if len(callData) < 4 {
		return nil, fmt.Errorf("calldata too short: %d bytes", len(callData))
	}
	if string(callData[:4]) != string(method.ID) {
		return nil, fmt.Errorf("calldata selector %x is not executeBatch", callData[:4])
	}
	values, err := method.Inputs.Unpack(callData[4:])
	if err != nil {
		return nil, fmt.Errorf("failed to unpack executeBatch calldata: %w", err)
	}
	raw := *abi.ConvertType(values[0], new([]abiCall)).(*[]abiCall)
	calls := make([]BatchCall, len(raw))
	for i, c := range raw {
		calls[i] = BatchCall{Target: c.Target, Value: c.Value, Data: c.Data}
	}
	return calls, nil
}

// ContractCaller is the slice of ethclient this package needs.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// OperationNonce reads the settlement contract's replay counter for account.
func OperationNonce(ctx context.Context, caller ContractCaller, account common.Address) (*big.Int, error) {
	parsed, err := loadABI()
	if err != nil {
		return nil, err
	}
	input, err := parsed.Pack("getNonce", account)
	if err != nil {
		return nil, err
	}
	settlement := SettlementAddress()
	out, err := caller.CallContract(ctx, ethereum.CallMsg{To: &settlement, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("getNonce call failed: %w", err)
	}
	values, err := parsed.Unpack("getNonce", out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack getNonce result: %w", err)
	}
	return *abi.ConvertType(values[0], new(*big.Int)).(**big.Int), nil
}
