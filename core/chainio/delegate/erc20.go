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

const erc20ABIJSON = `[
	{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"transferFrom","stateMutability":"nonpayable","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"holder","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]}
]`

var (
	erc20Once sync.Once
	erc20ABI  abi.ABI
	erc20Err  error
)

func loadERC20ABI() (abi.ABI, error) {
	erc20Once.Do(func() {
		erc20ABI, erc20Err = abi.JSON(strings.NewReader(erc20ABIJSON))
		if erc20Err != nil {
			erc20Err = fmt.Errorf("invalid erc20 ABI: %w", erc20Err)
		}
	})
	return erc20ABI, erc20Err
}

// PackTokenTransfer builds transfer(to, amount) calldata.
func PackTokenTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	parsed, err := loadERC20ABI()
	if err != nil {
		return nil, err
	}
	return parsed.Pack("transfer", to, amount)
}

// PackTokenApprove builds approve(spender, amount) calldata.
func PackTokenApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	parsed, err := loadERC20ABI()
	if err != nil {
		return nil, err
	}
	return parsed.Pack("approve", spender, amount)
}

// TokenBalance reads balanceOf(holder) on token.
func TokenBalance(ctx context.Context, caller ContractCaller, token, holder common.Address) (*big.Int, error) {
	parsed, err := loadERC20ABI()
	if err != nil {
		return nil, err
	}
	input, err := parsed.Pack("balanceOf", holder)
	if err != nil {
		return nil, err
	}
	out, err := caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("balanceOf call failed: %w", err)
	}
	values, err := parsed.Unpack("balanceOf", out)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(values[0], new(*big.Int)).(**big.Int), nil
}

// TokenDecimals reads decimals() on token.
func TokenDecimals(ctx context.Context, caller ContractCaller, token common.Address) (uint8, error) {
	parsed, err := loadERC20ABI()
	if err != nil {
		return 0, err
	}
	input, err := parsed.Pack("decimals")
	if err != nil {
		return 0, err
	}
	out, err := caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: input}, nil)
	if err != nil {
		return 0, fmt.Errorf("decimals call failed: %w", err)
	}
	values, err := parsed.Unpack("decimals", out)
	if err != nil {
		return 0, err
	}
	return *abi.ConvertType(values[0], new(uint8)).(*uint8), nil
}

// TokenSymbol reads symbol() on token.
func TokenSymbol(ctx context.Context, caller ContractCaller, token common.Address) (string, error) {
	parsed, err := loadERC20ABI()
	if err != nil {
		return "", err
	}
	input, err := parsed.Pack("symbol")
	if err != nil {
		return "", err
	}
	out, err := caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: input}, nil)
	if err != nil {
		return "", fmt.Errorf("symbol call failed: %w", err)
	}
	values, err := parsed.Unpack("symbol", out)
	if err != nil {
		return "", err
	}
	return *abi.ConvertType(values[0], new(string)).(*string), nil
}
