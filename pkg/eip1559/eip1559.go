// Package eip1559 suggests the fee words an operation carries. The packed
// fee field is two uint128 halves (maxPriorityFeePerGas, maxFeePerGas), and
// the builder fills both from here before hashing.
package eip1559

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"
)

// SuggestFee returns (maxFeePerGas, maxPriorityFeePerGas) for the next
// block. Operations are hashed and signed over their fee words, so a
// resubmission with a fresher suggestion is a different operation; the
// buffers below exist to keep the first signature viable across a few
// blocks of base-fee drift.
func SuggestFee(client *ethclient.Client) (*big.Int, *big.Int, error) {
	tipCap, err := client.SuggestGasTipCap(context.Background())
	if err != nil {
		return nil, nil, err
	}

	header, err := client.HeaderByNumber(context.Background(), nil)
	if err != nil {
		return nil, nil, err
	}

	// 13% buffer on the suggested tip
	buffer := new(big.Int).Div(tipCap, big.NewInt(100))
	buffer = new(big.Int).Mul(buffer, big.NewInt(13))
	maxPriorityFeePerGas := new(big.Int).Add(tipCap, buffer)

	// Floor the tip at 2 gwei so the relaying payee is compensated even on
	// quiet chains that suggest near-zero.
	minTip := big.NewInt(2_000_000_000) // 2 gwei
	if maxPriorityFeePerGas.Cmp(minTip) < 0 {
		maxPriorityFeePerGas = minTip
	}

	var maxFeePerGas *big.Int

	baseFee := header.BaseFee
	if baseFee != nil {
		// maxFeePerGas must cover baseFee + tip. Doubling the base fee
		// keeps the signed operation includable through a 100% base-fee
		// rise between signing and settlement.
		maxFeePerGas = new(big.Int).Add(
			new(big.Int).Mul(baseFee, big.NewInt(2)),
			maxPriorityFeePerGas,
		)

		// 20 gwei floor for chains whose base fee swings hard
		minMaxFee := big.NewInt(20_000_000_000) // 20 gwei
		if maxFeePerGas.Cmp(minMaxFee) < 0 {
			maxFeePerGas = minMaxFee
		}
	} else {
		// pre-EIP-1559 chain, no base fee to cover
		maxFeePerGas = new(big.Int).Set(maxPriorityFeePerGas)
	}

	return maxFeePerGas, maxPriorityFeePerGas, nil
}
