package relayer

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/cluster1900/eip7702-fulldemo-sub000/core/chainio/delegate"
	"github.com/cluster1900/eip7702-fulldemo-sub000/pkg/eip1559"
	"github.com/cluster1900/eip7702-fulldemo-sub000/pkg/eip7702/operation"
)

var (
	// Gas limits used when the relay endpoint's estimation is unavailable.
	// Based on observed delegated-EOA batches: an ERC-20 transfer plus the
	// fee compensation transfer fits well under these.
	DefaultCallGasLimit         = big.NewInt(200000)
	DefaultVerificationGasLimit = big.NewInt(150000)
	DefaultPreVerificationGas   = big.NewInt(50000)

	// The signature content does not matter for estimation, only its length.
	dummySigForGasEstimation = crypto.Keccak256Hash(common.FromHex("0xdead123"))
)

// TransferParams are the high-level inputs a client supplies to move ERC-20
// value through its delegated account.
type TransferParams struct {
	Sender    common.Address
	Token     common.Address
	Recipient common.Address
	Amount    *big.Int

	// FeeToken/FeeAmount fill the fee compensation descriptor. A zero
	// FeeAmount leaves the descriptor empty (self-funded operation).
	FeeToken  common.Address
	FeeAmount *big.Int
}

func (p *TransferParams) validate() error {
	if p.Amount == nil || p.Amount.Sign() <= 0 {
		return fmt.Errorf("transfer amount must be positive")
	}
	if p.FeeAmount != nil && p.FeeAmount.Sign() < 0 {
		return fmt.Errorf("fee amount cannot be negative")
	}
	if p.FeeAmount != nil && p.FeeAmount.Sign() > 0 && p.FeeToken == (common.Address{}) {
		return fmt.Errorf("fee amount set without a fee token")
	}
	return nil
}

// BuildTransferOperation constructs a ready-to-sign operation for an ERC-20
// transfer batch, with the current operation nonce and live fee suggestions
// filled in. When the sender has no delegated code yet, an unsigned
// authorization companion for the settlement contract is returned alongside.
func (r *Relayer) BuildTransferOperation(ctx context.Context, p TransferParams) (*operation.Operation, *operation.Authorization, error) {
	if err := p.validate(); err != nil {
		return nil, nil, err
	}

	transferData, err := delegate.PackTokenTransfer(p.Recipient, p.Amount)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to pack transfer calldata: %w", err)
	}
	callData, err := delegate.PackExecuteBatch([]delegate.BatchCall{
		{Target: p.Token, Value: big.NewInt(0), Data: transferData},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to pack batch calldata: %w", err)
	}

	opNonce, err := r.oracle.OperationNonce(ctx, p.Sender)
	if err != nil {
		return nil, nil, err
	}

	maxFeePerGas, maxPriorityFeePerGas, err := eip1559.SuggestFee(r.eth)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to suggest gas fees: %w", err)
	}

	var feeCompensation []byte
	if p.FeeAmount != nil && p.FeeAmount.Sign() > 0 {
		feeCompensation = operation.EncodeFeeCompensation(p.FeeToken, p.FeeAmount)
	}

	op := &operation.Operation{
		Sender:               p.Sender,
		Nonce:                opNonce,
		CallData:             callData,
		VerificationGasLimit: DefaultVerificationGasLimit,
		CallGasLimit:         DefaultCallGasLimit,
		PreVerificationGas:   DefaultPreVerificationGas,
		MaxPriorityFeePerGas: maxPriorityFeePerGas,
		MaxFeePerGas:         maxFeePerGas,
		FeeCompensation:      feeCompensation,
	}

	// Let the relay endpoint tighten the defaults; estimation failures fall
	// back to them.
	op.Signature = dummySigForGasEstimation.Bytes()
	op.Signature = append(op.Signature, dummySigForGasEstimation.Bytes()...)
	op.Signature = append(op.Signature, 27)
	if estimate, estErr := r.rpc.EstimateOperationGas(ctx, op, delegate.SettlementAddress()); estErr == nil && estimate != nil {
		applyEstimate(op, estimate)
	} else if estErr != nil {
		r.logger.Debug("gas estimation failed, keeping defaults", "err", estErr.Error())
	}
	op.Signature = nil

	auth, err := r.maybeBuildAuthorization(ctx, p.Sender)
	if err != nil {
		return nil, nil, err
	}
	return op, auth, nil
}

// maybeBuildAuthorization returns the unsigned authorization companion when
// the sender still needs one, nil once delegation is established.
func (r *Relayer) maybeBuildAuthorization(ctx context.Context, sender common.Address) (*operation.Authorization, error) {
	delegated, err := r.oracle.HasDelegatedCode(ctx, sender)
	if err != nil {
		return nil, err
	}
	if delegated {
		return nil, nil
	}
	seqNonce, err := r.oracle.AccountSequenceNonce(ctx, sender)
	if err != nil {
		return nil, err
	}
	return &operation.Authorization{
		ChainID: r.chainID,
		Address: delegate.SettlementAddress(),
		Nonce:   seqNonce,
	}, nil
}

func applyEstimate(op *operation.Operation, estimate *GasEstimate) {
	if v, ok := new(big.Int).SetString(strip0x(estimate.VerificationGasLimit), 16); ok && v.Sign() > 0 {
		op.VerificationGasLimit = v
	}
	if v, ok := new(big.Int).SetString(strip0x(estimate.CallGasLimit), 16); ok && v.Sign() > 0 {
		op.CallGasLimit = v
	}
	if v, ok := new(big.Int).SetString(strip0x(estimate.PreVerificationGas), 16); ok && v.Sign() > 0 {
		op.PreVerificationGas = v
	}
}

func strip0x(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
