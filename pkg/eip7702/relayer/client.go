// Package relayer builds, signs, and submits operations on behalf of a
// delegated EOA, and answers delegation-state questions with a bounded
// cache. It is the off-chain half of the settlement engine; hashing and
// verification are shared with pkg/eip7702/engine so both sides agree.
package relayer

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/cluster1900/eip7702-fulldemo-sub000/pkg/eip7702/operation"
)

// SettlementClient talks to the relay RPC endpoint that accepts signed
// operations for inclusion. The endpoint is stateless.
type SettlementClient struct {
	client *rpc.Client
	url    string
}

// NewSettlementClient connects to the relay RPC endpoint. DialHTTP is used
// for compatibility with plain HTTP endpoints; WebSocket URLs work too.
func NewSettlementClient(url string) (*SettlementClient, error) {
	c, err := rpc.DialHTTP(url)
	if err != nil {
		return nil, fmt.Errorf("error creating settlement client: %w", err)
	}
	return &SettlementClient{client: c, url: url}, nil
}

func (sc *SettlementClient) Close() {
	sc.client.Close()
}

// rpcOperation is the hex-string wire form of an operation on the RPC
// channel.
type rpcOperation struct {
	Sender               string `json:"sender"`
	Nonce                string `json:"nonce"`
	CallData             string `json:"callData"`
	VerificationGasLimit string `json:"verificationGasLimit"`
	CallGasLimit         string `json:"callGasLimit"`
	PreVerificationGas   string `json:"preVerificationGas"`
	MaxPriorityFeePerGas string `json:"maxPriorityFeePerGas"`
	MaxFeePerGas         string `json:"maxFeePerGas"`
	FeeCompensation      string `json:"feeCompensation"`
	Signature            string `json:"signature"`
}

type rpcAuthorization struct {
	ChainID   string `json:"chainId"`
	Address   string `json:"address"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}

func toRPCOperation(op *operation.Operation) rpcOperation {
	return rpcOperation{
		Sender:               op.Sender.Hex(),
		Nonce:                fmt.Sprintf("0x%x", op.Nonce),
		CallData:             fmt.Sprintf("0x%x", op.CallData),
		VerificationGasLimit: fmt.Sprintf("0x%x", op.VerificationGasLimit),
		CallGasLimit:         fmt.Sprintf("0x%x", op.CallGasLimit),
		PreVerificationGas:   fmt.Sprintf("0x%x", op.PreVerificationGas),
		MaxPriorityFeePerGas: fmt.Sprintf("0x%x", op.MaxPriorityFeePerGas),
		MaxFeePerGas:         fmt.Sprintf("0x%x", op.MaxFeePerGas),
		FeeCompensation:      fmt.Sprintf("0x%x", op.FeeCompensation),
		Signature:            fmt.Sprintf("0x%x", op.Signature),
	}
}

func toRPCAuthorization(auth *operation.Authorization) *rpcAuthorization {
	if auth == nil {
		return nil
	}
	return &rpcAuthorization{
		ChainID:   fmt.Sprintf("0x%x", auth.ChainID),
		Address:   auth.Address.Hex(),
		Nonce:     fmt.Sprintf("0x%x", auth.Nonce),
		Signature: fmt.Sprintf("0x%x", auth.Signature),
	}
}

// SendOperation submits a signed operation, with its authorization companion
// when the sender has no delegated code yet. It returns the operation hash
// the relay endpoint acknowledged.
func (sc *SettlementClient) SendOperation(
	ctx context.Context,
	op *operation.Operation,
	auth *operation.Authorization,
	settlement common.Address,
) (string, error) {
	var opHash string
	err := sc.client.CallContext(ctx, &opHash, "settle_sendOperation",
		toRPCOperation(op), toRPCAuthorization(auth), settlement.Hex())
	return opHash, err
}

// GasEstimate is the relay endpoint's answer to settle_estimateOperationGas.
type GasEstimate struct {
	VerificationGasLimit string `json:"verificationGasLimit"`
	CallGasLimit         string `json:"callGasLimit"`
	PreVerificationGas   string `json:"preVerificationGas"`
}

// EstimateOperationGas asks the relay endpoint for gas limits. The signature
// field is only length-checked by the endpoint, so a dummy one works.
func (sc *SettlementClient) EstimateOperationGas(
	ctx context.Context,
	op *operation.Operation,
	settlement common.Address,
) (*GasEstimate, error) {
	var result GasEstimate
	err := sc.client.CallContext(ctx, &result, "settle_estimateOperationGas",
		toRPCOperation(op), settlement.Hex())
	if err != nil {
		return nil, fmt.Errorf("settle_estimateOperationGas failed: %w", err)
	}
	return &result, nil
}

// OperationReceipt reports the settled status of a submitted operation.
type OperationReceipt struct {
	OperationHash string `json:"operationHash"`
	TxHash        string `json:"transactionHash"`
	BlockNumber   string `json:"blockNumber"`
	Success       bool   `json:"success"`
}

// GetOperationReceipt fetches the receipt for a previously submitted
// operation; a nil receipt with nil error means still pending.
func (sc *SettlementClient) GetOperationReceipt(ctx context.Context, opHash string) (*OperationReceipt, error) {
	var receipt *OperationReceipt
	err := sc.client.CallContext(ctx, &receipt, "settle_getOperationReceipt", opHash)
	return receipt, err
}
