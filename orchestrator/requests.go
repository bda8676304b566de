package orchestrator

import (
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/cluster1900/eip7702-fulldemo-sub000/pkg/eip7702/operation"
)

type HttpJsonResp[T any] struct {
	Data T `json:"data"`
}

// ErrorResp is the stable machine-readable error pair every endpoint
// returns. Clients branch on Code, never on Message.
type ErrorResp struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, ErrorResp{
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
	}
	return nil
}

func NewCustomValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

// BuildTransferRequest asks the builder to assemble an unsigned operation
// moving ERC-20 value. Amounts are human-denominated decimal strings and get
// scaled by the token's on-chain decimals.
type BuildTransferRequest struct {
	Sender    string `json:"sender" validate:"required,eth_addr"`
	Token     string `json:"token" validate:"required,eth_addr"`
	Recipient string `json:"recipient" validate:"required,eth_addr"`
	Amount    string `json:"amount" validate:"required"`

	FeeToken  string `json:"fee_token,omitempty" validate:"omitempty,eth_addr"`
	FeeAmount string `json:"fee_amount,omitempty"`
}

// JsonOperation is the hex-string HTTP form of an operation, mirroring the
// relay RPC wire form so clients see one encoding everywhere.
type JsonOperation struct {
	Sender               string `json:"sender" validate:"required,eth_addr"`
	Nonce                string `json:"nonce" validate:"required"`
	CallData             string `json:"callData"`
	VerificationGasLimit string `json:"verificationGasLimit"`
	CallGasLimit         string `json:"callGasLimit"`
	PreVerificationGas   string `json:"preVerificationGas"`
	MaxPriorityFeePerGas string `json:"maxPriorityFeePerGas"`
	MaxFeePerGas         string `json:"maxFeePerGas"`
	FeeCompensation      string `json:"feeCompensation"`
	Signature            string `json:"signature"`
}

type JsonAuthorization struct {
	ChainID   string `json:"chainId" validate:"required"`
	Address   string `json:"address" validate:"required,eth_addr"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}

// SubmitRequest hands a signed operation to the relay endpoint. An empty
// signature is only accepted when the orchestrator holds a sender key and
// can sign itself.
type SubmitRequest struct {
	Operation     JsonOperation      `json:"operation" validate:"required"`
	Authorization *JsonAuthorization `json:"authorization,omitempty"`
}

// DryRunRequest replays an operation against a seeded in-memory ledger so
// clients can see the settlement outcome without touching the chain.
type DryRunRequest struct {
	Operation     JsonOperation  `json:"operation" validate:"required"`
	TokenBalances []BalanceSeed  `json:"token_balances,omitempty"`
	Approvals     []ApprovalSeed `json:"approvals,omitempty"`
	Payee         string         `json:"payee,omitempty" validate:"omitempty,eth_addr"`
	MissingFunds  string         `json:"missing_funds,omitempty"`
	FailTargets   []string       `json:"fail_targets,omitempty" validate:"omitempty,dive,eth_addr"`
}

type BalanceSeed struct {
	Token  string `json:"token" validate:"required,eth_addr"`
	Holder string `json:"holder" validate:"required,eth_addr"`
	Amount string `json:"amount" validate:"required"`
}

type ApprovalSeed struct {
	Token   string `json:"token" validate:"required,eth_addr"`
	Owner   string `json:"owner" validate:"required,eth_addr"`
	Spender string `json:"spender" validate:"required,eth_addr"`
	Amount  string `json:"amount" validate:"required"`
}

func toJsonOperation(op *operation.Operation) JsonOperation {
	return JsonOperation{
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

func toJsonAuthorization(auth *operation.Authorization) *JsonAuthorization {
	if auth == nil {
		return nil
	}
	return &JsonAuthorization{
		ChainID:   fmt.Sprintf("0x%x", auth.ChainID),
		Address:   auth.Address.Hex(),
		Nonce:     fmt.Sprintf("0x%x", auth.Nonce),
		Signature: fmt.Sprintf("0x%x", auth.Signature),
	}
}

func (j *JsonOperation) toOperation() (*operation.Operation, error) {
	op := &operation.Operation{
		Sender: common.HexToAddress(j.Sender),
	}

	var err error
	if op.Nonce, err = parseHexBig("nonce", j.Nonce); err != nil {
		return nil, err
	}
	if op.VerificationGasLimit, err = parseHexBig("verificationGasLimit", j.VerificationGasLimit); err != nil {
		return nil, err
	}
	if op.CallGasLimit, err = parseHexBig("callGasLimit", j.CallGasLimit); err != nil {
		return nil, err
	}
	if op.PreVerificationGas, err = parseHexBig("preVerificationGas", j.PreVerificationGas); err != nil {
		return nil, err
	}
	if op.MaxPriorityFeePerGas, err = parseHexBig("maxPriorityFeePerGas", j.MaxPriorityFeePerGas); err != nil {
		return nil, err
	}
	if op.MaxFeePerGas, err = parseHexBig("maxFeePerGas", j.MaxFeePerGas); err != nil {
		return nil, err
	}
	if op.CallData, err = parseHexBytes("callData", j.CallData); err != nil {
		return nil, err
	}
	if op.FeeCompensation, err = parseHexBytes("feeCompensation", j.FeeCompensation); err != nil {
		return nil, err
	}
	if op.Signature, err = parseHexBytes("signature", j.Signature); err != nil {
		return nil, err
	}

	if err := op.Validate(); err != nil {
		return nil, err
	}
	return op, nil
}

func (j *JsonAuthorization) toAuthorization() (*operation.Authorization, error) {
	if j == nil {
		return nil, nil
	}
	auth := &operation.Authorization{
		Address: common.HexToAddress(j.Address),
	}
	chainID, err := parseHexBig("chainId", j.ChainID)
	if err != nil {
		return nil, err
	}
	auth.ChainID = chainID

	nonce, err := parseHexBig("nonce", j.Nonce)
	if err != nil {
		return nil, err
	}
	if nonce != nil {
		if !nonce.IsUint64() {
			return nil, fmt.Errorf("authorization nonce out of range")
		}
		auth.Nonce = nonce.Uint64()
	}

	if auth.Signature, err = parseHexBytes("signature", j.Signature); err != nil {
		return nil, err
	}
	return auth, nil
}

func parseHexBig(field, s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(strip0x(s), 16)
	if !ok {
		return nil, fmt.Errorf("%s is not a hex quantity: %q", field, s)
	}
	return v, nil
}

func parseHexBytes(field, s string) ([]byte, error) {
	if s == "" || s == "0x" {
		return nil, nil
	}
	data, err := hexutil.Decode("0x" + strip0x(s))
	if err != nil {
		return nil, fmt.Errorf("%s is not hex data %q: %w", field, s, err)
	}
	return data, nil
}

func strip0x(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
