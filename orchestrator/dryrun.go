package orchestrator

import (
	"errors"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"

	"github.com/cluster1900/eip7702-fulldemo-sub000/core/chainio/delegate"
	"github.com/cluster1900/eip7702-fulldemo-sub000/pkg/eip7702/engine"
	"github.com/cluster1900/eip7702-fulldemo-sub000/pkg/eip7702/ledger"
	"github.com/cluster1900/eip7702-fulldemo-sub000/pkg/eip7702/operation"
)

// DryRunResult reports the settlement outcome of a replayed operation.
type DryRunResult struct {
	Applied bool   `json:"applied"`
	Calls   int    `json:"calls"`
	Code    string `json:"code,omitempty"`
	// Index is the failing batch position for CallFailed, -1 otherwise.
	Index   int    `json:"index"`
	Message string `json:"message,omitempty"`
}

// handleDryRun executes an operation against a seeded in-memory ledger with
// the real settlement semantics: signature, nonce, fee, and the atomic
// batch. Nothing touches the chain.
func (orch *Orchestrator) handleDryRun(c echo.Context) error {
	req := &DryRunRequest{}
	if err := c.Bind(req); err != nil {
		return badRequest("malformed request body")
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	op, err := req.Operation.toOperation()
	if err != nil {
		return badRequest(err.Error())
	}

	state, err := orch.seedState(req, op)
	if err != nil {
		return badRequest(err.Error())
	}

	payee := orch.config.RelayerAddress
	if req.Payee != "" {
		payee = common.HexToAddress(req.Payee)
	}

	missingFunds := big.NewInt(0)
	if req.MissingFunds != "" {
		missingFunds, err = parseHexBig("missing_funds", req.MissingFunds)
		if err != nil {
			return badRequest(err.Error())
		}
	}

	settlement := delegate.SettlementAddress()
	eng := engine.New(settlement, orch.relayer.Domain(), state, orch.logger)

	applied, procErr := eng.ProcessOperation(op, payee, missingFunds)

	result := DryRunResult{
		Applied: procErr == nil,
		Calls:   applied,
		Index:   -1,
	}
	if procErr != nil {
		var engErr *engine.Error
		if errors.As(procErr, &engErr) {
			result.Code = string(engErr.Code)
			result.Message = engErr.Message()
			if engErr.Code == engine.CodeCallFailed {
				result.Index = engErr.Index
			}
		} else {
			result.Code = "INTERNAL"
			result.Message = procErr.Error()
		}
	}

	return c.JSON(http.StatusOK, &HttpJsonResp[DryRunResult]{Data: result})
}

// seedState builds the in-memory ledger the dry run executes against. The
// sender gets delegated code and its operation nonce is seeded to match
// the replayed operation, so the run exercises fee and batch semantics
// rather than failing on bookkeeping the caller did not seed.
func (orch *Orchestrator) seedState(req *DryRunRequest, op *operation.Operation) (*ledger.MemState, error) {
	settlement := delegate.SettlementAddress()
	state := ledger.NewMemState(settlement)

	state.SetCode(op.Sender, operation.DelegationCode(settlement))
	if op.Nonce != nil {
		state.SetOperationNonce(op.Sender, op.Nonce)
	}

	for _, seed := range req.TokenBalances {
		amount, err := parseHexBig("token_balances.amount", seed.Amount)
		if err != nil {
			return nil, err
		}
		state.SetTokenBalance(common.HexToAddress(seed.Token), common.HexToAddress(seed.Holder), amount)
	}

	for _, seed := range req.Approvals {
		amount, err := parseHexBig("approvals.amount", seed.Amount)
		if err != nil {
			return nil, err
		}
		state.Approve(
			common.HexToAddress(seed.Token),
			common.HexToAddress(seed.Owner),
			common.HexToAddress(seed.Spender),
			amount,
		)
	}

	for _, target := range req.FailTargets {
		state.FailCallsTo(common.HexToAddress(target))
	}

	return state, nil
}
