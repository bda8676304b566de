package orchestrator

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cluster1900/eip7702-fulldemo-sub000/model"
)

const receiptPollTimeout = 10 * time.Second

// sweepPendingSubmissions polls the relay endpoint for receipts of every
// pending submission and finalizes the ones that resolved. A submission with
// no receipt yet simply stays pending for the next sweep.
func (orch *Orchestrator) sweepPendingSubmissions(ctx context.Context) {
	orch.metrics.IncNumSweeperLoop()

	pending, err := orch.submissions.ListPending()
	if err != nil {
		orch.logger.Errorf("sweeper cannot list pending submissions: %v", err)
		return
	}

	for _, sub := range pending {
		pollCtx, cancel := context.WithTimeout(ctx, receiptPollTimeout)
		receipt, err := orch.relayer.WaitReceipt(pollCtx, sub.OperationHash)
		cancel()

		if err != nil {
			orch.logger.Warnf("receipt lookup failed for %s: %v", sub.OperationHash, err)
			continue
		}
		if receipt == nil {
			continue
		}

		status := model.SubmissionConfirmed
		if !receipt.Success {
			status = model.SubmissionFailed
		}
		sub.Complete(status, receipt.TxHash, parseHexBlockNumber(receipt.BlockNumber))

		if err := orch.submissions.Update(sub); err != nil {
			orch.logger.Errorf("cannot finalize submission %s: %v", sub.ID, err)
			continue
		}

		orch.metrics.IncNumOperationsFinalized(string(status))
		orch.logger.Info("submission finalized",
			"id", sub.ID,
			"sender", sub.Sender,
			"status", string(status),
			"txHash", receipt.TxHash,
		)
	}
}

func parseHexBlockNumber(s string) uint64 {
	n, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
	if err != nil {
		return 0
	}
	return n
}
