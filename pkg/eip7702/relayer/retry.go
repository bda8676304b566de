package relayer

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/cluster1900/eip7702-fulldemo-sub000/pkg/logger"
)

// FailureKind classifies a submission failure. The retry loop consults the
// static table below and never inspects error message text.
type FailureKind int

const (
	// KindTransient covers transport-level failures: timeouts, connection
	// resets, 5xx responses. These are worth retrying.
	KindTransient FailureKind = iota
	KindInvalidNonce
	KindInsufficientFunds
	KindExecutionReverted
	KindInvalidSignature
	// KindTerminal is any other definitive rejection by the relay endpoint.
	KindTerminal
)

func (k FailureKind) String() string {
	switch k {
	case KindTransient:
		return "TransientNetworkFailure"
	case KindInvalidNonce:
		return "InvalidNonce"
	case KindInsufficientFunds:
		return "InsufficientFunds"
	case KindExecutionReverted:
		return "ExecutionReverted"
	case KindInvalidSignature:
		return "InvalidSignature"
	}
	return "TerminalSubmissionFailure"
}

// Relay endpoint JSON-RPC error codes. These are part of the relay protocol.
const (
	rpcCodeInvalidNonce      = -38601
	rpcCodeInsufficientFunds = -38602
	rpcCodeExecutionReverted = -38603
	rpcCodeInvalidSignature  = -38604
)

var rpcCodeKinds = map[int]FailureKind{
	rpcCodeInvalidNonce:      KindInvalidNonce,
	rpcCodeInsufficientFunds: KindInsufficientFunds,
	rpcCodeExecutionReverted: KindExecutionReverted,
	rpcCodeInvalidSignature:  KindInvalidSignature,
}

// retryableKinds is the decision table: kind -> retry?
var retryableKinds = map[FailureKind]bool{
	KindTransient:         true,
	KindInvalidNonce:      false,
	KindInsufficientFunds: false,
	KindExecutionReverted: false,
	KindInvalidSignature:  false,
	KindTerminal:          false,
}

// Classify maps a submission error onto a FailureKind. A structured JSON-RPC
// error code is definitive; anything without one is a transport failure.
func Classify(err error) FailureKind {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		if kind, ok := rpcCodeKinds[rpcErr.ErrorCode()]; ok {
			return kind
		}
		return KindTerminal
	}
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 {
		return KindTerminal
	}
	return KindTransient
}

// Retryable reports the decision table's verdict for err.
func Retryable(err error) bool {
	return retryableKinds[Classify(err)]
}

// RetryPolicy bounds the resubmission loop: bounded exponential backoff,
// transient failures only.
type RetryPolicy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int

	// OnRetry, when set, observes every attempt that is about to be
	// retried, with the failure kind that triggered it.
	OnRetry func(kind FailureKind)
}

// DefaultRetryPolicy starts at 1s, doubles, caps at 10s, and gives up after
// 3 attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialDelay: 1 * time.Second,
		MaxDelay:     10 * time.Second,
		MaxAttempts:  3,
	}
}

// Do runs fn up to MaxAttempts times, sleeping between attempts. Terminal
// failures surface immediately without another attempt.
func (p RetryPolicy) Do(ctx context.Context, lgr logger.Logger, fn func() error) error {
	lgr = logger.EnsureLogger(lgr)
	delay := p.InitialDelay

	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		kind := Classify(err)
		if !retryableKinds[kind] {
			lgr.Debug("submission failed terminally", "kind", kind.String(), "attempt", attempt)
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(kind)
		}
		lgr.Debug("transient submission failure, backing off", "attempt", attempt, "delay", delay.String())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return err
}
