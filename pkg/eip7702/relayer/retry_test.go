package relayer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRPCError implements rpc.Error the way the relay endpoint's structured
// rejections arrive.
type fakeRPCError struct {
	code int
	msg  string
}

func (e *fakeRPCError) Error() string  { return e.msg }
func (e *fakeRPCError) ErrorCode() int { return e.code }

func tinyPolicy() RetryPolicy {
	return RetryPolicy{
		InitialDelay: time.Millisecond,
		MaxDelay:     4 * time.Millisecond,
		MaxAttempts:  3,
	}
}

func TestClassifyTable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"invalid nonce code", &fakeRPCError{code: -38601}, KindInvalidNonce},
		{"insufficient funds code", &fakeRPCError{code: -38602}, KindInsufficientFunds},
		{"execution reverted code", &fakeRPCError{code: -38603}, KindExecutionReverted},
		{"invalid signature code", &fakeRPCError{code: -38604}, KindInvalidSignature},
		{"unknown structured code", &fakeRPCError{code: -32000}, KindTerminal},
		{"wrapped structured code", fmt.Errorf("send: %w", &fakeRPCError{code: -38601}), KindInvalidNonce},
		{"http 400", rpc.HTTPError{StatusCode: 400}, KindTerminal},
		{"http 503", rpc.HTTPError{StatusCode: 503}, KindTransient},
		{"plain transport error", errors.New("connection reset by peer"), KindTransient},
		{"context deadline", context.DeadlineExceeded, KindTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

// The message text must never influence classification: an error whose text
// mimics a nonce rejection but carries no structured code stays transient.
func TestClassifyIgnoresMessageText(t *testing.T) {
	err := errors.New("invalid nonce")
	assert.Equal(t, KindTransient, Classify(err))
	assert.True(t, Retryable(err))
}

func TestRetryableOnlyForTransient(t *testing.T) {
	assert.True(t, Retryable(errors.New("timeout")))
	assert.False(t, Retryable(&fakeRPCError{code: -38601}))
	assert.False(t, Retryable(&fakeRPCError{code: -38602}))
	assert.False(t, Retryable(&fakeRPCError{code: -38603}))
	assert.False(t, Retryable(&fakeRPCError{code: -38604}))
	assert.False(t, Retryable(&fakeRPCError{code: -1}))
}

func TestDoStopsImmediatelyOnTerminalFailure(t *testing.T) {
	calls := 0
	err := tinyPolicy().Do(context.Background(), nil, func() error {
		calls++
		return &fakeRPCError{code: -38604, msg: "bad signature"}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "terminal failures must not be retried")
}

func TestDoRetriesTransientUpToMaxAttempts(t *testing.T) {
	calls := 0
	err := tinyPolicy().Do(context.Background(), nil, func() error {
		calls++
		return errors.New("connection refused")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoReportsEachRetryToObserver(t *testing.T) {
	var observed []FailureKind
	policy := tinyPolicy()
	policy.OnRetry = func(kind FailureKind) {
		observed = append(observed, kind)
	}

	calls := 0
	err := policy.Do(context.Background(), nil, func() error {
		calls++
		return errors.New("connection refused")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	// two backoffs happen between three attempts
	assert.Equal(t, []FailureKind{KindTransient, KindTransient}, observed)
}

func TestDoObserverSilentOnTerminalFailure(t *testing.T) {
	observed := 0
	policy := tinyPolicy()
	policy.OnRetry = func(FailureKind) { observed++ }

	err := policy.Do(context.Background(), nil, func() error {
		return &fakeRPCError{code: -38601, msg: "invalid nonce"}
	})

	require.Error(t, err)
	assert.Zero(t, observed)
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := tinyPolicy().Do(context.Background(), nil, func() error {
		calls++
		if calls < 3 {
			return errors.New("temporarily unavailable")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	policy := RetryPolicy{
		InitialDelay: time.Hour, // the test must not actually wait
		MaxDelay:     time.Hour,
		MaxAttempts:  3,
	}

	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := policy.Do(ctx, nil, func() error {
		calls++
		return errors.New("transient")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDefaultRetryPolicyBounds(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, time.Second, p.InitialDelay)
	assert.Equal(t, 10*time.Second, p.MaxDelay)
	assert.Equal(t, 3, p.MaxAttempts)
}
