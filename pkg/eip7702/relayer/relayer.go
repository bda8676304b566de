package relayer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/cluster1900/eip7702-fulldemo-sub000/core/chainio/delegate"
	"github.com/cluster1900/eip7702-fulldemo-sub000/pkg/eip7702/operation"
	"github.com/cluster1900/eip7702-fulldemo-sub000/pkg/logger"
)

// Relayer owns the network-facing lifecycle of an operation: build, hash,
// have it signed, submit with bounded retries, and keep the delegation
// oracle's cache honest. All client state is constructed explicitly and
// passed in; there are no package-level singletons.
type Relayer struct {
	eth     *ethclient.Client
	rpc     *SettlementClient
	oracle  *Oracle
	chainID *big.Int
	policy  RetryPolicy
	logger  logger.Logger
}

func New(eth *ethclient.Client, rpc *SettlementClient, oracle *Oracle, chainID *big.Int, policy RetryPolicy, lgr logger.Logger) *Relayer {
	return &Relayer{
		eth:     eth,
		rpc:     rpc,
		oracle:  oracle,
		chainID: chainID,
		policy:  policy,
		logger:  logger.EnsureLogger(lgr),
	}
}

func (r *Relayer) Oracle() *Oracle    { return r.oracle }
func (r *Relayer) ChainID() *big.Int  { return new(big.Int).Set(r.chainID) }
func (r *Relayer) Eth() *ethclient.Client { return r.eth }

// Domain returns the signing domain for the configured settlement contract.
func (r *Relayer) Domain() operation.Domain {
	return operation.DefaultDomain(r.chainID, delegate.SettlementAddress())
}

// SignOperation fills op.Signature by signing the canonical hash directly.
// No EIP-191 prefix is applied; the settlement contract verifies the raw
// typed-data digest.
func SignOperation(key *ecdsa.PrivateKey, op *operation.Operation, domain operation.Domain) error {
	hash, err := op.SigningHash(domain)
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash.Bytes(), key)
	if err != nil {
		return fmt.Errorf("failed to sign operation: %w", err)
	}
	sig[64] += 27
	op.Signature = sig
	return nil
}

// SignAuthorization fills auth.Signature over the EIP-7702 authorization
// digest.
func SignAuthorization(key *ecdsa.PrivateKey, auth *operation.Authorization) error {
	hash, err := auth.SigningHash()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash.Bytes(), key)
	if err != nil {
		return fmt.Errorf("failed to sign authorization: %w", err)
	}
	sig[64] += 27
	auth.Signature = sig
	return nil
}

// Submit sends a signed operation (and its authorization companion, when
// delegation is being established) through the retry loop. On success it
// returns the acknowledged operation hash, and when auth was present it
// invalidates the oracle's cache for the sender so later builds see the new
// delegation state.
func (r *Relayer) Submit(ctx context.Context, op *operation.Operation, auth *operation.Authorization) (string, error) {
	if len(op.Signature) != operation.SignatureLength {
		return "", fmt.Errorf("operation is not signed")
	}
	if auth != nil && len(auth.Signature) != operation.SignatureLength {
		return "", fmt.Errorf("authorization companion is not signed")
	}

	var opHash string
	err := r.policy.Do(ctx, r.logger, func() error {
		var sendErr error
		opHash, sendErr = r.rpc.SendOperation(ctx, op, auth, delegate.SettlementAddress())
		return sendErr
	})
	if err != nil {
		return "", err
	}

	r.logger.Info("operation submitted", "sender", op.Sender.Hex(), "nonce", op.Nonce.String(), "opHash", opHash)

	if auth != nil {
		// First delegation-establishing operation for this sender: the
		// cached "needs authorization" answer is now wrong.
		r.oracle.Invalidate(op.Sender)
	}
	return opHash, nil
}

// WaitReceipt polls for the operation receipt until ctx expires. A nil
// receipt with nil error means the operation is still pending when ctx ends.
func (r *Relayer) WaitReceipt(ctx context.Context, opHash string) (*OperationReceipt, error) {
	receipt, err := r.rpc.GetOperationReceipt(ctx, opHash)
	if err != nil && !Retryable(err) {
		return nil, err
	}
	return receipt, nil
}
