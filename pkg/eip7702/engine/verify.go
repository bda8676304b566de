package engine

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/cluster1900/eip7702-fulldemo-sub000/pkg/eip7702/operation"
)

// RecoverSigner validates a 65-byte r||s||v signature and recovers the
// signing address for hash. Malformed signatures (wrong length, recovery id
// outside {27, 28}, s above the curve's half order) are rejected before any
// recovery is attempted.
func RecoverSigner(hash common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != operation.SignatureLength {
		return common.Address{}, newError(CodeInvalidSignature, fmt.Errorf("signature length %d, want %d", len(sig), operation.SignatureLength))
	}
	v := sig[64]
	if v != 27 && v != 28 {
		return common.Address{}, newError(CodeInvalidSignature, fmt.Errorf("recovery id %d outside {27, 28}", v))
	}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	// homestead=true enforces the canonical low-s form, closing the
	// signature malleability hole.
	if !crypto.ValidateSignatureValues(v-27, r, s, true) {
		return common.Address{}, newError(CodeInvalidSignature, fmt.Errorf("signature values outside the canonical range"))
	}

	recoverable := make([]byte, operation.SignatureLength)
	copy(recoverable, sig)
	recoverable[64] = v - 27
	pub, err := crypto.SigToPub(hash.Bytes(), recoverable)
	if err != nil {
		return common.Address{}, newError(CodeInvalidSignature, fmt.Errorf("signature recovery failed: %w", err))
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyOperationSignature checks that op.Signature recovers to op.Sender
// over the canonical signing hash. Comparison is on the raw address bytes.
func VerifyOperationSignature(op *operation.Operation, domain operation.Domain) error {
	hash, err := op.SigningHash(domain)
	if err != nil {
		return newError(CodeInvalidSignature, err)
	}
	signer, err := RecoverSigner(hash, op.Signature)
	if err != nil {
		return err
	}
	if signer != op.Sender {
		return newError(CodeInvalidSignature, fmt.Errorf("recovered %s, sender claims %s", signer.Hex(), op.Sender.Hex()))
	}
	return nil
}
