package operation

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Wire encoding of an operation, bit-exact between the relayer and the
// settlement side:
//
//	sender(20) || nonce(32 BE) || len(callData)(4 BE) || callData ||
//	packedGasLimits(32) || preVerificationGas(32 BE) || packedFees(32) ||
//	len(feeCompensation)(4 BE) || feeCompensation || signature(65)
//
// Integers wider than their field reject at encode time; nothing is silently
// truncated.

// MarshalBinary encodes the operation into its wire form.
func (op *Operation) MarshalBinary() ([]byte, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}
	if len(op.Signature) != SignatureLength {
		return nil, fmt.Errorf("cannot encode unsigned operation")
	}
	gasWord, err := op.PackedGasLimits()
	if err != nil {
		return nil, err
	}
	feeWord, err := op.PackedFees()
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 20+32+4+len(op.CallData)+32+32+32+4+len(op.FeeCompensation)+SignatureLength)
	out = append(out, op.Sender.Bytes()...)
	out = append(out, common.LeftPadBytes(bigOrZero(op.Nonce).Bytes(), 32)...)
	out = appendLengthPrefixed(out, op.CallData)
	out = append(out, gasWord...)
	out = append(out, common.LeftPadBytes(bigOrZero(op.PreVerificationGas).Bytes(), 32)...)
	out = append(out, feeWord...)
	out = appendLengthPrefixed(out, op.FeeCompensation)
	out = append(out, op.Signature...)
	return out, nil
}

// UnmarshalBinary decodes an operation from its wire form.
func (op *Operation) UnmarshalBinary(data []byte) error {
	r := &wireReader{buf: data}

	sender, err := r.fixed(20)
	if err != nil {
		return err
	}
	nonce, err := r.fixed(32)
	if err != nil {
		return err
	}
	callData, err := r.lengthPrefixed()
	if err != nil {
		return err
	}
	gasWord, err := r.fixed(32)
	if err != nil {
		return err
	}
	preVG, err := r.fixed(32)
	if err != nil {
		return err
	}
	feeWord, err := r.fixed(32)
	if err != nil {
		return err
	}
	feeComp, err := r.lengthPrefixed()
	if err != nil {
		return err
	}
	sig, err := r.fixed(SignatureLength)
	if err != nil {
		return err
	}
	if r.remaining() != 0 {
		return fmt.Errorf("trailing %d bytes after operation", r.remaining())
	}
	if n := len(feeComp); n != 0 && n != FeeCompensationLength {
		return fmt.Errorf("fee compensation descriptor must be empty or %d bytes, got %d", FeeCompensationLength, n)
	}

	op.Sender = common.BytesToAddress(sender)
	op.Nonce = new(big.Int).SetBytes(nonce)
	op.CallData = callData
	op.VerificationGasLimit, op.CallGasLimit = unpackUint128Pair(gasWord)
	op.PreVerificationGas = new(big.Int).SetBytes(preVG)
	op.MaxPriorityFeePerGas, op.MaxFeePerGas = unpackUint128Pair(feeWord)
	op.FeeCompensation = feeComp
	op.Signature = sig
	return nil
}

// MarshalBinary encodes an authorization companion:
// chainId(32 BE) || targetContract(20) || nonce(8 BE) || signature(65).
func (a *Authorization) MarshalBinary() ([]byte, error) {
	if len(a.Signature) != SignatureLength {
		return nil, fmt.Errorf("cannot encode unsigned authorization")
	}
	out := make([]byte, 0, 32+20+8+SignatureLength)
	out = append(out, common.LeftPadBytes(bigOrZero(a.ChainID).Bytes(), 32)...)
	out = append(out, a.Address.Bytes()...)
	out = binary.BigEndian.AppendUint64(out, a.Nonce)
	out = append(out, a.Signature...)
	return out, nil
}

// UnmarshalBinary decodes an authorization companion.
func (a *Authorization) UnmarshalBinary(data []byte) error {
	r := &wireReader{buf: data}
	chainID, err := r.fixed(32)
	if err != nil {
		return err
	}
	addr, err := r.fixed(20)
	if err != nil {
		return err
	}
	nonce, err := r.fixed(8)
	if err != nil {
		return err
	}
	sig, err := r.fixed(SignatureLength)
	if err != nil {
		return err
	}
	if r.remaining() != 0 {
		return fmt.Errorf("trailing %d bytes after authorization", r.remaining())
	}
	a.ChainID = new(big.Int).SetBytes(chainID)
	a.Address = common.BytesToAddress(addr)
	a.Nonce = binary.BigEndian.Uint64(nonce)
	a.Signature = sig
	return nil
}

func appendLengthPrefixed(dst, field []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(field)))
	return append(dst, field...)
}

type wireReader struct {
	buf []byte
	off int
}

func (r *wireReader) remaining() int { return len(r.buf) - r.off }

func (r *wireReader) fixed(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, fmt.Errorf("truncated field: need %d bytes, have %d", n, r.remaining())
	}
	out := make([]byte, n)
	copy(out, r.buf[r.off:r.off+n])
	r.off += n
	return out, nil
}

func (r *wireReader) lengthPrefixed() ([]byte, error) {
	lenBytes, err := r.fixed(4)
	if err != nil {
		return nil, err
	}
	return r.fixed(int(binary.BigEndian.Uint32(lenBytes)))
}
