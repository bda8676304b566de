// Package operation defines the signed, replay-protected operation object a
// delegated EOA submits to the settlement contract, together with its
// canonical hashing and wire encoding. The off-chain relayer and the
// settlement engine must agree on these bytes exactly.
package operation

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// SignatureLength is r(32) || s(32) || v(1) with v in {27, 28}.
	SignatureLength = 65

	// FeeCompensationLength is token(20) || amount(32).
	FeeCompensationLength = 52
)

var maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Operation is the smart-wallet style request a delegated EOA signs. Gas
// limits and fee rates are carried as two packed 128-bit words to match the
// settlement contract's storage layout.
type Operation struct {
	Sender               common.Address `json:"sender"`
	Nonce                *big.Int       `json:"nonce"`
	CallData             []byte         `json:"callData"`
	VerificationGasLimit *big.Int       `json:"verificationGasLimit"`
	CallGasLimit         *big.Int       `json:"callGasLimit"`
	PreVerificationGas   *big.Int       `json:"preVerificationGas"`
	MaxPriorityFeePerGas *big.Int       `json:"maxPriorityFeePerGas"`
	MaxFeePerGas         *big.Int       `json:"maxFeePerGas"`

	// FeeCompensation is empty, or token(20) || amount(32) instructing the
	// settlement contract to compensate the relaying payee in ERC-20 value.
	FeeCompensation []byte `json:"feeCompensation"`

	Signature []byte `json:"signature"`
}

// Call is one entry of the batch the settlement contract applies
// all-or-nothing on behalf of the sender.
type Call struct {
	Target common.Address `json:"target"`
	Value  *big.Int       `json:"value"`
	Data   []byte         `json:"data"`
}

// Validate checks the field ranges the hash and wire encodings rely on. It
// does not verify the signature; that is the engine's job.
func (op *Operation) Validate() error {
	for name, v := range map[string]*big.Int{
		"verificationGasLimit": op.VerificationGasLimit,
		"callGasLimit":         op.CallGasLimit,
		"maxPriorityFeePerGas": op.MaxPriorityFeePerGas,
		"maxFeePerGas":         op.MaxFeePerGas,
	} {
		if v != nil && v.Cmp(maxUint128) > 0 {
			return fmt.Errorf("%s exceeds 128 bits", name)
		}
		if v != nil && v.Sign() < 0 {
			return fmt.Errorf("%s is negative", name)
		}
	}
	if op.Nonce != nil && (op.Nonce.Sign() < 0 || op.Nonce.BitLen() > 256) {
		return fmt.Errorf("nonce out of range")
	}
	if op.PreVerificationGas != nil && (op.PreVerificationGas.Sign() < 0 || op.PreVerificationGas.BitLen() > 256) {
		return fmt.Errorf("preVerificationGas out of range")
	}
	if n := len(op.FeeCompensation); n != 0 && n != FeeCompensationLength {
		return fmt.Errorf("feeCompensation must be empty or %d bytes, got %d", FeeCompensationLength, n)
	}
	if n := len(op.Signature); n != 0 && n != SignatureLength {
		return fmt.Errorf("signature must be %d bytes, got %d", SignatureLength, n)
	}
	return nil
}

// PackedGasLimits returns verificationGasLimit(16B) || callGasLimit(16B),
// both big-endian.
func (op *Operation) PackedGasLimits() ([]byte, error) {
	return packUint128Pair(op.VerificationGasLimit, op.CallGasLimit)
}

// PackedFees returns maxPriorityFeePerGas(16B) || maxFeePerGas(16B).
func (op *Operation) PackedFees() ([]byte, error) {
	return packUint128Pair(op.MaxPriorityFeePerGas, op.MaxFeePerGas)
}

func packUint128Pair(hi, lo *big.Int) ([]byte, error) {
	word := make([]byte, 32)
	if err := fillUint128(word[:16], hi); err != nil {
		return nil, err
	}
	if err := fillUint128(word[16:], lo); err != nil {
		return nil, err
	}
	return word, nil
}

func fillUint128(dst []byte, v *big.Int) error {
	if v == nil {
		return nil
	}
	if v.Sign() < 0 || v.Cmp(maxUint128) > 0 {
		return fmt.Errorf("value %s does not fit in 128 bits", v.String())
	}
	v.FillBytes(dst)
	return nil
}

func unpackUint128Pair(word []byte) (*big.Int, *big.Int) {
	return new(big.Int).SetBytes(word[:16]), new(big.Int).SetBytes(word[16:32])
}

// EncodeFeeCompensation builds the token || amount descriptor.
func EncodeFeeCompensation(token common.Address, amount *big.Int) []byte {
	out := make([]byte, FeeCompensationLength)
	copy(out, token.Bytes())
	amount.FillBytes(out[20:])
	return out
}

// DecodeFeeCompensation splits a non-empty descriptor back into its parts.
func DecodeFeeCompensation(desc []byte) (common.Address, *big.Int, error) {
	if len(desc) != FeeCompensationLength {
		return common.Address{}, nil, fmt.Errorf("fee compensation descriptor must be %d bytes, got %d", FeeCompensationLength, len(desc))
	}
	return common.BytesToAddress(desc[:20]), new(big.Int).SetBytes(desc[20:]), nil
}
