package operation

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// authMagic is the EIP-7702 authorization signing prefix:
// keccak256(0x05 || rlp([chainId, address, nonce])).
const authMagic = 0x05

// delegationPrefix marks account code as a delegation designator,
// 0xef0100 || delegate address.
var delegationPrefix = []byte{0xef, 0x01, 0x00}

// Authorization binds an EOA to the settlement delegate's code. It is only
// needed while the account has no delegated code yet; its nonce is the
// account's transaction-sequence nonce, not the operation nonce.
type Authorization struct {
	ChainID *big.Int       `json:"chainId"`
	Address common.Address `json:"address"`
	Nonce   uint64         `json:"nonce"`

	Signature []byte `json:"signature"`
}

// SigningHash computes keccak256(0x05 || rlp([chainId, address, nonce])).
func (a *Authorization) SigningHash() (common.Hash, error) {
	payload, err := rlp.EncodeToBytes([]interface{}{bigOrZero(a.ChainID), a.Address, a.Nonce})
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to rlp encode authorization: %w", err)
	}
	return crypto.Keccak256Hash(append([]byte{authMagic}, payload...)), nil
}

// RecoverSigner returns the account that signed this authorization. The
// stored signature uses the 65-byte r||s||v layout with v in {27, 28}.
func (a *Authorization) RecoverSigner() (common.Address, error) {
	if len(a.Signature) != SignatureLength {
		return common.Address{}, fmt.Errorf("authorization signature must be %d bytes, got %d", SignatureLength, len(a.Signature))
	}
	v := a.Signature[64]
	if v != 27 && v != 28 {
		return common.Address{}, fmt.Errorf("authorization recovery id must be 27 or 28, got %d", v)
	}
	hash, err := a.SigningHash()
	if err != nil {
		return common.Address{}, err
	}
	sig := make([]byte, SignatureLength)
	copy(sig, a.Signature)
	sig[64] -= 27
	pub, err := crypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("authorization signature recovery failed: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// DelegationCode builds the designator the ledger stores as the account's
// code once an authorization takes effect.
func DelegationCode(delegate common.Address) []byte {
	return append(append([]byte{}, delegationPrefix...), delegate.Bytes()...)
}

// ParseDelegation reports whether code is a delegation designator and, if
// so, which delegate it points at.
func ParseDelegation(code []byte) (common.Address, bool) {
	if len(code) != len(delegationPrefix)+common.AddressLength || !bytes.HasPrefix(code, delegationPrefix) {
		return common.Address{}, false
	}
	return common.BytesToAddress(code[len(delegationPrefix):]), true
}
