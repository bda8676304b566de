package operation

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// The canonical type strings. The settlement contract hardcodes the same
// literals; changing either breaks every deployed delegate.
const (
	operationTypeString = "Operation(address sender,uint256 nonce,bytes callData,uint256 packedGasLimits,uint256 preVerificationGas,uint256 packedFees,bytes feeCompensation)"
	domainTypeString    = "EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"

	// DomainName and DomainVersion are fixed for every deployment; only the
	// chain id and verifying contract vary.
	DomainName    = "SettlementDelegate"
	DomainVersion = "1"
)

var (
	operationTypeHash = crypto.Keccak256Hash([]byte(operationTypeString))
	domainTypeHash    = crypto.Keccak256Hash([]byte(domainTypeString))
)

// Domain carries the EIP-712 domain separation inputs. It is never
// persisted; both sides derive it from chain id + contract address.
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// DefaultDomain returns the domain every deployment of the settlement
// delegate uses on the given chain.
func DefaultDomain(chainID *big.Int, verifyingContract common.Address) Domain {
	return Domain{
		Name:              DomainName,
		Version:           DomainVersion,
		ChainID:           chainID,
		VerifyingContract: verifyingContract,
	}
}

// Separator computes the EIP-712 domain separator.
func (d Domain) Separator() common.Hash {
	chainID := d.ChainID
	if chainID == nil {
		chainID = big.NewInt(0)
	}
	return crypto.Keccak256Hash(
		domainTypeHash.Bytes(),
		crypto.Keccak256([]byte(d.Name)),
		crypto.Keccak256([]byte(d.Version)),
		common.LeftPadBytes(chainID.Bytes(), 32),
		common.LeftPadBytes(d.VerifyingContract.Bytes(), 32),
	)
}

// StructHash computes the typed-data hash of the operation body. Dynamic
// byte fields are keccak-hashed in place, so an empty callData contributes
// the hash of the empty string, exactly as the contract computes it.
func (op *Operation) StructHash() (common.Hash, error) {
	gasWord, err := op.PackedGasLimits()
	if err != nil {
		return common.Hash{}, err
	}
	feeWord, err := op.PackedFees()
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(
		operationTypeHash.Bytes(),
		common.LeftPadBytes(op.Sender.Bytes(), 32),
		common.LeftPadBytes(bigOrZero(op.Nonce).Bytes(), 32),
		crypto.Keccak256(op.CallData),
		gasWord,
		common.LeftPadBytes(bigOrZero(op.PreVerificationGas).Bytes(), 32),
		feeWord,
		crypto.Keccak256(op.FeeCompensation),
	), nil
}

// SigningHash is the digest the sender signs and the settlement contract
// verifies: keccak256(0x1901 || domainSeparator || structHash). There is no
// EIP-191 message prefix on top of this.
func (op *Operation) SigningHash(d Domain) (common.Hash, error) {
	structHash, err := op.StructHash()
	if err != nil {
		return common.Hash{}, err
	}
	sep := d.Separator()
	return crypto.Keccak256Hash(
		[]byte{0x19, 0x01},
		sep.Bytes(),
		structHash.Bytes(),
	), nil
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
