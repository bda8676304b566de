package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ERC-20 selectors the in-memory ledger understands.
var (
	selectorTransfer     = [4]byte{0xa9, 0x05, 0x9c, 0xbb} // transfer(address,uint256)
	selectorTransferFrom = [4]byte{0x23, 0xb8, 0x72, 0xdd} // transferFrom(address,address,uint256)
	selectorApprove      = [4]byte{0x09, 0x5e, 0xa7, 0xb3} // approve(address,uint256)
)

// MemState is a self-contained ledger with native balances, ERC-20 token
// books, allowances, operation nonces, and forced-revert targets for tests.
// Snapshots copy the whole book; the state is small by construction.
type MemState struct {
	settlement common.Address

	nonces     map[common.Address]*big.Int
	native     map[common.Address]*big.Int
	tokens     map[common.Address]map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]map[common.Address]*big.Int
	codes      map[common.Address][]byte
	failing    map[common.Address]bool

	snapshots []*MemState
}

// NewMemState creates an empty ledger. The settlement address is the spender
// whose allowance fee settlement consumes.
func NewMemState(settlement common.Address) *MemState {
	return &MemState{
		settlement: settlement,
		nonces:     map[common.Address]*big.Int{},
		native:     map[common.Address]*big.Int{},
		tokens:     map[common.Address]map[common.Address]*big.Int{},
		allowances: map[common.Address]map[common.Address]map[common.Address]*big.Int{},
		codes:      map[common.Address][]byte{},
		failing:    map[common.Address]bool{},
	}
}

func (m *MemState) Snapshot() int {
	m.snapshots = append(m.snapshots, m.clone())
	return len(m.snapshots) - 1
}

func (m *MemState) RevertToSnapshot(id int) {
	if id < 0 || id >= len(m.snapshots) {
		panic(fmt.Sprintf("invalid snapshot id %d", id))
	}
	saved := m.snapshots[id]
	m.nonces = saved.nonces
	m.native = saved.native
	m.tokens = saved.tokens
	m.allowances = saved.allowances
	m.codes = saved.codes
	m.snapshots = m.snapshots[:id]
}

func (m *MemState) OperationNonce(account common.Address) *big.Int {
	if n, ok := m.nonces[account]; ok {
		return new(big.Int).Set(n)
	}
	return big.NewInt(0)
}

func (m *MemState) IncrementOperationNonce(account common.Address) {
	m.nonces[account] = new(big.Int).Add(m.OperationNonce(account), big.NewInt(1))
}

// SetOperationNonce seeds the counter directly. Nonces are 256-bit, so
// anything that needs a specific starting point must jump there rather than
// increment toward it.
func (m *MemState) SetOperationNonce(account common.Address, n *big.Int) {
	m.nonces[account] = new(big.Int).Set(n)
}

func (m *MemState) TokenTransferFrom(token, from, to common.Address, amount *big.Int) error {
	allowance := m.Allowance(token, from, m.settlement)
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("allowance %s below requested %s", allowance, amount)
	}
	if err := m.moveToken(token, from, to, amount); err != nil {
		return err
	}
	m.setAllowance(token, from, m.settlement, new(big.Int).Sub(allowance, amount))
	return nil
}

func (m *MemState) Call(sender, target common.Address, value *big.Int, data []byte) error {
	if m.failing[target] {
		return fmt.Errorf("call to %s reverted", target.Hex())
	}
	if value != nil && value.Sign() > 0 {
		if err := m.moveNative(sender, target, value); err != nil {
			return err
		}
	}
	if len(data) < 4 {
		return nil
	}
	var sel [4]byte
	copy(sel[:], data[:4])
	args := data[4:]
	switch sel {
	case selectorTransfer:
		to, amount, err := decodeAddressAmount(args)
		if err != nil {
			return err
		}
		return m.moveToken(target, sender, to, amount)
	case selectorTransferFrom:
		if len(args) != 96 {
			return fmt.Errorf("malformed transferFrom calldata")
		}
		from := common.BytesToAddress(args[12:32])
		to := common.BytesToAddress(args[44:64])
		amount := new(big.Int).SetBytes(args[64:96])
		allowance := m.Allowance(target, from, sender)
		if allowance.Cmp(amount) < 0 {
			return fmt.Errorf("allowance %s below requested %s", allowance, amount)
		}
		if err := m.moveToken(target, from, to, amount); err != nil {
			return err
		}
		m.setAllowance(target, from, sender, new(big.Int).Sub(allowance, amount))
		return nil
	case selectorApprove:
		spender, amount, err := decodeAddressAmount(args)
		if err != nil {
			return err
		}
		m.setAllowance(target, sender, spender, amount)
		return nil
	default:
		// Unknown target logic is out of the ledger's model; the call is
		// treated as succeeding with no book effect.
		return nil
	}
}

// Seeding and inspection helpers.

func (m *MemState) SetTokenBalance(token, holder common.Address, amount *big.Int) {
	if m.tokens[token] == nil {
		m.tokens[token] = map[common.Address]*big.Int{}
	}
	m.tokens[token][holder] = new(big.Int).Set(amount)
}

func (m *MemState) TokenBalance(token, holder common.Address) *big.Int {
	if book, ok := m.tokens[token]; ok {
		if b, ok := book[holder]; ok {
			return new(big.Int).Set(b)
		}
	}
	return big.NewInt(0)
}

func (m *MemState) Approve(token, owner, spender common.Address, amount *big.Int) {
	m.setAllowance(token, owner, spender, amount)
}

func (m *MemState) Allowance(token, owner, spender common.Address) *big.Int {
	if byOwner, ok := m.allowances[token]; ok {
		if bySpender, ok := byOwner[owner]; ok {
			if a, ok := bySpender[spender]; ok {
				return new(big.Int).Set(a)
			}
		}
	}
	return big.NewInt(0)
}

func (m *MemState) SetNativeBalance(account common.Address, amount *big.Int) {
	m.native[account] = new(big.Int).Set(amount)
}

func (m *MemState) NativeBalance(account common.Address) *big.Int {
	if b, ok := m.native[account]; ok {
		return new(big.Int).Set(b)
	}
	return big.NewInt(0)
}

func (m *MemState) SetCode(account common.Address, code []byte) {
	m.codes[account] = append([]byte{}, code...)
}

func (m *MemState) Code(account common.Address) []byte {
	return append([]byte{}, m.codes[account]...)
}

// FailCallsTo forces every sub-call to target to revert. Used to exercise
// batch rollback.
func (m *MemState) FailCallsTo(target common.Address) {
	m.failing[target] = true
}

func (m *MemState) moveToken(token, from, to common.Address, amount *big.Int) error {
	bal := m.TokenBalance(token, from)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("token balance %s below requested %s", bal, amount)
	}
	m.SetTokenBalance(token, from, new(big.Int).Sub(bal, amount))
	m.SetTokenBalance(token, to, new(big.Int).Add(m.TokenBalance(token, to), amount))
	return nil
}

func (m *MemState) moveNative(from, to common.Address, amount *big.Int) error {
	bal := m.NativeBalance(from)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("native balance %s below requested %s", bal, amount)
	}
	m.SetNativeBalance(from, new(big.Int).Sub(bal, amount))
	m.SetNativeBalance(to, new(big.Int).Add(m.NativeBalance(to), amount))
	return nil
}

func decodeAddressAmount(args []byte) (common.Address, *big.Int, error) {
	if len(args) != 64 {
		return common.Address{}, nil, fmt.Errorf("malformed calldata: want 64 argument bytes, got %d", len(args))
	}
	return common.BytesToAddress(args[12:32]), new(big.Int).SetBytes(args[32:]), nil
}

func (m *MemState) setAllowance(token, owner, spender common.Address, amount *big.Int) {
	if m.allowances[token] == nil {
		m.allowances[token] = map[common.Address]map[common.Address]*big.Int{}
	}
	if m.allowances[token][owner] == nil {
		m.allowances[token][owner] = map[common.Address]*big.Int{}
	}
	m.allowances[token][owner][spender] = new(big.Int).Set(amount)
}

func (m *MemState) clone() *MemState {
	c := NewMemState(m.settlement)
	for k, v := range m.nonces {
		c.nonces[k] = new(big.Int).Set(v)
	}
	for k, v := range m.native {
		c.native[k] = new(big.Int).Set(v)
	}
	for token, book := range m.tokens {
		c.tokens[token] = map[common.Address]*big.Int{}
		for holder, b := range book {
			c.tokens[token][holder] = new(big.Int).Set(b)
		}
	}
	for token, byOwner := range m.allowances {
		c.allowances[token] = map[common.Address]map[common.Address]*big.Int{}
		for owner, bySpender := range byOwner {
			c.allowances[token][owner] = map[common.Address]*big.Int{}
			for spender, a := range bySpender {
				c.allowances[token][owner][spender] = new(big.Int).Set(a)
			}
		}
	}
	for k, v := range m.codes {
		c.codes[k] = append([]byte{}, v...)
	}
	for k, v := range m.failing {
		c.failing[k] = v
	}
	return c
}
