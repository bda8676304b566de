package delegate

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	addrMu sync.RWMutex

	// settlementAddress is the delegate contract accounts bind to. Set once
	// at startup from config; the default matches the reference deployment.
	settlementAddress = common.HexToAddress("0x63c0c19a282a1B52b07dD5a65b58948A07DAE32B")
)

func SettlementAddress() common.Address {
	addrMu.RLock()
	defer addrMu.RUnlock()
	return settlementAddress
}

func SetSettlementAddress(address common.Address) {
	addrMu.Lock()
	defer addrMu.Unlock()
	settlementAddress = address
}
