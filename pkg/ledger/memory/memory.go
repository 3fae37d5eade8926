package memory

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MemoryLedger is an in-memory token ledger for development and testing.
// Balances live in a mutex-guarded map; the holding account is the one the
// distributor transfers out of.
type MemoryLedger struct {
	mu      sync.Mutex
	holding common.Address
	balance map[common.Address]*big.Int

	// failNext forces the next Transfer to report a declined transfer,
	// regardless of balances. Test hook for the rollback path.
	failNext bool
}

// NewMemoryLedger creates a ledger whose holding account starts with the
// given balance.
func NewMemoryLedger(holding common.Address, initialBalance *big.Int) *MemoryLedger {
	balances := map[common.Address]*big.Int{
		holding: new(big.Int).Set(initialBalance),
	}
	return &MemoryLedger{
		holding: holding,
		balance: balances,
	}
}

// Transfer moves amount from the holding account to the recipient.
// Declines (returns false) when the holding balance is insufficient.
func (m *MemoryLedger) Transfer(_ context.Context, to common.Address, amount *big.Int) (bool, error) {
	if amount == nil || amount.Sign() < 0 {
		return false, fmt.Errorf("transfer amount must be a non-negative integer")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failNext {
		m.failNext = false
		return false, nil
	}

	from := m.balanceLocked(m.holding)
	if from.Cmp(amount) < 0 {
		return false, nil
	}

	m.balance[m.holding] = new(big.Int).Sub(from, amount)
	m.balance[to] = new(big.Int).Add(m.balanceLocked(to), amount)
	return true, nil
}

// BalanceOf returns the balance of an account, zero if unknown.
func (m *MemoryLedger) BalanceOf(_ context.Context, account common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return new(big.Int).Set(m.balanceLocked(account)), nil
}

// FailNextTransfer makes the next Transfer call report a decline.
func (m *MemoryLedger) FailNextTransfer() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = true
}

func (m *MemoryLedger) balanceLocked(account common.Address) *big.Int {
	if b, ok := m.balance[account]; ok {
		return b
	}
	return big.NewInt(0)
}
