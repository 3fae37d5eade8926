package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MemoryPersistence is an in-memory implementation of IDistributorPersistence.
// This implementation is intended for TESTING ONLY.
//
// All data is stored in memory and will be lost when the process exits.
// Thread-safe using sync.RWMutex for concurrent access.
type MemoryPersistence struct {
	mu sync.RWMutex

	root    [32]byte
	rootSet bool
	paused  bool

	// Claimed set: account -> claimed
	claimed map[common.Address]bool

	closed bool
}

// NewMemoryPersistence creates a new in-memory persistence layer.
func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{
		claimed: make(map[common.Address]bool),
	}
}

// SaveRoot persists the trusted merkle root.
func (m *MemoryPersistence) SaveRoot(root [32]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	m.root = root
	m.rootSet = true
	return nil
}

// LoadRoot retrieves the trusted merkle root.
func (m *MemoryPersistence) LoadRoot() ([32]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return [32]byte{}, false, fmt.Errorf("persistence layer is closed")
	}

	return m.root, m.rootSet, nil
}

// SavePaused persists the paused flag.
func (m *MemoryPersistence) SavePaused(paused bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	m.paused = paused
	return nil
}

// LoadPaused retrieves the paused flag.
func (m *MemoryPersistence) LoadPaused() (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return false, fmt.Errorf("persistence layer is closed")
	}

	return m.paused, nil
}

// MarkClaimed records a successful claim for an account.
func (m *MemoryPersistence) MarkClaimed(account common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	m.claimed[account] = true
	return nil
}

// UnmarkClaimed removes an account's claimed flag (rollback path only).
func (m *MemoryPersistence) UnmarkClaimed(account common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	delete(m.claimed, account)
	return nil
}

// IsClaimed reports whether an account has a claim on record.
func (m *MemoryPersistence) IsClaimed(account common.Address) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return false, fmt.Errorf("persistence layer is closed")
	}

	return m.claimed[account], nil
}

// ListClaimed returns all claimed accounts sorted by address.
func (m *MemoryPersistence) ListClaimed() ([]common.Address, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	result := make([]common.Address, 0, len(m.claimed))
	for account := range m.claimed {
		result = append(result, account)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Hex() < result[j].Hex()
	})

	return result, nil
}

// Close shuts down the persistence layer.
func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// HealthCheck verifies the persistence layer is operational.
func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	return nil
}
