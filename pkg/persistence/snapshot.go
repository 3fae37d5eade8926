package persistence

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Snapshot is the full persisted distributor state, loaded in one shot at
// startup.
type Snapshot struct {
	Root    [32]byte
	RootSet bool
	Paused  bool
	Claimed []common.Address
}

// LoadSnapshot reads the complete distributor state from a backend.
func LoadSnapshot(p IDistributorPersistence) (*Snapshot, error) {
	root, rootSet, err := p.LoadRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to load root: %w", err)
	}

	paused, err := p.LoadPaused()
	if err != nil {
		return nil, fmt.Errorf("failed to load paused flag: %w", err)
	}

	claimed, err := p.ListClaimed()
	if err != nil {
		return nil, fmt.Errorf("failed to list claimed accounts: %w", err)
	}

	return &Snapshot{
		Root:    root,
		RootSet: rootSet,
		Paused:  paused,
		Claimed: claimed,
	}, nil
}
