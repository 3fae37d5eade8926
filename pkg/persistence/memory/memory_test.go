package memory

import (
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driplabs/merkledrop-go/pkg/persistence"
)

func TestMemoryPersistence_RootRoundTrip(t *testing.T) {
	mp := NewMemoryPersistence()
	defer func() { _ = mp.Close() }()

	// No root on first run
	_, found, err := mp.LoadRoot()
	require.NoError(t, err)
	assert.False(t, found)

	root := [32]byte{0xAA, 0xBB}
	require.NoError(t, mp.SaveRoot(root))

	loaded, found, err := mp.LoadRoot()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, root, loaded)
}

func TestMemoryPersistence_PausedRoundTrip(t *testing.T) {
	mp := NewMemoryPersistence()
	defer func() { _ = mp.Close() }()

	paused, err := mp.LoadPaused()
	require.NoError(t, err)
	assert.False(t, paused)

	require.NoError(t, mp.SavePaused(true))
	paused, err = mp.LoadPaused()
	require.NoError(t, err)
	assert.True(t, paused)

	require.NoError(t, mp.SavePaused(false))
	paused, err = mp.LoadPaused()
	require.NoError(t, err)
	assert.False(t, paused)
}

func TestMemoryPersistence_ClaimedSet(t *testing.T) {
	mp := NewMemoryPersistence()
	defer func() { _ = mp.Close() }()

	alice := common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob := common.HexToAddress("0x2222222222222222222222222222222222222222")

	claimed, err := mp.IsClaimed(alice)
	require.NoError(t, err)
	assert.False(t, claimed)

	require.NoError(t, mp.MarkClaimed(alice))
	require.NoError(t, mp.MarkClaimed(alice)) // idempotent

	claimed, err = mp.IsClaimed(alice)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = mp.IsClaimed(bob)
	require.NoError(t, err)
	assert.False(t, claimed)

	list, err := mp.ListClaimed()
	require.NoError(t, err)
	assert.Equal(t, []common.Address{alice}, list)

	// Rollback path
	require.NoError(t, mp.UnmarkClaimed(alice))
	claimed, err = mp.IsClaimed(alice)
	require.NoError(t, err)
	assert.False(t, claimed)

	list, err = mp.ListClaimed()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemoryPersistence_Closed(t *testing.T) {
	mp := NewMemoryPersistence()
	require.NoError(t, mp.Close())
	require.NoError(t, mp.Close()) // idempotent

	assert.Error(t, mp.SaveRoot([32]byte{}))
	_, _, err := mp.LoadRoot()
	assert.Error(t, err)
	assert.Error(t, mp.SavePaused(true))
	_, err = mp.LoadPaused()
	assert.Error(t, err)
	assert.Error(t, mp.MarkClaimed(common.Address{}))
	assert.Error(t, mp.UnmarkClaimed(common.Address{}))
	_, err = mp.IsClaimed(common.Address{})
	assert.Error(t, err)
	_, err = mp.ListClaimed()
	assert.Error(t, err)
	assert.Error(t, mp.HealthCheck())
}

func TestMemoryPersistence_ConcurrentClaims(t *testing.T) {
	mp := NewMemoryPersistence()
	defer func() { _ = mp.Close() }()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			account := common.BigToAddress(big.NewInt(int64(i + 1)))
			require.NoError(t, mp.MarkClaimed(account))
		}(i)
	}
	wg.Wait()

	list, err := mp.ListClaimed()
	require.NoError(t, err)
	assert.Len(t, list, 50)
}

func TestMemoryPersistence_Snapshot(t *testing.T) {
	mp := NewMemoryPersistence()
	defer func() { _ = mp.Close() }()

	root := [32]byte{0x01}
	require.NoError(t, mp.SaveRoot(root))
	require.NoError(t, mp.SavePaused(true))
	alice := common.HexToAddress("0x1111111111111111111111111111111111111111")
	require.NoError(t, mp.MarkClaimed(alice))

	snap, err := persistence.LoadSnapshot(mp)
	require.NoError(t, err)
	assert.True(t, snap.RootSet)
	assert.Equal(t, root, snap.Root)
	assert.True(t, snap.Paused)
	assert.Equal(t, []common.Address{alice}, snap.Claimed)
}
