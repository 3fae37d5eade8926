package redis

import (
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driplabs/merkledrop-go/pkg/logger"
)

// getTestRedisAddress returns the Redis address for testing.
// Uses REDIS_TEST_ADDRESS env var if set, otherwise defaults to localhost:6379.
func getTestRedisAddress() string {
	if addr := os.Getenv("REDIS_TEST_ADDRESS"); addr != "" {
		return addr
	}
	return "localhost:6379"
}

// requireRedis skips the test if Redis is not reachable.
func requireRedis(t *testing.T) *RedisPersistence {
	t.Helper()

	testLogger := logger.NewNoopLogger()
	cfg := &RedisConfig{
		Address:   getTestRedisAddress(),
		DB:        15, // Use DB 15 for tests to avoid conflicts
		KeyPrefix: "test:",
	}

	rp, err := NewRedisPersistence(cfg, testLogger)
	if err != nil {
		t.Skipf("Redis not available at %s: %v", cfg.Address, err)
		return nil
	}
	t.Cleanup(func() { _ = rp.Close() })

	return rp
}

func TestRedisPersistence_RootRoundTrip(t *testing.T) {
	rp := requireRedis(t)

	root := [32]byte{0xAB, 0xCD}
	require.NoError(t, rp.SaveRoot(root))

	loaded, found, err := rp.LoadRoot()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, root, loaded)
}

func TestRedisPersistence_ClaimedSet(t *testing.T) {
	rp := requireRedis(t)

	account := common.HexToAddress("0x3333333333333333333333333333333333333333")
	require.NoError(t, rp.UnmarkClaimed(account)) // clean slate across runs

	claimed, err := rp.IsClaimed(account)
	require.NoError(t, err)
	assert.False(t, claimed)

	require.NoError(t, rp.MarkClaimed(account))
	claimed, err = rp.IsClaimed(account)
	require.NoError(t, err)
	assert.True(t, claimed)

	list, err := rp.ListClaimed()
	require.NoError(t, err)
	assert.Contains(t, list, account)

	require.NoError(t, rp.UnmarkClaimed(account))
}

func TestRedisPersistence_PausedRoundTrip(t *testing.T) {
	rp := requireRedis(t)

	require.NoError(t, rp.SavePaused(true))
	paused, err := rp.LoadPaused()
	require.NoError(t, err)
	assert.True(t, paused)

	require.NoError(t, rp.SavePaused(false))
	paused, err = rp.LoadPaused()
	require.NoError(t, err)
	assert.False(t, paused)
}

func TestRedisPersistence_NilConfig(t *testing.T) {
	testLogger := logger.NewNoopLogger()

	_, err := NewRedisPersistence(nil, testLogger)
	require.Error(t, err)

	_, err = NewRedisPersistence(&RedisConfig{}, testLogger)
	require.Error(t, err)
}
