package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *DistributorConfig {
	return &DistributorConfig{
		AdminAddress:       "0xAd111111111111111111111111111111111111Ad",
		Port:               8080,
		PersistenceType:    PersistenceTypeMemory,
		LedgerMode:         LedgerModeMemory,
		ClaimRatePerSecond: 10,
		ClaimBurst:         20,
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*DistributorConfig)
	}{
		{"missing admin", func(c *DistributorConfig) { c.AdminAddress = "" }},
		{"bad admin address", func(c *DistributorConfig) { c.AdminAddress = "not-an-address" }},
		{"port too low", func(c *DistributorConfig) { c.Port = 0 }},
		{"port too high", func(c *DistributorConfig) { c.Port = 70000 }},
		{"bad root", func(c *DistributorConfig) { c.Root = "0x1234" }},
		{"unknown persistence", func(c *DistributorConfig) { c.PersistenceType = "etcd" }},
		{"badger without data dir", func(c *DistributorConfig) { c.PersistenceType = PersistenceTypeBadger }},
		{"redis without address", func(c *DistributorConfig) { c.PersistenceType = PersistenceTypeRedis }},
		{"redis db out of range", func(c *DistributorConfig) {
			c.PersistenceType = PersistenceTypeRedis
			c.RedisAddress = "localhost:6379"
			c.RedisDB = 16
		}},
		{"unknown ledger", func(c *DistributorConfig) { c.LedgerMode = "solana" }},
		{"erc20 without token", func(c *DistributorConfig) { c.LedgerMode = LedgerModeERC20 }},
		{"zero claim rate", func(c *DistributorConfig) { c.ClaimRatePerSecond = 0 }},
		{"zero claim burst", func(c *DistributorConfig) { c.ClaimBurst = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateERC20Mode(t *testing.T) {
	cfg := validConfig()
	cfg.LedgerMode = LedgerModeERC20
	cfg.TokenAddress = "0x1111111111111111111111111111111111111111"
	cfg.RpcUrl = "http://localhost:8545"
	cfg.HoldingPrivateKey = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
	require.NoError(t, cfg.Validate())
}

func TestRootHash(t *testing.T) {
	cfg := validConfig()

	_, ok, err := cfg.RootHash()
	require.NoError(t, err)
	assert.False(t, ok)

	cfg.Root = "0xab00000000000000000000000000000000000000000000000000000000000000"
	root, ok, err := cfg.RootHash()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, byte(0xab), root[0])
}
