package redis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Key layout in Redis
const (
	keyRoot              = "drop:root"
	keyPaused            = "drop:paused"
	keySetClaimed        = "drop:claimed" // Redis set of lowercase hex addresses
	keySchemaVersion     = "drop:metadata:schema_version"
	currentSchemaVersion = "v1"

	opTimeout = 5 * time.Second
)

// RedisPersistence is a production-ready persistence implementation using
// Redis. Provides durable, distributed storage suitable for cloud-native
// deployments where multiple distributor replicas share one claimed set.
type RedisPersistence struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is an optional custom prefix for all keys (for multi-tenant
	// setups). If set, keys become e.g. "myapp:drop:root".
	KeyPrefix string
}

// NewRedisPersistence creates a new Redis-backed persistence layer.
func NewRedisPersistence(cfg *RedisConfig, logger *zap.Logger) (*RedisPersistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rp := &RedisPersistence{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rp.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis persistence initialized", "address", cfg.Address, "db", cfg.DB)

	return rp, nil
}

// prefixKey adds the custom key prefix (if configured) to a key
func (r *RedisPersistence) prefixKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + key
}

// initSchema initializes or validates the schema version
func (r *RedisPersistence) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if err == redis.Nil {
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}

	return nil
}

func (r *RedisPersistence) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}

// SaveRoot persists the trusted merkle root.
func (r *RedisPersistence) SaveRoot(root [32]byte) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := r.opContext()
	defer cancel()

	if err := r.client.Set(ctx, r.prefixKey(keyRoot), hexutil.Encode(root[:]), 0).Err(); err != nil {
		return fmt.Errorf("failed to save root: %w", err)
	}
	return nil
}

// LoadRoot retrieves the trusted merkle root.
func (r *RedisPersistence) LoadRoot() ([32]byte, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return [32]byte{}, false, fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := r.opContext()
	defer cancel()

	val, err := r.client.Get(ctx, r.prefixKey(keyRoot)).Result()
	if err == redis.Nil {
		return [32]byte{}, false, nil // Not found is not an error
	}
	if err != nil {
		return [32]byte{}, false, fmt.Errorf("failed to load root: %w", err)
	}

	b, err := hexutil.Decode(val)
	if err != nil || len(b) != 32 {
		return [32]byte{}, false, fmt.Errorf("stored root %q is malformed", val)
	}

	var root [32]byte
	copy(root[:], b)
	return root, true, nil
}

// SavePaused persists the paused flag.
func (r *RedisPersistence) SavePaused(paused bool) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := r.opContext()
	defer cancel()

	val := "0"
	if paused {
		val = "1"
	}
	if err := r.client.Set(ctx, r.prefixKey(keyPaused), val, 0).Err(); err != nil {
		return fmt.Errorf("failed to save paused flag: %w", err)
	}
	return nil
}

// LoadPaused retrieves the paused flag.
func (r *RedisPersistence) LoadPaused() (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return false, fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := r.opContext()
	defer cancel()

	val, err := r.client.Get(ctx, r.prefixKey(keyPaused)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load paused flag: %w", err)
	}

	return val == "1", nil
}

// MarkClaimed records a successful claim for an account.
func (r *RedisPersistence) MarkClaimed(account common.Address) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := r.opContext()
	defer cancel()

	member := strings.ToLower(account.Hex())
	if err := r.client.SAdd(ctx, r.prefixKey(keySetClaimed), member).Err(); err != nil {
		return fmt.Errorf("failed to mark claimed: %w", err)
	}
	return nil
}

// UnmarkClaimed removes an account's claimed flag (rollback path only).
func (r *RedisPersistence) UnmarkClaimed(account common.Address) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := r.opContext()
	defer cancel()

	member := strings.ToLower(account.Hex())
	if err := r.client.SRem(ctx, r.prefixKey(keySetClaimed), member).Err(); err != nil {
		return fmt.Errorf("failed to unmark claimed: %w", err)
	}
	return nil
}

// IsClaimed reports whether an account has a claim on record.
func (r *RedisPersistence) IsClaimed(account common.Address) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return false, fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := r.opContext()
	defer cancel()

	member := strings.ToLower(account.Hex())
	claimed, err := r.client.SIsMember(ctx, r.prefixKey(keySetClaimed), member).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read claimed flag: %w", err)
	}
	return claimed, nil
}

// ListClaimed returns all claimed accounts.
func (r *RedisPersistence) ListClaimed() ([]common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := r.opContext()
	defer cancel()

	members, err := r.client.SMembers(ctx, r.prefixKey(keySetClaimed)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list claimed accounts: %w", err)
	}

	accounts := make([]common.Address, 0, len(members))
	for _, m := range members {
		if !common.IsHexAddress(m) {
			r.logger.Sugar().Warnw("Skipping malformed claimed member", "member", m)
			continue
		}
		accounts = append(accounts, common.HexToAddress(m))
	}

	return accounts, nil
}

// Close cleanly shuts down the persistence layer.
func (r *RedisPersistence) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	r.logger.Sugar().Infow("Redis persistence closed")
	return nil
}

// HealthCheck verifies the persistence layer is operational.
func (r *RedisPersistence) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := r.opContext()
	defer cancel()

	return r.client.Ping(ctx).Err()
}
