package badger

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Key layout
const (
	keyRoot              = "distributor:root"
	keyPaused            = "distributor:paused"
	keyPrefixClaimed     = "claimed:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

// BadgerPersistence is a production-ready persistence implementation using
// Badger. Provides durable, disk-based storage with ACID guarantees.
type BadgerPersistence struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

// NewBadgerPersistence creates a new Badger-backed persistence layer.
// The database is opened at the specified path with SyncWrites enabled for
// durability. A background goroutine is started for garbage collection.
func NewBadgerPersistence(dataPath string, logger *zap.Logger) (*BadgerPersistence, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.SyncWrites = true // A claimed flag must survive a crash before the transfer is attempted
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bp := &BadgerPersistence{
		db:     db,
		logger: logger,
	}

	if err := bp.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bp.gcCancel = cancel
	bp.gcWg.Add(1)
	go bp.runGC(ctx)

	logger.Sugar().Infow("Badger persistence initialized", "path", absPath)

	return bp, nil
}

// initSchema initializes or validates the schema version
func (b *BadgerPersistence) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}

		return nil
	})
}

// runGC runs periodic garbage collection in the background
func (b *BadgerPersistence) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && err != badgerdb.ErrNoRewrite {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// SaveRoot persists the trusted merkle root.
func (b *BadgerPersistence) SaveRoot(root [32]byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(keyRoot), root[:])
	})
}

// LoadRoot retrieves the trusted merkle root.
func (b *BadgerPersistence) LoadRoot() ([32]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return [32]byte{}, false, fmt.Errorf("persistence layer is closed")
	}

	var root [32]byte
	found := false
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keyRoot))
		if err == badgerdb.ErrKeyNotFound {
			return nil // Not found is not an error
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			if len(val) != 32 {
				return fmt.Errorf("stored root has invalid length %d", len(val))
			}
			copy(root[:], val)
			found = true
			return nil
		})
	})
	if err != nil {
		return [32]byte{}, false, fmt.Errorf("failed to load root: %w", err)
	}

	return root, found, nil
}

// SavePaused persists the paused flag.
func (b *BadgerPersistence) SavePaused(paused bool) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	val := []byte{0}
	if paused {
		val[0] = 1
	}
	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(keyPaused), val)
	})
}

// LoadPaused retrieves the paused flag.
func (b *BadgerPersistence) LoadPaused() (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return false, fmt.Errorf("persistence layer is closed")
	}

	paused := false
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keyPaused))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			paused = len(val) == 1 && val[0] == 1
			return nil
		})
	})
	if err != nil {
		return false, fmt.Errorf("failed to load paused flag: %w", err)
	}

	return paused, nil
}

// claimedKey builds the storage key for an account's claimed flag.
// The address is part of the key, so listing only needs key iteration.
func claimedKey(account common.Address) []byte {
	return []byte(keyPrefixClaimed + strings.ToLower(account.Hex()))
}

// MarkClaimed records a successful claim for an account.
func (b *BadgerPersistence) MarkClaimed(account common.Address) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(claimedKey(account), []byte{1})
	})
}

// UnmarkClaimed removes an account's claimed flag (rollback path only).
func (b *BadgerPersistence) UnmarkClaimed(account common.Address) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(claimedKey(account))
	})
}

// IsClaimed reports whether an account has a claim on record.
func (b *BadgerPersistence) IsClaimed(account common.Address) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return false, fmt.Errorf("persistence layer is closed")
	}

	claimed := false
	err := b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(claimedKey(account))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		claimed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to read claimed flag: %w", err)
	}

	return claimed, nil
}

// ListClaimed returns all claimed accounts.
func (b *BadgerPersistence) ListClaimed() ([]common.Address, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	accounts := make([]common.Address, 0)

	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixClaimed)
		opts.PrefetchValues = false // Addresses live in the keys

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			hexAddr := strings.TrimPrefix(key, keyPrefixClaimed)
			if !common.IsHexAddress(hexAddr) {
				b.logger.Sugar().Warnw("Skipping malformed claimed key", "key", key)
				continue
			}
			accounts = append(accounts, common.HexToAddress(hexAddr))
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list claimed accounts: %w", err)
	}

	return accounts, nil
}

// Close cleanly shuts down the persistence layer.
func (b *BadgerPersistence) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	// Stop GC before closing the database
	b.gcCancel()
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Infow("Badger persistence closed")
	return nil
}

// HealthCheck verifies the persistence layer is operational.
func (b *BadgerPersistence) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	// A read-only transaction against a known key exercises the whole path
	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		return err
	})
}
