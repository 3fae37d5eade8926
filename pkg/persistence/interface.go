package persistence

import "github.com/ethereum/go-ethereum/common"

// IDistributorPersistence defines the interface for persisting distributor
// state across restarts. All implementations must be thread-safe as the
// distributor serves concurrent HTTP requests.
//
// The persisted state is exactly the distributor's three axes:
// - the trusted merkle root
// - the paused flag
// - the per-account claimed set
type IDistributorPersistence interface {
	// SaveRoot persists the trusted merkle root. Unconditional overwrite.
	SaveRoot(root [32]byte) error

	// LoadRoot retrieves the trusted root. The second return is false if no
	// root has ever been set (first run). Error only on storage failure.
	LoadRoot() ([32]byte, bool, error)

	// SavePaused persists the paused flag. Unconditional overwrite.
	SavePaused(paused bool) error

	// LoadPaused retrieves the paused flag. Returns false if never set.
	LoadPaused() (bool, error)

	// MarkClaimed records a successful claim for an account.
	// Idempotent - returns nil if already marked.
	MarkClaimed(account common.Address) error

	// UnmarkClaimed removes an account's claimed flag. This exists solely
	// for the compensating rollback when a token transfer fails after the
	// flag was written; nothing else ever resets a claimed flag.
	// Idempotent - returns nil if not marked.
	UnmarkClaimed(account common.Address) error

	// IsClaimed reports whether an account has a claim on record.
	IsClaimed(account common.Address) (bool, error)

	// ListClaimed returns all claimed accounts. Returns an empty slice if
	// none exist, error only on storage failure. Used at startup to warm
	// the distributor's in-memory claimed set.
	ListClaimed() ([]common.Address, error)

	// Close cleanly shuts down the persistence layer.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations should return errors.
	Close() error

	// HealthCheck verifies the persistence layer is operational.
	// Returns nil if healthy, error describing the problem if not.
	// Should be called during startup to fail fast.
	HealthCheck() error
}
