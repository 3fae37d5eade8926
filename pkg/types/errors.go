package types

import "github.com/pkg/errors"

// The distributor's failure modes form a closed set. Callers discriminate
// with errors.Is; call sites may wrap these with context.
var (
	// ErrZeroAddress rejects construction with a nil or zero-valued
	// collaborator reference.
	ErrZeroAddress = errors.New("zero address")

	// ErrPaused rejects claims while the claim gate is suspended.
	ErrPaused = errors.New("claims are paused")

	// ErrAlreadyClaimed rejects a second claim for an account that already
	// has a successful claim on record.
	ErrAlreadyClaimed = errors.New("already claimed")

	// ErrInvalidProof means the recomputed root did not match the trusted
	// root. Wrong amount, wrong account, tampered proof and stale root all
	// surface as this one error.
	ErrInvalidProof = errors.New("invalid merkle proof")

	// ErrTransferFailed means the token ledger declined or failed to move
	// funds. The claimed flag is rolled back, so the claim can be retried.
	ErrTransferFailed = errors.New("token transfer failed")

	// ErrInvalidAmount rejects a zero-amount withdrawal.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientBalance rejects a withdrawal exceeding the holding.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrUnauthorized rejects an administrative operation from a caller
	// that does not hold the admin capability.
	ErrUnauthorized = errors.New("unauthorized")
)
