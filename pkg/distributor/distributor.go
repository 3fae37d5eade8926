package distributor

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/driplabs/merkledrop-go/pkg/auth"
	"github.com/driplabs/merkledrop-go/pkg/ledger"
	"github.com/driplabs/merkledrop-go/pkg/merkle"
	"github.com/driplabs/merkledrop-go/pkg/persistence"
	"github.com/driplabs/merkledrop-go/pkg/types"
)

// Distributor gates one token claim per eligible account against a merkle
// root of the allocation table.
//
// All state transitions happen under one mutex that spans the whole
// check-claimed -> mark-claimed -> external-transfer sequence, so a claimant
// can never be paid twice however requests interleave. The claimed flag is
// written (and persisted) before the transfer is requested; if the ledger
// declines or fails, the flag is rolled back so the claimant can retry.
type Distributor struct {
	mu sync.Mutex

	root    [32]byte
	rootSet bool
	paused  bool
	claimed map[common.Address]bool

	store      persistence.IDistributorPersistence
	ledger     ledger.ITokenLedger
	authorizer auth.IAuthorizer
	holding    common.Address

	logger *zap.Logger

	subsMu      sync.RWMutex
	subscribers []chan *types.ClaimEvent
}

// NewDistributor creates a distributor and warms its state from the
// persistence backend. Previously persisted root/paused/claimed state wins
// over zero values; the claimed set always survives restarts.
func NewDistributor(
	store persistence.IDistributorPersistence,
	tokenLedger ledger.ITokenLedger,
	authorizer auth.IAuthorizer,
	holding common.Address,
	logger *zap.Logger,
) (*Distributor, error) {
	if store == nil {
		return nil, errors.Wrap(types.ErrZeroAddress, "persistence backend is required")
	}
	if tokenLedger == nil {
		return nil, errors.Wrap(types.ErrZeroAddress, "token ledger is required")
	}
	if authorizer == nil {
		return nil, errors.Wrap(types.ErrZeroAddress, "authorizer is required")
	}
	if holding == (common.Address{}) {
		return nil, errors.Wrap(types.ErrZeroAddress, "holding account is required")
	}

	snap, err := persistence.LoadSnapshot(store)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load persisted state")
	}

	claimed := make(map[common.Address]bool, len(snap.Claimed))
	for _, account := range snap.Claimed {
		claimed[account] = true
	}

	d := &Distributor{
		root:       snap.Root,
		rootSet:    snap.RootSet,
		paused:     snap.Paused,
		claimed:    claimed,
		store:      store,
		ledger:     tokenLedger,
		authorizer: authorizer,
		holding:    holding,
		logger:     logger,
	}

	logger.Sugar().Infow("Distributor initialized",
		"root", hexutil.Encode(snap.Root[:]),
		"root_set", snap.RootSet,
		"paused", snap.Paused,
		"claimed_count", len(claimed),
		"holding", holding.Hex(),
	)

	return d, nil
}

// Claim authorizes and pays out one allocation, returning the emitted
// claim-completed event. Gate order is fixed: pause flag, then the claimed
// flag, then proof verification; the first failing gate decides the error.
func (d *Distributor) Claim(ctx context.Context, claimant common.Address, amount *big.Int, proof [][32]byte) (*types.ClaimEvent, error) {
	if claimant == (common.Address{}) {
		return nil, errors.Wrap(types.ErrInvalidProof, "claimant cannot be the zero address")
	}
	if amount == nil || amount.Sign() < 0 {
		return nil, errors.Wrap(types.ErrInvalidProof, "amount must be a non-negative integer")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.paused {
		return nil, types.ErrPaused
	}

	if d.claimed[claimant] {
		return nil, types.ErrAlreadyClaimed
	}

	leaf := merkle.HashAllocation(claimant, amount)
	if !merkle.VerifyProof(leaf, proof, d.root) {
		return nil, types.ErrInvalidProof
	}

	// Mark claimed before requesting the transfer. The flag must be durable
	// first: a crash between the persist and the transfer leaves a claimant
	// locked out rather than the pool drained twice.
	d.claimed[claimant] = true
	if err := d.store.MarkClaimed(claimant); err != nil {
		delete(d.claimed, claimant)
		return nil, errors.Wrap(err, "failed to persist claimed flag")
	}

	ok, err := d.ledger.Transfer(ctx, claimant, amount)
	if err != nil || !ok {
		// Compensating rollback: without it a declined transfer would
		// permanently lock out a legitimate claimant.
		delete(d.claimed, claimant)
		if rbErr := d.store.UnmarkClaimed(claimant); rbErr != nil {
			d.logger.Sugar().Errorw("Failed to roll back claimed flag, account is locked out until manual repair",
				"claimant", claimant.Hex(), "error", rbErr)
		}
		if err != nil {
			d.logger.Sugar().Warnw("Claim transfer errored", "claimant", claimant.Hex(), "error", err)
			return nil, errors.Wrap(types.ErrTransferFailed, err.Error())
		}
		d.logger.Sugar().Warnw("Claim transfer declined", "claimant", claimant.Hex(), "amount", amount.String())
		return nil, types.ErrTransferFailed
	}

	event := &types.ClaimEvent{
		ID:        uuid.New().String(),
		Claimant:  claimant,
		Amount:    new(big.Int).Set(amount),
		Root:      d.root,
		ClaimedAt: time.Now().UTC(),
	}
	d.publish(event)

	d.logger.Sugar().Infow("Claim completed",
		"event_id", event.ID,
		"claimant", claimant.Hex(),
		"amount", amount.String(),
	)

	return event, nil
}

// SetRoot overwrites the trusted merkle root. Administrative only. Root
// rotation never touches claimed flags: an account that claimed under an
// old root stays claimed forever.
func (d *Distributor) SetRoot(_ context.Context, caller common.Address, newRoot [32]byte) error {
	if !d.authorizer.IsAuthorized(caller) {
		return types.ErrUnauthorized
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.store.SaveRoot(newRoot); err != nil {
		return errors.Wrap(err, "failed to persist root")
	}
	d.root = newRoot
	d.rootSet = true

	d.logger.Sugar().Infow("Merkle root updated", "root", hexutil.Encode(newRoot[:]), "caller", caller.Hex())
	return nil
}

// SetPaused toggles the claim gate. Administrative only; administrative
// operations themselves stay available while paused.
func (d *Distributor) SetPaused(_ context.Context, caller common.Address, paused bool) error {
	if !d.authorizer.IsAuthorized(caller) {
		return types.ErrUnauthorized
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.store.SavePaused(paused); err != nil {
		return errors.Wrap(err, "failed to persist paused flag")
	}
	d.paused = paused

	d.logger.Sugar().Infow("Paused flag updated", "paused", paused, "caller", caller.Hex())
	return nil
}

// Withdraw pulls amount from the holding account to the calling admin.
func (d *Distributor) Withdraw(ctx context.Context, caller common.Address, amount *big.Int) error {
	if !d.authorizer.IsAuthorized(caller) {
		return types.ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return types.ErrInvalidAmount
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	balance, err := d.ledger.BalanceOf(ctx, d.holding)
	if err != nil {
		return errors.Wrap(err, "failed to read holding balance")
	}
	if balance.Cmp(amount) < 0 {
		return types.ErrInsufficientBalance
	}

	ok, err := d.ledger.Transfer(ctx, caller, amount)
	if err != nil {
		return errors.Wrap(types.ErrTransferFailed, err.Error())
	}
	if !ok {
		return types.ErrTransferFailed
	}

	d.logger.Sugar().Infow("Withdrawal completed", "caller", caller.Hex(), "amount", amount.String())
	return nil
}

// Balance returns the holding account's current token balance.
func (d *Distributor) Balance(ctx context.Context) (*big.Int, error) {
	return d.ledger.BalanceOf(ctx, d.holding)
}

// Root returns the trusted root and whether one has been set.
func (d *Distributor) Root() ([32]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.root, d.rootSet
}

// Paused reports whether the claim gate is suspended.
func (d *Distributor) Paused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paused
}

// IsClaimed reports whether an account already has a successful claim.
func (d *Distributor) IsClaimed(account common.Address) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.claimed[account]
}

// ClaimedCount returns the number of accounts with claims on record.
func (d *Distributor) ClaimedCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.claimed)
}

// HoldingAddress returns the account the distributor pays out of.
func (d *Distributor) HoldingAddress() common.Address {
	return d.holding
}

// Subscribe registers a claim-event channel. Events are delivered
// best-effort: a subscriber that falls behind its buffer drops events
// rather than stalling claims.
func (d *Distributor) Subscribe(buffer int) <-chan *types.ClaimEvent {
	ch := make(chan *types.ClaimEvent, buffer)

	d.subsMu.Lock()
	defer d.subsMu.Unlock()
	d.subscribers = append(d.subscribers, ch)

	return ch
}

func (d *Distributor) publish(event *types.ClaimEvent) {
	d.subsMu.RLock()
	defer d.subsMu.RUnlock()

	for _, ch := range d.subscribers {
		select {
		case ch <- event:
		default:
			d.logger.Sugar().Warnw("Dropping claim event for slow subscriber", "event_id", event.ID)
		}
	}
}
