package types

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Allocation is one entry of the distribution table: an account and the
// amount of tokens it is entitled to claim. Amounts are uint256-ranged,
// matching the on-chain token denomination.
type Allocation struct {
	Account common.Address `json:"account"`
	Amount  *big.Int       `json:"amount"`
}

// Validate checks an allocation is usable as a merkle leaf input.
func (a *Allocation) Validate() error {
	if a.Account == (common.Address{}) {
		return fmt.Errorf("allocation account cannot be the zero address")
	}
	if a.Amount == nil || a.Amount.Sign() < 0 {
		return fmt.Errorf("allocation amount must be a non-negative integer")
	}
	if a.Amount.BitLen() > 256 {
		return fmt.Errorf("allocation amount exceeds uint256 range")
	}
	return nil
}

// ClaimEvent is emitted once per successful claim for external observers
// and indexers.
type ClaimEvent struct {
	ID        string         `json:"id"`
	Claimant  common.Address `json:"claimant"`
	Amount    *big.Int       `json:"amount"`
	Root      common.Hash    `json:"root"`
	ClaimedAt time.Time      `json:"claimed_at"`
}

// ClaimRequestV1 is the wire format of a claim submission.
// Amount is a decimal or 0x-prefixed string so uint256 values survive JSON.
type ClaimRequestV1 struct {
	Account string   `json:"account"`
	Amount  string   `json:"amount"`
	Proof   []string `json:"proof"`
}

// ClaimResponseV1 acknowledges a finalized claim.
type ClaimResponseV1 struct {
	Claimed  bool   `json:"claimed"`
	EventID  string `json:"event_id"`
	Claimant string `json:"claimant"`
	Amount   string `json:"amount"`
}

// SetRootRequestV1 is the admin request to rotate the trusted root.
type SetRootRequestV1 struct {
	Root string `json:"root"`
}

// SetPausedRequestV1 is the admin request to toggle the claim gate.
type SetPausedRequestV1 struct {
	Paused bool `json:"paused"`
}

// WithdrawRequestV1 is the admin request to pull unclaimed funds.
type WithdrawRequestV1 struct {
	Amount string `json:"amount"`
}

// StateResponseV1 surfaces the distributor's observable state.
type StateResponseV1 struct {
	Root         string `json:"root"`
	Paused       bool   `json:"paused"`
	ClaimedCount int    `json:"claimed_count"`
	Balance      string `json:"balance"`
}

// ClaimedResponseV1 reports the claimed flag for a single account.
type ClaimedResponseV1 struct {
	Account string `json:"account"`
	Claimed bool   `json:"claimed"`
}

// ParseAmount parses a decimal or 0x-prefixed token amount, rejecting
// negatives and values outside uint256 range.
func ParseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}

	var amount *big.Int
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		v, err := hexutil.DecodeBig(s)
		if err != nil {
			return nil, fmt.Errorf("invalid hex amount %q: %w", s, err)
		}
		amount = v
	} else {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("invalid decimal amount %q", s)
		}
		amount = v
	}

	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount cannot be negative")
	}
	if amount.BitLen() > 256 {
		return nil, fmt.Errorf("amount exceeds uint256 range")
	}
	return amount, nil
}

// ParseProof decodes a hex-encoded sibling path into 32-byte hashes.
func ParseProof(elems []string) ([][32]byte, error) {
	proof := make([][32]byte, len(elems))
	for i, e := range elems {
		b, err := hexutil.Decode(e)
		if err != nil {
			return nil, fmt.Errorf("invalid proof element %d: %w", i, err)
		}
		if len(b) != 32 {
			return nil, fmt.Errorf("proof element %d must be 32 bytes, got %d", i, len(b))
		}
		copy(proof[i][:], b)
	}
	return proof, nil
}

// EncodeProof is the inverse of ParseProof, used by the tree generator tool.
func EncodeProof(proof [][32]byte) []string {
	out := make([]string, len(proof))
	for i, p := range proof {
		out[i] = hexutil.Encode(p[:])
	}
	return out
}
