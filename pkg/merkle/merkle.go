package merkle

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/driplabs/merkledrop-go/pkg/types"
)

// VerifyProof recomputes a root from a leaf and its sibling path and reports
// whether it matches the expected root.
//
// Each step hashes the running value with the next sibling in sorted order:
// keccak256(min(a,b) || max(a,b)). Because pairing is commutative, the proof
// carries no positional information. An empty proof means the leaf itself
// must equal the root (single-leaf tree).
//
// Pure and deterministic; never errors. An over-long or tampered proof simply
// fails to reconstruct the root.
func VerifyProof(leaf [32]byte, proof [][32]byte, root [32]byte) bool {
	current := leaf
	for _, sibling := range proof {
		current = hashPair(current, sibling)
	}
	return current == root
}

// HashAllocation derives the merkle leaf for one allocation:
// keccak256(account (20 bytes) || amount (32 bytes, big-endian)).
// The same convention must be used by whatever built the tree, or every
// proof will fail verification.
func HashAllocation(account common.Address, amount *big.Int) [32]byte {
	data := make([]byte, 0, 20+32)
	data = append(data, account.Bytes()...)

	var amountBuf [32]byte
	amount.FillBytes(amountBuf[:])
	data = append(data, amountBuf[:]...)

	return [32]byte(crypto.Keccak256Hash(data))
}

// BuildTree constructs a merkle tree from a distribution's allocation table.
// Leaves are sorted by hash before building so the root is deterministic
// regardless of input order. With an odd number of nodes at any level, the
// last node is duplicated.
func BuildTree(allocs []*types.Allocation) (*Tree, error) {
	if len(allocs) == 0 {
		return nil, fmt.Errorf("cannot build merkle tree from empty allocation list")
	}

	seen := make(map[common.Address]struct{}, len(allocs))
	for i, alloc := range allocs {
		if err := alloc.Validate(); err != nil {
			return nil, fmt.Errorf("allocation %d: %w", i, err)
		}
		if _, dup := seen[alloc.Account]; dup {
			return nil, fmt.Errorf("duplicate allocation for account %s", alloc.Account.Hex())
		}
		seen[alloc.Account] = struct{}{}
	}

	// Sort by leaf hash so the root is independent of input order.
	sortedAllocs := make([]*types.Allocation, len(allocs))
	copy(sortedAllocs, allocs)
	sort.Slice(sortedAllocs, func(i, j int) bool {
		a := HashAllocation(sortedAllocs[i].Account, sortedAllocs[i].Amount)
		b := HashAllocation(sortedAllocs[j].Account, sortedAllocs[j].Amount)
		return bytes.Compare(a[:], b[:]) < 0
	})

	leafIndex := make(map[common.Address]int, len(allocs))
	leaves := make([][32]byte, len(allocs))
	for i, alloc := range sortedAllocs {
		leafIndex[alloc.Account] = i
		leaves[i] = HashAllocation(alloc.Account, alloc.Amount)
	}

	levels := make([][][32]byte, 0)
	levels = append(levels, leaves)

	currentLevel := leaves
	for len(currentLevel) > 1 {
		nextLevel := make([][32]byte, 0, (len(currentLevel)+1)/2)

		for i := 0; i < len(currentLevel); i += 2 {
			left := currentLevel[i]
			right := left
			if i+1 < len(currentLevel) {
				right = currentLevel[i+1]
			}
			nextLevel = append(nextLevel, hashPair(left, right))
		}

		levels = append(levels, nextLevel)
		currentLevel = nextLevel
	}

	return &Tree{
		Leaves:    leaves,
		Root:      currentLevel[0],
		leafIndex: leafIndex,
		levels:    levels,
	}, nil
}

// Proof returns the sibling path for an account's leaf.
func (t *Tree) Proof(account common.Address) ([][32]byte, error) {
	index, ok := t.leafIndex[account]
	if !ok {
		return nil, fmt.Errorf("account %s has no allocation in this tree", account.Hex())
	}
	return t.ProofAt(index)
}

// ProofAt returns the sibling path for the leaf at the given index.
func (t *Tree) ProofAt(leafIndex int) ([][32]byte, error) {
	if leafIndex < 0 || leafIndex >= len(t.Leaves) {
		return nil, fmt.Errorf("leaf index %d out of bounds (tree has %d leaves)", leafIndex, len(t.Leaves))
	}

	proof := make([][32]byte, 0)
	index := leafIndex

	for level := 0; level < len(t.levels)-1; level++ {
		currentLevel := t.levels[level]

		siblingIndex := index + 1
		if index%2 == 1 {
			siblingIndex = index - 1
		}
		// Last node of an odd level pairs with itself.
		if siblingIndex >= len(currentLevel) {
			siblingIndex = index
		}

		proof = append(proof, currentLevel[siblingIndex])
		index /= 2
	}

	return proof, nil
}

// hashPair computes keccak256 of two 32-byte hashes in sorted order.
func hashPair(a, b [32]byte) [32]byte {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}

	data := make([]byte, 64)
	copy(data[0:32], a[:])
	copy(data[32:64], b[:])

	return [32]byte(crypto.Keccak256Hash(data))
}
