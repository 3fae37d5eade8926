package merkle

import "github.com/ethereum/go-ethereum/common"

// Tree is a binary merkle tree over a distribution's allocation leaves.
// Pairs are hashed in sorted order, so proofs carry no left/right positions.
type Tree struct {
	// Leaves contains the allocation leaf hashes in tree order (sorted).
	Leaves [][32]byte

	// Root is the merkle root hash.
	Root [32]byte

	// leafIndex maps an account to its leaf position for proof generation.
	leafIndex map[common.Address]int

	// levels stores all tree levels bottom-up.
	// levels[0] = leaves, levels[len-1] = root.
	levels [][][32]byte
}
