package merkle

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/driplabs/merkledrop-go/pkg/types"
)

// createTestAllocations creates n allocations with distinct accounts and
// increasing amounts.
func createTestAllocations(n int) []*types.Allocation {
	allocs := make([]*types.Allocation, n)
	for i := 0; i < n; i++ {
		allocs[i] = &types.Allocation{
			Account: common.BigToAddress(big.NewInt(int64(i + 1))),
			Amount:  big.NewInt(int64((i + 1) * 100)),
		}
	}
	return allocs
}

func TestBuildTree(t *testing.T) {
	testCases := []struct {
		name      string
		numAllocs int
	}{
		{"Single allocation", 1},
		{"Two allocations", 2},
		{"Three allocations", 3},
		{"Four allocations (power of 2)", 4},
		{"Seven allocations", 7},
		{"Eight allocations (power of 2)", 8},
		{"Fifteen allocations", 15},
		{"Sixteen allocations (power of 2)", 16},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			allocs := createTestAllocations(tc.numAllocs)
			tree, err := BuildTree(allocs)
			require.NoError(t, err)
			require.NotNil(t, tree)

			require.Equal(t, tc.numAllocs, len(tree.Leaves))
			require.NotEqual(t, [32]byte{}, tree.Root)

			// Every allocation's proof must verify against the root.
			for _, alloc := range allocs {
				proof, err := tree.Proof(alloc.Account)
				require.NoError(t, err)

				leaf := HashAllocation(alloc.Account, alloc.Amount)
				require.True(t, VerifyProof(leaf, proof, tree.Root),
					"proof for account %s should be valid", alloc.Account.Hex())
			}
		})
	}
}

func TestBuildTreeEmpty(t *testing.T) {
	tree, err := BuildTree(nil)
	require.Error(t, err)
	require.Nil(t, tree)
	require.Contains(t, err.Error(), "empty")
}

func TestBuildTreeDuplicateAccount(t *testing.T) {
	allocs := createTestAllocations(3)
	allocs[2].Account = allocs[0].Account

	tree, err := BuildTree(allocs)
	require.Error(t, err)
	require.Nil(t, tree)
	require.Contains(t, err.Error(), "duplicate")
}

func TestBuildTreeDeterministicOrder(t *testing.T) {
	allocs := createTestAllocations(7)
	tree1, err := BuildTree(allocs)
	require.NoError(t, err)

	// Reverse input order; root must not change.
	reversed := make([]*types.Allocation, len(allocs))
	for i, a := range allocs {
		reversed[len(allocs)-1-i] = a
	}
	tree2, err := BuildTree(reversed)
	require.NoError(t, err)

	require.Equal(t, tree1.Root, tree2.Root)
}

func TestVerifyProof(t *testing.T) {
	allocs := createTestAllocations(4)
	tree, err := BuildTree(allocs)
	require.NoError(t, err)

	leaf := HashAllocation(allocs[0].Account, allocs[0].Amount)
	proof, err := tree.Proof(allocs[0].Account)
	require.NoError(t, err)

	t.Run("Valid proof", func(t *testing.T) {
		require.True(t, VerifyProof(leaf, proof, tree.Root))
	})

	t.Run("Wrong root", func(t *testing.T) {
		invalidRoot := [32]byte{1, 2, 3, 4, 5}
		require.False(t, VerifyProof(leaf, proof, invalidRoot))
	})

	t.Run("Tampered leaf", func(t *testing.T) {
		tampered := leaf
		tampered[0] ^= 0xFF
		require.False(t, VerifyProof(tampered, proof, tree.Root))
	})

	t.Run("Tampered sibling", func(t *testing.T) {
		tampered := make([][32]byte, len(proof))
		copy(tampered, proof)
		tampered[0][31] ^= 0x01
		require.False(t, VerifyProof(leaf, tampered, tree.Root))
	})

	t.Run("Truncated proof", func(t *testing.T) {
		require.False(t, VerifyProof(leaf, proof[:len(proof)-1], tree.Root))
	})

	t.Run("Over-long proof", func(t *testing.T) {
		extended := append(append([][32]byte{}, proof...), [32]byte{0xAA})
		require.False(t, VerifyProof(leaf, extended, tree.Root))
	})

	t.Run("Wrong amount", func(t *testing.T) {
		wrongLeaf := HashAllocation(allocs[0].Account, big.NewInt(999999))
		require.False(t, VerifyProof(wrongLeaf, proof, tree.Root))
	})

	t.Run("Wrong account", func(t *testing.T) {
		wrongLeaf := HashAllocation(common.BigToAddress(big.NewInt(0xBEEF)), allocs[0].Amount)
		require.False(t, VerifyProof(wrongLeaf, proof, tree.Root))
	})
}

// Single-bit mutations across every proof element must break verification.
func TestVerifyProofBitFlips(t *testing.T) {
	allocs := createTestAllocations(8)
	tree, err := BuildTree(allocs)
	require.NoError(t, err)

	leaf := HashAllocation(allocs[3].Account, allocs[3].Amount)
	proof, err := tree.Proof(allocs[3].Account)
	require.NoError(t, err)
	require.True(t, VerifyProof(leaf, proof, tree.Root))

	for elem := range proof {
		for bit := 0; bit < 8; bit++ {
			mutated := make([][32]byte, len(proof))
			copy(mutated, proof)
			mutated[elem][0] ^= 1 << bit
			require.False(t, VerifyProof(leaf, mutated, tree.Root),
				"bit flip in element %d bit %d should invalidate proof", elem, bit)
		}
	}
}

// A single-leaf tree's root is the leaf itself, and the empty proof
// verifies exactly that leaf.
func TestVerifyProofSingleLeaf(t *testing.T) {
	allocs := createTestAllocations(1)
	tree, err := BuildTree(allocs)
	require.NoError(t, err)

	leaf := HashAllocation(allocs[0].Account, allocs[0].Amount)
	require.Equal(t, leaf, tree.Root)
	require.True(t, VerifyProof(leaf, nil, tree.Root))

	other := HashAllocation(common.BigToAddress(big.NewInt(0xDEAD)), big.NewInt(1))
	require.False(t, VerifyProof(other, nil, tree.Root))
}

// Pair hashing is commutative, so verification never depends on sibling
// position.
func TestHashPairCommutative(t *testing.T) {
	a := [32]byte{1}
	b := [32]byte{2}
	require.Equal(t, hashPair(a, b), hashPair(b, a))
}

func TestProofUnknownAccount(t *testing.T) {
	allocs := createTestAllocations(4)
	tree, err := BuildTree(allocs)
	require.NoError(t, err)

	_, err = tree.Proof(common.BigToAddress(big.NewInt(0xCAFE)))
	require.Error(t, err)
	require.Contains(t, err.Error(), "no allocation")
}

func TestProofAtOutOfBounds(t *testing.T) {
	allocs := createTestAllocations(4)
	tree, err := BuildTree(allocs)
	require.NoError(t, err)

	_, err = tree.ProofAt(-1)
	require.Error(t, err)
	_, err = tree.ProofAt(4)
	require.Error(t, err)
}

func TestHashAllocation(t *testing.T) {
	account := common.HexToAddress("0x1111111111111111111111111111111111111111")

	h1 := HashAllocation(account, big.NewInt(100))
	h2 := HashAllocation(account, big.NewInt(100))
	require.Equal(t, h1, h2, "leaf hashing must be deterministic")

	h3 := HashAllocation(account, big.NewInt(101))
	require.NotEqual(t, h1, h3, "amount must bind into the leaf")

	h4 := HashAllocation(common.HexToAddress("0x2222222222222222222222222222222222222222"), big.NewInt(100))
	require.NotEqual(t, h1, h4, "account must bind into the leaf")
}
