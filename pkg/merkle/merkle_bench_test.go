package merkle

import (
	"fmt"
	"testing"
)

// BenchmarkBuildTree benchmarks tree construction with various sizes
func BenchmarkBuildTree(b *testing.B) {
	sizes := []int{10, 100, 1000, 10000}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("Allocs_%d", size), func(b *testing.B) {
			allocs := createTestAllocations(size)
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_, _ = BuildTree(allocs)
			}
		})
	}
}

// BenchmarkProofAt benchmarks proof generation
func BenchmarkProofAt(b *testing.B) {
	sizes := []int{10, 100, 1000, 10000}

	for _, size := range sizes {
		allocs := createTestAllocations(size)
		tree, _ := BuildTree(allocs)

		b.Run(fmt.Sprintf("Allocs_%d", size), func(b *testing.B) {
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_, _ = tree.ProofAt(i % size)
			}
		})
	}
}

// BenchmarkVerifyProof benchmarks proof verification
func BenchmarkVerifyProof(b *testing.B) {
	sizes := []int{10, 100, 1000, 10000}

	for _, size := range sizes {
		allocs := createTestAllocations(size)
		tree, _ := BuildTree(allocs)
		leaf := HashAllocation(allocs[0].Account, allocs[0].Amount)
		proof, _ := tree.Proof(allocs[0].Account)

		b.Run(fmt.Sprintf("Allocs_%d", size), func(b *testing.B) {
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_ = VerifyProof(leaf, proof, tree.Root)
			}
		})
	}
}

// BenchmarkHashAllocation benchmarks leaf hashing
func BenchmarkHashAllocation(b *testing.B) {
	alloc := createTestAllocations(1)[0]

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = HashAllocation(alloc.Account, alloc.Amount)
	}
}
