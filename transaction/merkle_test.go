// Package transaction tests - verifies Merkle tree functionality for data chunking and verification
package transaction

import (
	"strconv"
	"testing"

	"github.com/liteseed/gatewaycore/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syntheticData builds a deterministic byte buffer of the given size without
// reading any fixture file, so chunking/Merkle tests are self-contained.
func syntheticData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 256)
	}
	return data
}

// TestMerkle verifies comprehensive Merkle tree functionality against
// synthetic data generated in-test, rather than checked-in binary fixtures.
func TestMerkle(t *testing.T) {
	sizes := map[string]int{
		"single chunk under MIN_CHUNK_SIZE":     1024,
		"single chunk near MAX_CHUNK_SIZE":      MAX_CHUNK_SIZE - 1,
		"exactly two max chunks":                2 * MAX_CHUNK_SIZE,
		"several chunks with uneven remainder":  int(2.5 * MAX_CHUNK_SIZE),
		"many chunks spanning multiple layers":  9*MAX_CHUNK_SIZE + 12345,
	}

	for name, size := range sizes {
		t.Run("should validate all paths for "+name, func(t *testing.T) {
			data := syntheticData(size)

			tx := New(data, "", "", nil)
			tx.LastTx = "foo"
			tx.Reward = "1"

			err := tx.PrepareChunks(data)
			require.NoError(t, err)
			require.NotNil(t, tx.ChunkData)

			txDataRoot, err := crypto.Base64URLDecode(tx.DataRoot)
			require.NoError(t, err)

			for i := range tx.ChunkData.Chunks {
				chunk, err := tx.GetChunk(i, data)
				require.NoError(t, err)

				offset, err := strconv.Atoi(chunk.Offset)
				require.NoError(t, err)

				dataSize, err := strconv.Atoi(chunk.DataSize)
				require.NoError(t, err)

				dataPath, err := crypto.Base64URLDecode(chunk.DataPath)
				require.NoError(t, err)

				result, err := validatePath(txDataRoot, offset, 0, dataSize, dataPath)
				require.NoError(t, err)
				assert.NotNil(t, result)
			}
		})
	}

	t.Run("should build a tree whose root is stable across runs", func(t *testing.T) {
		data := syntheticData(3*MAX_CHUNK_SIZE + 777)

		rootA, err := generateTree(data)
		require.NoError(t, err)
		require.NotNil(t, rootA)

		rootB, err := generateTree(data)
		require.NoError(t, err)
		require.NotNil(t, rootB)

		assert.Equal(t, crypto.Base64URLEncode(rootA.ID), crypto.Base64URLEncode(rootB.ID))
	})

	t.Run("should build valid proofs from tree that validate against the root", func(t *testing.T) {
		data := syntheticData(4*MAX_CHUNK_SIZE + 42)

		rootNode, err := generateTree(data)
		require.NoError(t, err)

		proofs := generateProofs(rootNode, nil, 0)
		require.NotEmpty(t, proofs)

		for _, p := range proofs {
			result, err := validatePath(rootNode.ID, p.Offset, 0, len(data), p.Proof)
			require.NoError(t, err)
			assert.NotNil(t, result)
		}
	})

	t.Run("should flatten nested slices correctly", func(t *testing.T) {
		assert.Equal(t, []int{1, 2, 3, 4, 5}, flatten[int]([]any{1, []any{2, 3, []any{4, 5}}}))
		assert.Equal(t, []int{1, 2, 3}, flatten[int]([]any{1, []any{2, 3}}))
		assert.Equal(t, []int{1}, flatten[int]([]any{1}))
		assert.Equal(t, []int{1}, flatten[int]([]any{[]any{[]any{1}}}))
	})

	t.Run("should reject a tampered Merkle path", func(t *testing.T) {
		data := syntheticData(2*MAX_CHUNK_SIZE + 99)

		rootNode, err := generateTree(data)
		require.NoError(t, err)

		proofs := generateProofs(rootNode, nil, 0)
		require.NotEmpty(t, proofs)

		tampered := make([]byte, len(proofs[0].Proof))
		copy(tampered, proofs[0].Proof)
		tampered[0] ^= 0xFF

		result, err := validatePath(rootNode.ID, proofs[0].Offset, 0, len(data), tampered)
		assert.Nil(t, result)
		assert.Error(t, err)
	})
}
