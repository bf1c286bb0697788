package merkle

import (
	"crypto/rand"
	"testing"

	"github.com/liteseed/gatewaycore/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomBytes(n int) []byte {
	b := make([]byte, n)
	_, err := rand.Read(b)
	if err != nil {
		panic(err)
	}
	return b
}

// TestParseDataPathScenarioS2 reproduces spec scenario S2: a single
// full-size leaf under strict_data_split.
func TestParseDataPathScenarioS2(t *testing.T) {
	dataHash := crypto.SHA256(randomBytes(32))
	note := beEncode32(262144)
	leafHash := hash2(dataHash, note)

	path := append(append([]byte{}, dataHash...), note...)

	result, err := ParseDataPath(leafHash, 262144, path, 262143, StrictDataSplit)
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.StartOffset)
	assert.Equal(t, int64(262144), result.EndOffset)
	assert.Equal(t, int64(262144), result.ChunkSize)
	assert.False(t, result.IsRebased)
	assert.Equal(t, 0, result.RebaseDepth)
}

// TestParseDataPathScenarioS3 reproduces spec scenario S3: strict split
// rejects an oversized, misaligned single chunk.
func TestParseDataPathScenarioS3(t *testing.T) {
	dataHash := crypto.SHA256(randomBytes(32))
	note := beEncode32(300000)
	leafHash := hash2(dataHash, note)

	path := append(append([]byte{}, dataHash...), note...)

	_, err := ParseDataPath(leafHash, 300000, path, 100000, StrictDataSplit)
	assert.ErrorIs(t, err, ErrInvalidProof)
}

// TestParseDataPathScenarioS4 reproduces spec scenario S4: a single-level
// rebased proof.
func TestParseDataPathScenarioS4(t *testing.T) {
	dataHash := crypto.SHA256(randomBytes(32))
	leafNote := beEncode32(262144)
	leafHash := hash2(dataHash, leafNote)

	randomRight := randomBytes(32)
	boundary := beEncode32(262144)

	dataRoot := hash3(leafHash, randomRight, boundary)

	path := make([]byte, 0, 128+64)
	path = append(path, make([]byte, 32)...) // zero marker
	path = append(path, leafHash...)
	path = append(path, randomRight...)
	path = append(path, boundary...)
	path = append(path, dataHash...)
	path = append(path, leafNote...)

	result, err := ParseDataPath(dataRoot, 1000000, path, 100000, OffsetRebaseSupport)
	require.NoError(t, err)
	assert.True(t, result.IsRebased)
	assert.Equal(t, 1, result.RebaseDepth)
	assert.Equal(t, int64(0), result.StartOffset)
	assert.Equal(t, int64(262144), result.EndOffset)
}

// TestParseDataPathRejectsRebaseUnderNonRebaseRuleset checks that a
// rebased-looking prefix (zero marker) is NOT consumed as a rebase under
// a ruleset that doesn't allow it — it instead fails as a malformed
// branch/leaf.
func TestParseDataPathRejectsRebaseUnderNonRebaseRuleset(t *testing.T) {
	dataHash := crypto.SHA256(randomBytes(32))
	leafNote := beEncode32(262144)
	leafHash := hash2(dataHash, leafNote)
	randomRight := randomBytes(32)
	boundary := beEncode32(262144)
	dataRoot := hash3(leafHash, randomRight, boundary)

	path := make([]byte, 0, 192)
	path = append(path, make([]byte, 32)...)
	path = append(path, leafHash...)
	path = append(path, randomRight...)
	path = append(path, boundary...)
	path = append(path, dataHash...)
	path = append(path, leafNote...)

	_, err := ParseDataPath(dataRoot, 1000000, path, 100000, StrictDataSplit)
	assert.Error(t, err)
}

// buildTwoLeafTree constructs a minimal branch with two leaves of
// sizes size1, size2, returning the root hash and each leaf's full proof
// (branch prefix + leaf suffix).
func buildTwoLeafTree(t *testing.T, size1, size2 int64) (root []byte, proof0, proof1 []byte) {
	t.Helper()
	dataHash0 := crypto.SHA256(randomBytes(32))
	note0 := beEncode32(size1)
	leafHash0 := hash2(dataHash0, note0)

	dataHash1 := crypto.SHA256(randomBytes(32))
	note1 := beEncode32(size1 + size2)
	leafHash1 := hash2(dataHash1, note1)

	branchOffset := beEncode32(size1)
	branchHash := hash3(leafHash0, leafHash1, branchOffset)

	proof0 = append(append(append([]byte{}, leafHash0...), leafHash1...), branchOffset...)
	proof0 = append(proof0, dataHash0...)
	proof0 = append(proof0, note0...)

	proof1 = append(append(append([]byte{}, leafHash0...), leafHash1...), branchOffset...)
	proof1 = append(proof1, dataHash1...)
	proof1 = append(proof1, note1...)

	return branchHash, proof0, proof1
}

func TestParseDataPathTwoLeafTree(t *testing.T) {
	size1, size2 := int64(262144), int64(100000)
	root, proof0, proof1 := buildTwoLeafTree(t, size1, size2)

	r0, err := ParseDataPath(root, size1+size2, proof0, 1000, StrictBorders)
	require.NoError(t, err)
	assert.Equal(t, int64(0), r0.StartOffset)
	assert.Equal(t, size1, r0.EndOffset)

	r1, err := ParseDataPath(root, size1+size2, proof1, size1+500, StrictBorders)
	require.NoError(t, err)
	assert.Equal(t, size1, r1.StartOffset)
	assert.Equal(t, size1+size2, r1.EndOffset)
}

// TestInvariantStricterNeverWidensBoundary checks invariant 5: a
// stricter-or-equal ruleset never produces a boundary outside the
// corresponding Basic result's boundary, for a chunk that satisfies both.
func TestInvariantStricterNeverWidensBoundary(t *testing.T) {
	size1, size2 := int64(262144), int64(100000)
	root, proof0, _ := buildTwoLeafTree(t, size1, size2)

	basic, err := ParseDataPath(root, size1+size2, proof0, 1000, Basic)
	require.NoError(t, err)

	strict, err := ParseDataPath(root, size1+size2, proof0, 1000, StrictBorders)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, strict.StartOffset, basic.StartOffset)
	assert.LessOrEqual(t, strict.EndOffset, basic.EndOffset)
}

// TestInvariantExtractRootRoundTrips checks invariant 4:
// extractRoot(extract_path_of(leaf, offset)) round-trips to the leaf hash.
func TestInvariantExtractRootRoundTrips(t *testing.T) {
	dataHash := crypto.SHA256(randomBytes(32))
	note := beEncode32(262144)
	leafHash := hash2(dataHash, note)
	leafPath := append(append([]byte{}, dataHash...), note...)

	root, err := ExtractRoot(leafPath)
	require.NoError(t, err)
	assert.Equal(t, leafHash, root)

	n, err := ExtractNote(leafPath)
	require.NoError(t, err)
	assert.Equal(t, int64(262144), n)
}

func TestGetRulesetForOffset(t *testing.T) {
	cfg := Config{StrictDataSplitThreshold: 1000, MerkleRebaseSupportThreshold: 2000}

	assert.Equal(t, Basic, GetRulesetForOffset(500, cfg))
	assert.Equal(t, StrictDataSplit, GetRulesetForOffset(1000, cfg))
	assert.Equal(t, StrictDataSplit, GetRulesetForOffset(1999, cfg))
	assert.Equal(t, OffsetRebaseSupport, GetRulesetForOffset(2000, cfg))
	assert.Equal(t, OffsetRebaseSupport, GetRulesetForOffset(999999, cfg))
}

func TestGetRulesetForOffsetZeroConfigIsBasic(t *testing.T) {
	assert.Equal(t, Basic, GetRulesetForOffset(123456789, Config{}))
}
