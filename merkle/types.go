// Package merkle implements the ruleset-parametrized Arweave data-path
// validator: the same leaf/branch walk the teacher's transaction package
// uses to build proofs when signing, generalized here for the retrieval
// path to validate an arbitrary proof against one of four named
// strictness rulesets, including rebased proofs whose root covers a
// concatenation of transactions rather than a single one.
package merkle

import "github.com/liteseed/gatewaycore/gatewayerr"

// Ruleset selects how strictly a data path's chunk borders and splits
// are enforced. Rulesets are listed in ascending strictness; only
// OffsetRebaseSupport accepts a rebased proof.
type Ruleset int

const (
	Basic Ruleset = iota
	StrictBorders
	StrictDataSplit
	OffsetRebaseSupport
)

func (r Ruleset) String() string {
	switch r {
	case Basic:
		return "basic"
	case StrictBorders:
		return "strict_borders"
	case StrictDataSplit:
		return "strict_data_split"
	case OffsetRebaseSupport:
		return "offset_rebase_support"
	default:
		return "unknown"
	}
}

const (
	// MaxChunkSize is the maximum (and, outside of transaction
	// boundaries, exact) size of a data chunk: 256 KiB.
	MaxChunkSize = 256 * 1024
	// MinChunkSize is the minimum chunk size the chunker will produce
	// short of the final chunk in a transaction.
	MinChunkSize = 32 * 1024
	// HashSize is the width of a SHA-256 digest, used for leaf/branch
	// node ids.
	HashSize = 32
	// NoteSize is the width of a big-endian byte-range marker in a leaf
	// or branch node.
	NoteSize = 32
)

// Config carries the chain-protocol thresholds that select a ruleset by
// weave offset. These are NOT implementation constants: spec.md §9
// explicitly calls out STRICT_DATA_SPLIT_THRESHOLD and
// MERKLE_REBASE_SUPPORT_THRESHOLD as values that must be imported from
// the canonical chain release rather than hard-coded here, so callers
// MUST populate this from their own chain-config source. A zero Config
// degrades gracefully to always selecting Basic (documented, not silent:
// GetRulesetForOffset never guesses a nonzero threshold).
type Config struct {
	StrictDataSplitThreshold    uint64
	MerkleRebaseSupportThreshold uint64
}

// ParsedDataPath is the result of walking a validated data path: the
// absolute byte range of the chunk it resolves to, whether the proof
// carried a rebasing prefix, and the terminal leaf hash.
type ParsedDataPath struct {
	StartOffset             int64
	EndOffset               int64
	ChunkSize               int64
	IsRebased               bool
	RebaseDepth             int
	IsRightMostInItsSubTree bool
	ChunkData               []byte
}

// ErrInvalidProof is returned (wrapped with context) for any hash
// mismatch, malformed length, or ruleset violation encountered walking a
// path. Aliased here so callers of this package can errors.Is against
// the shared gatewayerr sentinel without importing it directly.
var ErrInvalidProof = gatewayerr.ErrInvalidProof
