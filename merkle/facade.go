package merkle

import "fmt"

// GetRulesetForOffset selects a ruleset by weave offset: Basic below
// cfg.StrictDataSplitThreshold, StrictDataSplit at or above it, and
// OffsetRebaseSupport at or above cfg.MerkleRebaseSupportThreshold. A
// zero threshold in Config is treated as "not yet reached" rather than
// "always active", so an unconfigured Config always resolves to Basic —
// see Config's doc comment on why these are never hard-coded here.
func GetRulesetForOffset(offset uint64, cfg Config) Ruleset {
	if cfg.MerkleRebaseSupportThreshold > 0 && offset >= cfg.MerkleRebaseSupportThreshold {
		return OffsetRebaseSupport
	}
	if cfg.StrictDataSplitThreshold > 0 && offset >= cfg.StrictDataSplitThreshold {
		return StrictDataSplit
	}
	return Basic
}

// ParseDataPathRequest bundles the inputs to ParseDataPathAuto. Ruleset
// is optional: a pointer, so that nil ("unspecified") is distinct from
// an explicit Basic.
type ParseDataPathRequest struct {
	DataRoot []byte
	DataSize int64
	DataPath []byte
	Offset   int64
	Ruleset  *Ruleset
}

// ParseDataPathAuto parses a data path under req.Ruleset when it is set,
// otherwise under the ruleset GetRulesetForOffset selects from the
// request's Offset.
func ParseDataPathAuto(req ParseDataPathRequest, cfg Config) (*ParsedDataPath, error) {
	ruleset := GetRulesetForOffset(uint64(req.Offset), cfg)
	if req.Ruleset != nil {
		ruleset = *req.Ruleset
	}
	return ParseDataPath(req.DataRoot, req.DataSize, req.DataPath, req.Offset, ruleset)
}

// ExtractNote returns the big-endian note (byte-range marker) from the
// final 32 bytes of a leaf or branch path segment.
func ExtractNote(path []byte) (int64, error) {
	if len(path) < NoteSize {
		return 0, fmt.Errorf("%w: path shorter than a note", ErrInvalidProof)
	}
	return beToInt64(path[len(path)-NoteSize:]), nil
}

// ExtractRoot computes the hash a leaf or branch path segment would need
// to match to be valid, identifying which shape it is by exact length:
// HashSize+NoteSize is a leaf (hash(hash(dataHash)‖hash(note))); anything
// at least 2*HashSize+NoteSize is a branch
// (hash(hash(left)‖hash(right)‖hash(note))).
func ExtractRoot(path []byte) ([]byte, error) {
	switch {
	case len(path) == HashSize+NoteSize:
		return hash2(path[:HashSize], path[HashSize:HashSize+NoteSize]), nil
	case len(path) >= 2*HashSize+NoteSize:
		return hash3(path[:HashSize], path[HashSize:2*HashSize], path[2*HashSize:2*HashSize+NoteSize]), nil
	default:
		return nil, fmt.Errorf("%w: path length %d matches neither leaf nor branch", ErrInvalidProof, len(path))
	}
}
