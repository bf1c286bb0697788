package merkle

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/liteseed/gatewaycore/crypto"
)

// walkState threads the narrowing [leftBound, rightBound) window and
// rebase bookkeeping through the recursive walk. Bounds are local to the
// current (possibly rebased) subtree; leftBoundShift translates a local
// bound back to the absolute offset space the caller asked about.
type walkState struct {
	leftBound       int64
	rightBound      int64
	leftBoundShift  int64
	subtreeDataSize int64
	rebaseDepth     int
	isRightMostKnown bool
	isRightMost      bool
	ruleset          Ruleset
}

// ParseDataPath validates path against root under ruleset, returning the
// resolved chunk boundaries. dest is the absolute byte offset being
// looked up within a data of size dataSize.
func ParseDataPath(root []byte, dataSize int64, path []byte, dest int64, ruleset Ruleset) (*ParsedDataPath, error) {
	st := &walkState{
		leftBound:       0,
		rightBound:      dataSize,
		leftBoundShift:  0,
		subtreeDataSize: dataSize,
		ruleset:         ruleset,
	}
	return walk(root, dest, dest, path, st)
}

func walk(currentHash []byte, dest int64, absoluteDest int64, path []byte, st *walkState) (*ParsedDataPath, error) {
	if st.rightBound <= 0 {
		return nil, fmt.Errorf("%w: right bound <= 0", ErrInvalidProof)
	}
	if dest >= st.rightBound {
		dest = st.rightBound - 1
	}
	if dest < 0 {
		dest = 0
	}

	if allowsRebase(st.ruleset) && len(path) >= 128 && isAllZero(path[:32]) {
		return walkRebase(currentHash, absoluteDest, path, st)
	}

	if len(path) == HashSize+NoteSize {
		return walkLeaf(currentHash, path, st)
	}
	if len(path) < 2*HashSize+NoteSize {
		return nil, fmt.Errorf("%w: malformed path length %d", ErrInvalidProof, len(path))
	}
	return walkBranch(currentHash, dest, absoluteDest, path, st)
}

func walkRebase(currentHash []byte, absoluteDest int64, path []byte, st *walkState) (*ParsedDataPath, error) {
	leftRoot := path[32:64]
	rightRoot := path[64:96]
	boundaryBuf := path[96:128]
	boundary := beToInt64(boundaryBuf)

	h := hash3(leftRoot, rightRoot, boundaryBuf)
	if !bytes.Equal(h, currentHash) {
		return nil, fmt.Errorf("%w: rebase prefix hash mismatch", ErrInvalidProof)
	}

	absLeft := st.leftBound + st.leftBoundShift
	absRight := st.rightBound + st.leftBoundShift

	var nextHash []byte
	var newLeft, newRight int64
	if absoluteDest < boundary {
		nextHash = leftRoot
		newLeft, newRight = absLeft, boundary
	} else {
		nextHash = rightRoot
		newLeft, newRight = boundary, absRight
	}
	if newRight <= newLeft {
		return nil, fmt.Errorf("%w: rebased subtree has non-positive width", ErrInvalidProof)
	}

	st.leftBoundShift = newLeft
	st.leftBound = 0
	st.rightBound = newRight - newLeft
	st.subtreeDataSize = st.rightBound
	st.rebaseDepth++
	st.isRightMostKnown = false
	st.isRightMost = false

	localDest := absoluteDest - st.leftBoundShift
	return walk(nextHash, localDest, absoluteDest, path[128:], st)
}

func walkLeaf(currentHash []byte, path []byte, st *walkState) (*ParsedDataPath, error) {
	dataHash := path[:HashSize]
	note := path[HashSize : HashSize+NoteSize]

	h := hash2(dataHash, note)
	if !bytes.Equal(h, currentHash) {
		return nil, fmt.Errorf("%w: leaf hash mismatch", ErrInvalidProof)
	}

	noteVal := beToInt64(note)
	if err := st.checkLeafRules(noteVal); err != nil {
		return nil, err
	}

	end := min64(st.rightBound, noteVal)
	if end < st.leftBound+1 {
		end = st.leftBound + 1
	}

	return &ParsedDataPath{
		StartOffset:             st.leftBound + st.leftBoundShift,
		EndOffset:               end + st.leftBoundShift,
		ChunkSize:               end - st.leftBound,
		IsRebased:               st.rebaseDepth > 0,
		RebaseDepth:             st.rebaseDepth,
		IsRightMostInItsSubTree: st.isRightMost,
		ChunkData:               h,
	}, nil
}

func walkBranch(currentHash []byte, dest int64, absoluteDest int64, path []byte, st *walkState) (*ParsedDataPath, error) {
	left := path[:HashSize]
	right := path[HashSize : 2*HashSize]
	noteBuf := path[2*HashSize : 2*HashSize+NoteSize]
	remainder := path[2*HashSize+NoteSize:]
	branchOffset := beToInt64(noteBuf)

	h := hash3(left, right, noteBuf)
	if !bytes.Equal(h, currentHash) {
		return nil, fmt.Errorf("%w: branch hash mismatch", ErrInvalidProof)
	}

	if dest < branchOffset {
		st.rightBound = min64(st.rightBound, branchOffset)
		st.isRightMostKnown = true
		st.isRightMost = false
		return walk(left, dest, absoluteDest, remainder, st)
	}
	st.leftBound = max64(st.leftBound, branchOffset)
	if !st.isRightMostKnown {
		st.isRightMostKnown = true
		st.isRightMost = true
	}
	return walk(right, dest, absoluteDest, remainder, st)
}

func (st *walkState) checkLeafRules(note int64) error {
	switch st.ruleset {
	case Basic:
		return nil
	case StrictBorders:
		return st.checkBorders(note)
	case StrictDataSplit:
		if err := st.checkBorders(note); err != nil {
			return err
		}
		return st.checkStrictSplit(note)
	case OffsetRebaseSupport:
		if err := st.checkBorders(note); err != nil {
			return err
		}
		return st.checkRelaxedSplit(note)
	default:
		return nil
	}
}

func (st *walkState) checkBorders(note int64) error {
	end := min64(st.rightBound, note)
	if end-st.leftBound > MaxChunkSize {
		return fmt.Errorf("%w: chunk exceeds max chunk size", ErrInvalidProof)
	}
	if st.rightBound-st.leftBound > MaxChunkSize {
		return fmt.Errorf("%w: window exceeds max chunk size", ErrInvalidProof)
	}
	return nil
}

func (st *walkState) checkStrictSplit(note int64) error {
	end := min64(st.rightBound, note)
	chunkSize := end - st.leftBound
	aligned := st.leftBound%MaxChunkSize == 0

	isFullSize := chunkSize == MaxChunkSize && aligned
	isLast := end == st.subtreeDataSize &&
		st.rightBound%MaxChunkSize > 0 &&
		st.leftBound <= (st.rightBound/MaxChunkSize)*MaxChunkSize
	isSecondToLast := aligned &&
		st.subtreeDataSize-st.leftBound > MaxChunkSize &&
		st.subtreeDataSize-st.leftBound < 2*MaxChunkSize

	if isFullSize || isLast || isSecondToLast {
		return nil
	}
	return fmt.Errorf("%w: chunk violates strict_data_split rules", ErrInvalidProof)
}

func (st *walkState) checkRelaxedSplit(note int64) error {
	end := min64(st.rightBound, note)
	chunkSize := end - st.leftBound
	if chunkSize == MaxChunkSize {
		return nil
	}
	if st.isRightMostKnown && st.isRightMost {
		return nil
	}
	if st.leftBound%MaxChunkSize == 0 {
		return nil
	}
	return fmt.Errorf("%w: chunk violates offset_rebase_support relaxed split rules", ErrInvalidProof)
}

func allowsRebase(r Ruleset) bool { return r == OffsetRebaseSupport }

func isAllZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

func hash2(a, b []byte) []byte {
	ha := crypto.SHA256(a)
	hb := crypto.SHA256(b)
	return crypto.SHA256(append(append([]byte{}, ha...), hb...))
}

func hash3(a, b, c []byte) []byte {
	ha := crypto.SHA256(a)
	hb := crypto.SHA256(b)
	hc := crypto.SHA256(c)
	buf := append(append(append([]byte{}, ha...), hb...), hc...)
	return crypto.SHA256(buf)
}

func beToInt64(b []byte) int64 {
	var x uint64
	for _, v := range b {
		x = x<<8 | uint64(v)
	}
	return int64(x)
}

// beEncode32 encodes x as a 32-byte big-endian note, the inverse of
// beToInt64, used by tests to build synthetic proofs.
func beEncode32(x int64) []byte {
	buf := make([]byte, 32)
	binary.BigEndian.PutUint64(buf[24:], uint64(x))
	return buf
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
