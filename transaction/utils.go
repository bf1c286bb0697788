package transaction

import (
	"encoding/binary"
	"reflect"
)

func encodeUint(x uint64) []byte {
	buf := make([]byte, 32)

	// byteOffset by 24
	// JS implementation assumes a 32 byte length Uint8Array
	binary.BigEndian.PutUint64(buf[24:], x)
	return buf
}
func isSlice(v any) bool {
	return reflect.TypeOf(v).Kind() == reflect.Slice
}

// intToByteArray encodes a non-negative int as a 32-byte big-endian note,
// matching the fixed NOTE_SIZE the Merkle tree uses for byte-range markers.
func intToByteArray(x int) []byte {
	return encodeUint(uint64(x))
}

// byteArrayToInt decodes a big-endian byte slice (as produced by
// intToByteArray) back into an int.
func byteArrayToInt(b []byte) int {
	var x uint64
	for _, v := range b {
		x = x<<8 | uint64(v)
	}
	return int(x)
}
