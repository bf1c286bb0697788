package bundle

import (
	"encoding/binary"
	"fmt"

	"github.com/liteseed/gatewaycore/crypto"
	"github.com/liteseed/gatewaycore/transaction/data_item"
)

const (
	Arweave  = 1
	ED25519  = 2
	Ethereum = 3
	Solana   = 4
)

type SignatureMeta struct {
	SignatureLength int
	PublicKeyLength int
	Name            string
}

var SignatureConfig = map[int]SignatureMeta{
	Arweave: {
		SignatureLength: 512,
		PublicKeyLength: 512,
		Name:            "arweave",
	},
	ED25519: {
		SignatureLength: 64,
		PublicKeyLength: 32,
		Name:            "ed25519",
	},
	Ethereum: {
		SignatureLength: 65,
		PublicKeyLength: 20,
		Name:            "ethereum",
	},
	Solana: {
		SignatureLength: 64,
		PublicKeyLength: 32,
		Name:            "solana",
	},
}

// longTo32ByteArray encodes n as a little-endian integer padded out to the
// fixed 32-byte field width the ANS-104 bundle header uses for both the
// item count and each header entry's size.
func longTo32ByteArray(n int) []byte {
	buf := make([]byte, 32)
	binary.LittleEndian.PutUint64(buf[:8], uint64(n))
	return buf
}

// byteArrayToLong is the inverse of longTo32ByteArray.
func byteArrayToLong(buf []byte) int {
	return int(binary.LittleEndian.Uint64(buf[:8]))
}

func generateBundleHeader(ds *[]data_item.DataItem) ([]BundleHeader, error) {
	headers := make([]BundleHeader, 0, len(*ds))
	for _, item := range *ds {
		if item.ID == "" {
			return nil, fmt.Errorf("data item must be signed before bundling")
		}
		headers = append(headers, BundleHeader{ID: item.ID, Size: len(item.Raw)})
	}
	return headers, nil
}

// decodeBundleHeader reads the item count and per-item header table from
// the front of a bundle's raw bytes.
func decodeBundleHeader(data []byte) ([]BundleHeader, int, error) {
	if len(data) < 32 {
		return nil, 0, fmt.Errorf("bundle binary must be at least 32 bytes")
	}
	n := byteArrayToLong(data[:32])
	if n < 0 || len(data) < 32+64*n {
		return nil, 0, fmt.Errorf("bundle header declares %d items but binary is too short", n)
	}
	headers := make([]BundleHeader, 0, n)
	for i := 0; i < n; i++ {
		start := 32 + i*64
		size := byteArrayToLong(data[start : start+32])
		id := data[start+32 : start+64]
		headers = append(headers, BundleHeader{ID: crypto.Base64URLEncode(id), Size: size})
	}
	return headers, n, nil
}
