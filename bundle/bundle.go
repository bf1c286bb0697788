// Package bundle resolves where a single ANS-104 data item lives inside a
// (possibly nested) binary bundle, reading only the bounded byte windows
// it needs rather than materializing the whole bundle. It is the
// streaming counterpart to transaction/bundle, which builds and decodes
// whole bundles in memory; this package instead walks a bundle's header
// table and each candidate item's header over a ByteRangeFetcher,
// recursing into nested bundles (Bundle-Format=binary,
// Bundle-Version=2.0.0) until it finds the target item or exhausts the
// tree.
//
// The bundle-level item count and per-item size fields are 32-byte
// big-endian integers; this is the one place the wire format departs
// from transaction/bundle's little-endian convention for the same
// fields, so the two packages intentionally do not share header-table
// code. Everything inside a single data item's own header (signature
// type, target/anchor flags, avro-encoded tags) stays little-endian,
// matching transaction/data_item exactly, and is parsed by reusing that
// package's signature table and the tag package's avro decoder.
package bundle

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"

	"github.com/liteseed/gatewaycore/crypto"
	"github.com/liteseed/gatewaycore/gatewayerr"
	"github.com/liteseed/gatewaycore/tag"
	"github.com/liteseed/gatewaycore/transaction/data_item"
)

const (
	// MinDataItemSize is the smallest a well-formed data item header can
	// be: 2-byte sig type + the shortest signature/owner pair (secp256k1/
	// Ethereum, 65+20) + two absent-flag bytes + an empty tag table.
	MinDataItemSize = 2 + 65 + 20 + 1 + 1 + 16

	// headerFetchWindow bounds a single header read: large enough for an
	// Arweave-signature item (2+512+512+66+16 = 1108) plus a generous tag
	// block, small enough to stay a "few KiB" fetch per spec.
	headerFetchWindow = 8 * 1024
)

// ByteRangeFetcher reads length bytes starting at offset from wherever a
// bundle's bytes actually live — a local buffer in tests, an HTTP range
// request against a peer in production.
type ByteRangeFetcher interface {
	ReadRange(ctx context.Context, offset, length int64) ([]byte, error)
}

// Location is where a resolved data item's bytes, and its data payload
// within them, sit in the fetcher's byte space.
type Location struct {
	ItemID      string
	ItemOffset  int64
	DataOffset  int64
	ItemSize    int64
	DataSize    int64
	ContentType string
}

type itemRecord struct {
	id     string
	size   int64
	offset int64 // relative to the region start, i.e. already past the header table
}

type headerInfo struct {
	headerSize     int64
	contentType    string
	isNestedBundle bool
}

// Resolve locates targetItemID within the bundle rooted at bundleID,
// whose item-count field begins at regionOffset in f. It recurses into
// any nested bundle it encounters while scanning, short-circuiting as
// soon as the target is found, and stops descending into a bundle ID it
// has already visited to guard against cyclic references.
func Resolve(ctx context.Context, f ByteRangeFetcher, bundleID, targetItemID string, regionOffset int64) (*Location, error) {
	return resolveRegion(ctx, f, targetItemID, regionOffset, bundleID, map[string]bool{})
}

func resolveRegion(ctx context.Context, f ByteRangeFetcher, targetItemID string, regionOffset int64, bundleID string, visited map[string]bool) (*Location, error) {
	if visited[bundleID] {
		return nil, nil
	}
	visited[bundleID] = true

	records, headerEnd, err := readHeaderTable(ctx, f, regionOffset)
	if err != nil {
		return nil, err
	}
	if records == nil {
		return nil, nil
	}

	for _, rec := range records {
		if rec.id != targetItemID {
			continue
		}
		hdr, err := parseDataItemHeader(ctx, f, regionOffset+headerEnd+rec.offset, rec.size)
		if err != nil {
			return nil, err
		}
		return &Location{
			ItemID:      rec.id,
			ItemOffset:  regionOffset + headerEnd + rec.offset,
			DataOffset:  regionOffset + headerEnd + rec.offset + hdr.headerSize,
			ItemSize:    rec.size,
			DataSize:    rec.size - hdr.headerSize,
			ContentType: hdr.contentType,
		}, nil
	}

	for _, rec := range records {
		if rec.size < MinDataItemSize || visited[rec.id] {
			continue
		}
		itemOffset := regionOffset + headerEnd + rec.offset
		hdr, err := parseDataItemHeader(ctx, f, itemOffset, rec.size)
		if err != nil {
			continue // not a parseable data item; skip rather than fail the whole search
		}
		if !hdr.isNestedBundle {
			continue
		}
		loc, err := resolveRegion(ctx, f, targetItemID, itemOffset+hdr.headerSize, rec.id, visited)
		if err != nil {
			return nil, err
		}
		if loc != nil {
			return loc, nil
		}
	}
	return nil, nil
}

// readHeaderTable reads a bundle's item count and per-item (size, id)
// table at regionOffset, returning each item's byte offset relative to
// the end of the table, and the table's own length (32 + 64*n).
func readHeaderTable(ctx context.Context, f ByteRangeFetcher, regionOffset int64) ([]itemRecord, int64, error) {
	countBuf, err := f.ReadRange(ctx, regionOffset, 32)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: reading bundle item count: %v", gatewayerr.ErrTransport, err)
	}
	if len(countBuf) != 32 {
		return nil, 0, fmt.Errorf("%w: short read on bundle item count", gatewayerr.ErrBundleParse)
	}
	n := new(big.Int).SetBytes(countBuf).Int64()
	if n == 0 {
		return nil, 0, nil
	}
	if n < 0 || n > (1<<32) {
		return nil, 0, fmt.Errorf("%w: implausible bundle item count %d", gatewayerr.ErrBundleParse, n)
	}

	tableLen := 64 * n
	tableBuf, err := f.ReadRange(ctx, regionOffset+32, tableLen)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: reading bundle header table: %v", gatewayerr.ErrTransport, err)
	}
	if int64(len(tableBuf)) != tableLen {
		return nil, 0, fmt.Errorf("%w: short read on bundle header table", gatewayerr.ErrBundleParse)
	}

	records := make([]itemRecord, n)
	var cum int64
	for i := int64(0); i < n; i++ {
		rec := tableBuf[64*i : 64*i+64]
		size := new(big.Int).SetBytes(rec[:32]).Int64()
		if size < 0 {
			return nil, 0, fmt.Errorf("%w: negative item size at index %d", gatewayerr.ErrBundleParse, i)
		}
		records[i] = itemRecord{
			id:     crypto.Base64URLEncode(rec[32:64]),
			size:   size,
			offset: cum,
		}
		cum += size
	}
	return records, 32 + tableLen, nil
}

// parseDataItemHeader reads and parses a data item's header (everything
// up to but excluding its data payload) within a bounded window, using
// transaction/data_item's own signature-length table and the tag
// package's avro tag decoder so this stays byte-for-byte compatible with
// how the teacher constructs and decodes data items.
func parseDataItemHeader(ctx context.Context, f ByteRangeFetcher, offset, itemSize int64) (info *headerInfo, err error) {
	defer func() {
		// Tag parsing below trusts lengths read from untrusted bytes; a
		// malformed nested-bundle header should fail this one item, not
		// the whole resolve.
		if r := recover(); r != nil {
			info, err = nil, fmt.Errorf("%w: malformed data item header: %v", gatewayerr.ErrBundleParse, r)
		}
	}()

	if itemSize < MinDataItemSize {
		return nil, fmt.Errorf("%w: item smaller than minimum data item size", gatewayerr.ErrBundleParse)
	}
	window := itemSize
	if window > headerFetchWindow {
		window = headerFetchWindow
	}
	buf, err := f.ReadRange(ctx, offset, window)
	if err != nil {
		return nil, fmt.Errorf("%w: reading data item header: %v", gatewayerr.ErrTransport, err)
	}
	if len(buf) < 2 {
		return nil, fmt.Errorf("%w: data item shorter than signature type field", gatewayerr.ErrBundleParse)
	}

	sigType := int(binary.LittleEndian.Uint16(buf[:2]))
	meta, ok := data_item.SignatureConfig[sigType]
	if !ok {
		return nil, fmt.Errorf("%w: signature type %d", gatewayerr.ErrUnknownSignatureType, sigType)
	}

	pos := 2 + meta.SignatureLength + meta.PublicKeyLength
	if pos+1 > len(buf) {
		return nil, fmt.Errorf("%w: header truncated before target flag", gatewayerr.ErrBundleParse)
	}
	if buf[pos] == 1 {
		pos += 33
	} else {
		pos++
	}
	if pos+1 > len(buf) {
		return nil, fmt.Errorf("%w: header truncated before anchor flag", gatewayerr.ErrBundleParse)
	}
	if buf[pos] == 1 {
		pos += 33
	} else {
		pos++
	}
	if pos+16 > len(buf) {
		return nil, fmt.Errorf("%w: header truncated before tag table", gatewayerr.ErrBundleParse)
	}

	tags, tagsEnd, err := tag.Deserialize(buf, pos)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gatewayerr.ErrBundleParse, err)
	}

	return &headerInfo{
		headerSize:     int64(tagsEnd),
		contentType:    lookupTag(*tags, "Content-Type"),
		isNestedBundle: hasTag(*tags, "Bundle-Format", "binary") && hasTag(*tags, "Bundle-Version", "2.0.0"),
	}, nil
}

func hasTag(tags []tag.Tag, name, value string) bool {
	for _, t := range tags {
		if strings.EqualFold(t.Name, name) && t.Value == value {
			return true
		}
	}
	return false
}

func lookupTag(tags []tag.Tag, name string) string {
	for _, t := range tags {
		if strings.EqualFold(t.Name, name) {
			return t.Value
		}
	}
	return ""
}
