// Package bundle implements ANS-104 bundle construction, decoding, and
// verification: packing signed data items into a single binary envelope
// and unpacking one back into its constituent items.
// Learn more: https://github.com/ArweaveTeam/arweave-standards/blob/master/ans/ANS-104.md
package bundle

import (
	"fmt"

	"github.com/liteseed/gatewaycore/crypto"
	"github.com/liteseed/gatewaycore/transaction/data_item"
)

// New packs a group of signed data items into a Bundle, computing its
// header table and raw wire bytes.
func New(ds *[]data_item.DataItem) (*Bundle, error) {
	headers, err := generateBundleHeader(ds)
	if err != nil {
		return nil, err
	}

	n := len(*ds)
	var headersBytes, itemsBytes []byte
	for i := 0; i < n; i++ {
		h := headers[i]
		idBytes, err := crypto.Base64URLDecode(h.ID)
		if err != nil {
			return nil, err
		}
		headersBytes = append(headersBytes, longTo32ByteArray(h.Size)...)
		headersBytes = append(headersBytes, idBytes...)
		itemsBytes = append(itemsBytes, (*ds)[i].Raw...)
	}

	raw := longTo32ByteArray(n)
	raw = append(raw, headersBytes...)
	raw = append(raw, itemsBytes...)

	return &Bundle{
		Headers: headers,
		Items:   *ds,
		Raw:     raw,
	}, nil
}

// Decode parses raw bytes into a Bundle, decoding every nested data item.
func Decode(data []byte) (*Bundle, error) {
	headers, n, err := decodeBundleHeader(data)
	if err != nil {
		return nil, err
	}

	bundle := &Bundle{
		Headers: headers,
		Items:   make([]data_item.DataItem, n),
		Raw:     data,
	}

	start := 32 + 64*n
	for i := 0; i < n; i++ {
		end := start + headers[i].Size
		if end > len(data) {
			return nil, fmt.Errorf("bundle item %d overruns binary", i)
		}
		item, err := data_item.Decode(data[start:end])
		if err != nil {
			return nil, err
		}
		bundle.Items[i] = *item
		start = end
	}
	return bundle, nil
}

// Verify checks that the declared item sizes in the header table exactly
// account for the remaining bytes in the binary.
func Verify(data []byte) (bool, error) {
	headers, n, err := decodeBundleHeader(data)
	if err != nil {
		return false, err
	}
	itemsSize := 0
	for _, h := range headers {
		itemsSize += h.Size
	}
	return len(data) == itemsSize+32+64*n, nil
}
