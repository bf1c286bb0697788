package data_item

import (
	"io"

	"github.com/liteseed/gatewaycore/tag"
)

// DataItem is an ANS-104 bundle item: a signed, addressable unit nested
// inside a bundle alongside sibling items, each independently verifiable.
// Learn more: https://github.com/ArweaveTeam/arweave-standards/blob/master/ans/ANS-104.md
type DataItem struct {
	ID            string     `json:"id"`
	Signature     string     `json:"signature"`
	SignatureType int        `json:"signature_type"`
	Owner         string     `json:"owner"`
	Target        string     `json:"target"`
	Anchor        string     `json:"anchor"`
	Tags          *[]tag.Tag `json:"tags"`
	Data          string     `json:"data"`
	Raw           []byte     `json:"-"`

	// DataReader/DataSize support streaming construction for large payloads
	// without holding the whole item in memory; set together, or not at all.
	DataReader io.ReadSeeker `json:"-"`
	DataSize   int64         `json:"-"`
}
