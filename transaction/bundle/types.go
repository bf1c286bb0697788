package bundle

import "github.com/liteseed/gatewaycore/transaction/data_item"

// BundleHeader is one 64-byte entry in a bundle's header table: the byte
// size of a data item followed by its base64url-encoded id.
type BundleHeader struct {
	ID   string
	Size int
}

// Bundle is a decoded or in-construction ANS-104 bundle: an item count, a
// header table, and the concatenated raw bytes of every item.
// Learn more: https://github.com/ArweaveTeam/arweave-standards/blob/master/ans/ANS-104.md
type Bundle struct {
	Headers []BundleHeader       `json:"bundle_header"`
	Items   []data_item.DataItem `json:"items"`
	Raw     []byte               `json:"-"`
}
