package chainclient

import (
	"encoding/json"

	"github.com/liteseed/gatewaycore/client"
	"github.com/liteseed/gatewaycore/transaction"
)

// Transaction is the teacher's transaction.Transaction verbatim; the
// composite client strips its inline data field after fetch (spec.md
// §4.H) rather than needing a distinct wire shape.
type Transaction = transaction.Transaction

// Block extends the teacher's client.Block with the two PoA fields
// spec.md §6 requires stripping before caching ("strip poa, poa2 before
// caching"). They are carried as raw JSON so stripping is just nilling
// the field, with no proof-of-access struct to model.
type Block struct {
	client.Block
	Poa  json.RawMessage `json:"poa,omitempty"`
	Poa2 json.RawMessage `json:"poa2,omitempty"`
}

func stripPoAFields(b *Block) {
	b.Poa = nil
	b.Poa2 = nil
}

// ChunkFingerprint is the read-through chunk cache's key shape, per
// spec.md §4.H: "keyed by the JSON fingerprint
// {absoluteOffset, txSize, dataRoot, relativeOffset}".
type ChunkFingerprint struct {
	AbsoluteOffset int64  `json:"absoluteOffset"`
	TxSize         int64  `json:"txSize"`
	DataRoot       string `json:"dataRoot"`
	RelativeOffset int64  `json:"relativeOffset"`
}

func (f ChunkFingerprint) cacheKey() (string, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ChunkResult is a validated chunk fetched from a peer, in the same
// base64url-string shape the trusted node's /chunk/{offset} endpoint
// returns (spec.md §6).
type ChunkResult struct {
	TxPath   string `json:"tx_path"`
	DataPath string `json:"data_path"`
	Chunk    string `json:"chunk"`
}
