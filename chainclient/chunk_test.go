package chainclient

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/liteseed/gatewaycore/crypto"
	"github.com/liteseed/gatewaycore/merkle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildSingleLeafProof builds the smallest valid data path: one leaf
// whose data hash is unchecked by ParseDataPath beyond the leaf-hash
// equality, covering [0, size) of a transaction of that same size.
func buildSingleLeafProof(t *testing.T, size int64) (dataRoot, dataPath []byte) {
	t.Helper()
	dataHash := crypto.SHA256([]byte("chunk-bytes"))
	note := beEncode32(size)
	leafHash := hashLeaf(dataHash, note)

	dataPath = append(append([]byte{}, dataHash...), note...)
	return leafHash, dataPath
}

func hashLeaf(dataHash, note []byte) []byte {
	ha := crypto.SHA256(dataHash)
	hb := crypto.SHA256(note)
	return crypto.SHA256(append(append([]byte{}, ha...), hb...))
}

func beEncode32(x int64) []byte {
	buf := make([]byte, 32)
	binary.BigEndian.PutUint64(buf[24:], uint64(x))
	return buf
}

func newChunkTestClient(t *testing.T, peers ...string) *Client {
	t.Helper()
	server := httptest.NewServer(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("trusted node should not be hit by chunk peer tests")
	})
	t.Cleanup(server.Close)

	c, err := New(Config{
		TrustedNodeURL:          server.URL,
		NodeRelease:             "test-release",
		BucketRequestsPerSecond: 1000,
		BucketBurstWindow:       time.Second,
		ChunkPeerCount:          3,
		ChunkPeerTimeout:        time.Second,
		ChunkRetryCount:         1,
		ChunkCacheCapacity:      16,
	}, nil, nil, nil)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	c.SetPeers(peers)
	return c
}

func TestValidateChunkAcceptsValidProof(t *testing.T) {
	size := int64(1000)
	dataRoot, dataPath := buildSingleLeafProof(t, size)

	c := &Client{cfg: Config{}.withDefaults()}
	result := &ChunkResult{DataPath: crypto.Base64URLEncode(dataPath)}
	fp := ChunkFingerprint{DataRoot: crypto.Base64URLEncode(dataRoot), TxSize: size, RelativeOffset: 10}

	err := c.validateChunk(result, fp)
	assert.NoError(t, err)
}

func TestValidateChunkRejectsTamperedProof(t *testing.T) {
	size := int64(1000)
	dataRoot, dataPath := buildSingleLeafProof(t, size)
	dataPath[0] ^= 0xFF // tamper with the data hash

	c := &Client{cfg: Config{}.withDefaults()}
	result := &ChunkResult{DataPath: crypto.Base64URLEncode(dataPath)}
	fp := ChunkFingerprint{DataRoot: crypto.Base64URLEncode(dataRoot), TxSize: size, RelativeOffset: 10}

	err := c.validateChunk(result, fp)
	assert.ErrorIs(t, err, merkle.ErrInvalidProof)
}

func TestGetChunkFetchesFromPeerAndValidates(t *testing.T) {
	size := int64(1000)
	dataRoot, dataPath := buildSingleLeafProof(t, size)

	var hits int
	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		json.NewEncoder(w).Encode(ChunkResult{DataPath: crypto.Base64URLEncode(dataPath), Chunk: "abc"})
	}))
	defer peer.Close()

	c := newChunkTestClient(t, peer.URL)
	fp := ChunkFingerprint{AbsoluteOffset: 1, DataRoot: crypto.Base64URLEncode(dataRoot), TxSize: size, RelativeOffset: 10}

	result, err := c.GetChunk(context.Background(), fp)
	require.NoError(t, err)
	assert.Equal(t, "abc", result.Chunk)
	assert.Equal(t, 1, hits)
}

func TestGetChunkCachesSecondLookup(t *testing.T) {
	size := int64(1000)
	dataRoot, dataPath := buildSingleLeafProof(t, size)

	var hits int
	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		json.NewEncoder(w).Encode(ChunkResult{DataPath: crypto.Base64URLEncode(dataPath)})
	}))
	defer peer.Close()

	c := newChunkTestClient(t, peer.URL)
	fp := ChunkFingerprint{AbsoluteOffset: 1, DataRoot: crypto.Base64URLEncode(dataRoot), TxSize: size, RelativeOffset: 10}

	_, err := c.GetChunk(context.Background(), fp)
	require.NoError(t, err)
	_, err = c.GetChunk(context.Background(), fp)
	require.NoError(t, err)
	assert.Equal(t, 1, hits)
}

func TestPeerGetChunkRaisesNoPeerSucceededWhenNoneRegistered(t *testing.T) {
	c := newChunkTestClient(t)
	_, err := c.peerGetChunk(context.Background(), ChunkFingerprint{})
	assert.Error(t, err)
}

func TestPeerGetChunkCoolsFailingPeerAndWarmsSucceeding(t *testing.T) {
	size := int64(1000)
	dataRoot, dataPath := buildSingleLeafProof(t, size)

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ChunkResult{DataPath: crypto.Base64URLEncode(dataPath)})
	}))
	defer good.Close()

	c := newChunkTestClient(t, bad.URL, good.URL)
	fp := ChunkFingerprint{AbsoluteOffset: 1, DataRoot: crypto.Base64URLEncode(dataRoot), TxSize: size, RelativeOffset: 10}

	_, err := c.GetChunk(context.Background(), fp)
	require.NoError(t, err)

	badWeight, _ := c.peerQueue.Weights().Weight(bad.URL)
	goodWeight, _ := c.peerQueue.Weights().Weight(good.URL)
	assert.Less(t, badWeight, goodWeight)
}

func TestBroadcastChunkSucceedsAtMinThreshold(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	c := newChunkTestClient(t)
	c.cfg.MinBroadcastSuccess = 1

	res, err := c.BroadcastChunk(context.Background(), []string{ok.URL, bad.URL}, []byte(`{}`), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SuccessCount)
}

func TestBroadcastChunkFailsBelowMinThreshold(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	c := newChunkTestClient(t)
	c.cfg.MinBroadcastSuccess = 2

	_, err := c.BroadcastChunk(context.Background(), []string{bad.URL}, []byte(`{}`), nil)
	assert.Error(t, err)
}
