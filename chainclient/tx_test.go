package chainclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/liteseed/gatewaycore/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefetchTxFetchesFromTrustedNodeAndStrips(t *testing.T) {
	var hits int32
	c := newTestClientWithStores(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		json.NewEncoder(w).Encode(Transaction{
			ID:        "abc",
			Signature: "sig",
			Owner:     "owner",
			Data:      "should-be-stripped",
		})
	}, nil, nil)

	tx, err := c.PrefetchTx(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "", tx.Data)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestPrefetchTxCachesSecondCall(t *testing.T) {
	var hits int32
	c := newTestClientWithStores(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		json.NewEncoder(w).Encode(Transaction{ID: "abc", Signature: "sig"})
	}, nil, nil)

	_, err := c.PrefetchTx(context.Background(), "abc")
	require.NoError(t, err)
	_, err = c.PrefetchTx(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestPrefetchTxEvictsOnFailure(t *testing.T) {
	var hits int32
	c := newTestClientWithStores(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
	}, nil, nil)

	_, err := c.PrefetchTx(context.Background(), "abc")
	assert.Error(t, err)
	_, err = c.PrefetchTx(context.Background(), "abc")
	assert.Error(t, err)
	// unconfirmed_tx fallback doubles the attempts per call: 2 calls * 2 paths = 4
	assert.Equal(t, int32(4), atomic.LoadInt32(&hits))
}

func TestFetchAndStoreTxRecoversEmptyOwnerFromSignature(t *testing.T) {
	priv, err := gethcrypto.GenerateKey()
	require.NoError(t, err)
	id := []byte("tx-id-bytes")
	sig, err := gethcrypto.Sign(gethcrypto.Keccak256(id), priv)
	require.NoError(t, err)

	c := newTestClientWithStores(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Transaction{
			ID:        crypto.Base64URLEncode(id),
			Signature: crypto.Base64URLEncode(sig),
			Owner:     "",
		})
	}, nil, nil)

	tx, err := c.PrefetchTx(context.Background(), crypto.Base64URLEncode(id))
	require.NoError(t, err)
	assert.Equal(t, crypto.Base64URLEncode(gethcrypto.FromECDSAPub(&priv.PublicKey)), tx.Owner)
}

func TestSanityCheckTxRejectsIDMismatch(t *testing.T) {
	tx := &Transaction{ID: "a", Signature: "sig"}
	err := sanityCheckTx(tx, "b")
	assert.Error(t, err)
}

func TestSanityCheckTxRejectsMissingSignature(t *testing.T) {
	tx := &Transaction{ID: "a"}
	err := sanityCheckTx(tx, "a")
	assert.Error(t, err)
}

func TestPeerGetTxReturnsFirstSuccessAndCancelsRest(t *testing.T) {
	var slowHits, fastHits int32
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&slowHits, 1)
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer slow.Close()
	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fastHits, 1)
		json.NewEncoder(w).Encode(Transaction{ID: "abc", Signature: "sig"})
	}))
	defer fast.Close()

	c := newTestClientWithStores(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("trusted node should not be hit when a peer succeeds")
	}, nil, nil)
	c.SetPeers([]string{slow.URL, fast.URL})

	tx, err := c.GetTx(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", tx.ID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fastHits))
}

func TestGetTxFallsBackToTrustedNodeWhenNoPeersRegistered(t *testing.T) {
	var hits int32
	c := newTestClientWithStores(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		json.NewEncoder(w).Encode(Transaction{ID: "abc", Signature: "sig"})
	}, nil, nil)

	tx, err := c.GetTx(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", tx.ID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}
