// Package chainclient composes the trusted-node HTTP client, the peer
// fleet, and the prefetch/chunk caches into the single "composite chain
// client" spec.md §4.H describes. The HTTP surface is grounded on the
// teacher's client/client.go and client/request.go (endpoint naming,
// JSON decode shape); everything layered on top — the shared queue,
// leaky bucket, promise caches, and peer fan-out — is new, generalizing
// the teacher's single-gateway client into the gateway's own outbound
// data-source client.
package chainclient

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/liteseed/gatewaycore/dnsresolver"
	"github.com/liteseed/gatewaycore/log"
	"github.com/liteseed/gatewaycore/peerqueue"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/singleflight"
	"gopkg.in/h2non/gentleman.v2"
)

// BlockStore is the persistent block-by-height store the composite
// client reads through and writes stable blocks into. Implementations
// live outside this module (spec.md §1 excludes persistence); a nil
// BlockStore degrades to "always miss", so every prefetch goes straight
// to the trusted node.
type BlockStore interface {
	GetBlockByHeight(ctx context.Context, height uint64) (*Block, error)
	PutBlockByHeight(ctx context.Context, height uint64, block *Block) error
}

// TxStore is the persistent transaction store, analogous to BlockStore.
type TxStore interface {
	GetTx(ctx context.Context, id string) (*Transaction, error)
	PutTx(ctx context.Context, id string, tx *Transaction) error
}

// Client is the composite chain client: one shared trusted-node queue +
// leaky bucket, two promise caches (block, tx), a capacity-bounded
// read-through chunk cache, and a weighted peer fleet.
type Client struct {
	cfg Config
	log log.Logger

	httpClient *gentleman.Client
	queuePool  *ants.Pool
	bucket     *trustedNodeBucket

	blockGroup singleflight.Group
	blockTTL   *ttlCache[uint64, *Block]
	blockStore BlockStore

	txGroup singleflight.Group
	txTTL   *ttlCache[string, *Transaction]
	txStore TxStore

	chunkGroup singleflight.Group
	chunkLRU   *lru.Cache[string, *ChunkResult]

	peerQueue *peerqueue.PeerQueue
	dns       *dnsresolver.Resolver
	rng       *rand.Rand

	mergeMu        sync.RWMutex
	peers          []string
	preferredPeers map[string]bool

	maxPrefetchHeight uint64
	hops              int32
}

// New constructs a Client against cfg. dns and blockStore/txStore may be
// nil; a nil dns means preferred-peer DNS pinning is skipped, and nil
// stores mean prefetch always falls through to the trusted node.
func New(cfg Config, dns *dnsresolver.Resolver, blockStore BlockStore, txStore TxStore) (*Client, error) {
	cfg = cfg.withDefaults()

	pool, err := ants.NewPool(cfg.TrustedNodeConcurrency)
	if err != nil {
		return nil, fmt.Errorf("chainclient: creating trusted-node queue: %w", err)
	}

	chunkLRU, err := lru.New[string, *ChunkResult](cfg.ChunkCacheCapacity)
	if err != nil {
		return nil, fmt.Errorf("chainclient: creating chunk cache: %w", err)
	}

	httpClient := gentleman.New().URL(cfg.TrustedNodeURL)

	c := &Client{
		cfg:            cfg,
		log:            log.New("chainclient"),
		httpClient:     httpClient,
		queuePool:      pool,
		bucket:         newTrustedNodeBucket(cfg.BucketRequestsPerSecond, cfg.BucketBurstWindow),
		blockTTL:       newTTLCache[uint64, *Block](),
		blockStore:     blockStore,
		txTTL:          newTTLCache[string, *Transaction](),
		txStore:        txStore,
		chunkLRU:       chunkLRU,
		dns:            dns,
		rng:            rand.New(rand.NewSource(1)),
		preferredPeers: make(map[string]bool),
	}
	c.peerQueue = peerqueue.New(peerqueue.Config{
		ConcurrencyPerPeer:   cfg.PeerQueueConcurrency,
		QueueDepthThreshold:  cfg.PeerQueueDepthThreshold,
		BroadcastConcurrency: cfg.BroadcastConcurrency,
	}, c.submitChunkToPeer)
	return c, nil
}

// Close releases the trusted-node queue and every per-peer pool.
func (c *Client) Close() {
	c.queuePool.Release()
	c.peerQueue.Close()
}

// SetPeers replaces the current peer fleet by reference (copy-on-update,
// per spec.md §5: "writes replace references atomically ... readers
// snapshot"). Peers already known to preferred keep their preferred
// status; new peers start discovered.
func (c *Client) SetPeers(peers []string) {
	for _, p := range peers {
		c.peerQueue.Weights().Register(p, c.isPreferredPeer(p))
	}
	c.mergeMu.Lock()
	c.peers = append([]string(nil), peers...)
	c.mergeMu.Unlock()
}

// RegisterPreferredPeer marks a peer (and, when a resolver is attached,
// every DNS-resolved variant of it) as preferred: high starting weight,
// never cooled. Per spec.md §9, the preferred-peer check considers both
// the original and resolved URL sets — never narrow to one.
func (c *Client) RegisterPreferredPeer(peer string) {
	c.mergeMu.Lock()
	c.preferredPeers[peer] = true
	c.mergeMu.Unlock()
	c.peerQueue.RegisterPreferred(peer)
}

func (c *Client) isPreferredPeer(peer string) bool {
	c.mergeMu.RLock()
	defer c.mergeMu.RUnlock()
	if c.preferredPeers[peer] {
		return true
	}
	if c.dns == nil {
		return false
	}
	for original := range c.preferredPeers {
		hostname := original
		if u, err := url.Parse(original); err == nil && u.Hostname() != "" {
			hostname = u.Hostname()
		}
		if res, ok := c.dns.GetResolvedURL(hostname); ok && res.ResolvedURL == peer {
			return true
		}
	}
	return false
}

func (c *Client) snapshotPeers() []string {
	c.mergeMu.RLock()
	defer c.mergeMu.RUnlock()
	return append([]string(nil), c.peers...)
}

func (c *Client) nextHop() int32 {
	return atomic.AddInt32(&c.hops, 1)
}

