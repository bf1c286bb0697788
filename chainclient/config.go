package chainclient

import (
	"time"

	"github.com/liteseed/gatewaycore/merkle"
)

// Config tunes a Client. All durations/counts have documented defaults
// applied by New when left zero, following the teacher's client.New(gateway)
// pattern of a small, explicit options struct rather than functional options.
type Config struct {
	// TrustedNodeURL is the base URL of the trusted Arweave node (e.g.
	// "https://arweave.net"), used for the fallback HTTP surface §4.H
	// describes.
	TrustedNodeURL string

	// NodeRelease identifies this gateway in the X-AR-IO-Node-Release
	// header on every trusted-node and peer request.
	NodeRelease string

	// AcceptEncodingIdentity, when true, sends "Accept-Encoding: identity"
	// on requests where exact Content-Length matters (chunk and data
	// fetches).
	AcceptEncodingIdentity bool

	// TrustedNodeConcurrency bounds the shared queue depth for all
	// trusted-node requests. Default 8.
	TrustedNodeConcurrency int

	// BucketRequestsPerSecond is the trusted-node leaky bucket's refill
	// rate. Default 5.
	BucketRequestsPerSecond float64
	// BucketBurstWindow is how long a full burst can sustain
	// BucketRequestsPerSecond before exhausting the bucket. Default 5
	// minutes, per spec.md §4.H ("refills every second up to 5-minute
	// burst").
	BucketBurstWindow time.Duration

	// RequestRetryCount bounds trusted-node retry attempts on transport
	// failure, 5xx, or 429. Default 3.
	RequestRetryCount int
	// RequestTimeout bounds a single trusted-node HTTP round trip.
	// Default 10s.
	RequestTimeout time.Duration
	// RetryBaseDelay is the base of the exponential backoff between
	// trusted-node retries. Default 200ms.
	RetryBaseDelay time.Duration

	// MaxForkDepth is how many blocks back from the highest prefetched
	// height a block must sit before it is considered stable enough to
	// persist by height (spec.md §4.H step 4).
	MaxForkDepth uint64
	// PrefetchTTL bounds how long a completed block/tx prefetch stays
	// cached before a fresh request re-fetches it.
	PrefetchTTL time.Duration

	// ChunkCacheCapacity bounds the number of distinct chunk fingerprints
	// held in the read-through chunk cache. Default 1024.
	ChunkCacheCapacity int
	// ChunkPeerCount is how many peers peerGetChunk tries, in weighted
	// order, before giving up. Default 3.
	ChunkPeerCount int
	// ChunkPeerTimeout bounds each individual peer chunk GET attempt.
	// Default 500ms, per spec.md §4.H ("very short timeout (<= 500 ms)").
	ChunkPeerTimeout time.Duration
	// ChunkRetryCount is how many peerGetChunk rounds the read-through
	// cache will attempt before raising NoPeerSucceeded.
	ChunkRetryCount int

	// PeerQueueConcurrency bounds per-peer concurrent chunk POSTs (the
	// peerqueue.Config this client drives for broadcast).
	PeerQueueConcurrency int
	// PeerQueueDepthThreshold bounds in-flight-plus-queued tasks per peer
	// before new submissions to it are rejected rather than blocked
	// (spec.md §4.G). Default 4 * PeerQueueConcurrency.
	PeerQueueDepthThreshold int
	// BroadcastConcurrency bounds how many peers BroadcastChunk dispatches
	// to at once (spec.md §4.G's "global concurrency cap"). Default 8.
	BroadcastConcurrency int
	// MinBroadcastSuccess is the minimum number of peers that must accept
	// a broadcast POST for it to count as successful.
	MinBroadcastSuccess int

	// MerkleConfig carries the chain-protocol thresholds used to select
	// a ruleset when validating peer-served chunks (see merkle.Config's
	// doc comment: these are NOT implementation constants).
	MerkleConfig merkle.Config
}

func (c Config) withDefaults() Config {
	if c.TrustedNodeConcurrency <= 0 {
		c.TrustedNodeConcurrency = 8
	}
	if c.BucketRequestsPerSecond <= 0 {
		c.BucketRequestsPerSecond = 5
	}
	if c.BucketBurstWindow <= 0 {
		c.BucketBurstWindow = 5 * time.Minute
	}
	if c.RequestRetryCount <= 0 {
		c.RequestRetryCount = 3
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 200 * time.Millisecond
	}
	if c.PrefetchTTL <= 0 {
		c.PrefetchTTL = 30 * time.Second
	}
	if c.ChunkCacheCapacity <= 0 {
		c.ChunkCacheCapacity = 1024
	}
	if c.ChunkPeerCount <= 0 {
		c.ChunkPeerCount = 3
	}
	if c.ChunkPeerTimeout <= 0 {
		c.ChunkPeerTimeout = 500 * time.Millisecond
	}
	if c.ChunkRetryCount <= 0 {
		c.ChunkRetryCount = 3
	}
	if c.PeerQueueConcurrency <= 0 {
		c.PeerQueueConcurrency = 4
	}
	if c.PeerQueueDepthThreshold <= 0 {
		c.PeerQueueDepthThreshold = 4 * c.PeerQueueConcurrency
	}
	if c.BroadcastConcurrency <= 0 {
		c.BroadcastConcurrency = 8
	}
	if c.MinBroadcastSuccess <= 0 {
		c.MinBroadcastSuccess = 1
	}
	return c
}
