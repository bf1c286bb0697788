package chainclient

import (
	"context"
	"fmt"

	"github.com/liteseed/gatewaycore/chooser"
	"github.com/liteseed/gatewaycore/crypto"
	"github.com/liteseed/gatewaycore/gatewayerr"
	"github.com/liteseed/gatewaycore/merkle"
	"github.com/liteseed/gatewaycore/peerqueue"
)

// GetChunk wraps peerGetChunk in a capacity-bounded read-through cache
// keyed by fp's JSON fingerprint (spec.md §4.H). Concurrent callers for
// the same fingerprint share one in-flight fetch via chunkGroup.
func (c *Client) GetChunk(ctx context.Context, fp ChunkFingerprint) (*ChunkResult, error) {
	key, err := fp.cacheKey()
	if err != nil {
		return nil, fmt.Errorf("%w: building chunk cache key: %v", gatewayerr.ErrMalformedResponse, err)
	}

	if cached, ok := c.chunkLRU.Get(key); ok {
		return cached, nil
	}

	v, err, _ := c.chunkGroup.Do(key, func() (interface{}, error) {
		result, ferr := c.peerGetChunk(ctx, fp)
		if ferr != nil {
			return nil, ferr
		}
		c.chunkLRU.Add(key, result)
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ChunkResult), nil
}

// peerGetChunk selects cfg.ChunkPeerCount peers from the weighted
// GET-chunk list and tries them sequentially with a short per-attempt
// timeout, validating each candidate via the Merkle validator before
// accepting it. A validated chunk warms its serving peer; any other
// failure cools it. After cfg.ChunkRetryCount full rounds with no
// success it raises NoPeerSucceeded.
func (c *Client) peerGetChunk(ctx context.Context, fp ChunkFingerprint) (*ChunkResult, error) {
	var lastErr error
	for round := 0; round < c.cfg.ChunkRetryCount; round++ {
		weighted := c.peerQueue.Weights().Weighted()
		if len(weighted) == 0 {
			return nil, fmt.Errorf("%w: no peers registered", gatewayerr.ErrNoPeerSucceeded)
		}
		peers := chooser.Choose(weighted, 50, 1.0, c.cfg.ChunkPeerCount, c.rng)

		for _, peer := range peers {
			result, err := c.tryPeerChunk(ctx, peer, fp)
			if err == nil {
				c.peerQueue.Weights().OnSuccess(peer, peerWeightDelta)
				c.log.Debug("peer warmed", "peer", peer)
				return result, nil
			}
			c.peerQueue.Weights().OnFailure(peer, peerWeightDelta)
			c.log.Debug("peer cooled", "peer", peer, "err", err)
			lastErr = err
		}
	}
	return nil, fmt.Errorf("%w: %v", gatewayerr.ErrNoPeerSucceeded, lastErr)
}

func (c *Client) tryPeerChunk(ctx context.Context, peer string, fp ChunkFingerprint) (*ChunkResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.ChunkPeerTimeout)
	defer cancel()

	result, err := fetchChunkFromPeer(attemptCtx, peer, fp.AbsoluteOffset, c.cfg.NodeRelease)
	if err != nil {
		return nil, err
	}
	if err := c.validateChunk(result, fp); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) validateChunk(result *ChunkResult, fp ChunkFingerprint) error {
	dataRoot, err := crypto.Base64URLDecode(fp.DataRoot)
	if err != nil {
		return fmt.Errorf("%w: decoding data root: %v", gatewayerr.ErrInvalidProof, err)
	}
	dataPath, err := crypto.Base64URLDecode(result.DataPath)
	if err != nil {
		return fmt.Errorf("%w: decoding data path: %v", gatewayerr.ErrInvalidProof, err)
	}

	// The ruleset thresholds are weave offsets; the path itself is walked
	// at the tx-relative offset.
	ruleset := merkle.GetRulesetForOffset(uint64(fp.AbsoluteOffset), c.cfg.MerkleConfig)
	req := merkle.ParseDataPathRequest{
		DataRoot: dataRoot,
		DataSize: fp.TxSize,
		DataPath: dataPath,
		Offset:   fp.RelativeOffset,
		Ruleset:  &ruleset,
	}
	_, err = merkle.ParseDataPathAuto(req, c.cfg.MerkleConfig)
	return err
}

// submitChunkToPeer is the peerqueue.SubmitFunc backing this client's
// per-peer chunk POST queue (spec.md §4.G, driven here for chunk
// broadcast rather than upload).
func (c *Client) submitChunkToPeer(ctx context.Context, task peerqueue.Task) peerqueue.Result {
	attemptCtx := ctx
	cancel := func() {}
	if task.AbortTimeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, task.AbortTimeout)
	}
	defer cancel()

	status, err := postChunkToPeer(attemptCtx, task.Peer, task.Chunk, task.Headers)
	if err != nil {
		if attemptCtx.Err() != nil {
			return peerqueue.Result{Canceled: attemptCtx.Err() == context.Canceled, TimedOut: attemptCtx.Err() == context.DeadlineExceeded, Err: err}
		}
		return peerqueue.Result{Err: err}
	}
	return peerqueue.Result{Success: status < 400, StatusCode: status}
}

// BroadcastChunk posts chunk to eligible peers per spec.md §4.G/§5:
// queue-depth-eligible peers only, preferred-first then weight-
// descending, dispatched under a global concurrency cap, stopping new
// dispatch once cfg.MinBroadcastSuccess peers accept it. Already-
// scheduled peers still run to completion and are recorded in the
// returned PeerResult slice but are not required for success.
func (c *Client) BroadcastChunk(ctx context.Context, peers []string, chunk []byte, headers map[string]string) (peerqueue.BroadcastResult, error) {
	if len(peers) == 0 {
		return peerqueue.BroadcastResult{}, fmt.Errorf("%w: no peers to broadcast to", gatewayerr.ErrNoPeerSucceeded)
	}

	taskTemplate := peerqueue.Task{
		Chunk:           chunk,
		Headers:         headers,
		ResponseTimeout: c.cfg.ChunkPeerTimeout,
	}
	return c.peerQueue.Broadcast(ctx, peers, taskTemplate, c.cfg.MinBroadcastSuccess)
}
