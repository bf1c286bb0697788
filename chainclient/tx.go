package chainclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/liteseed/gatewaycore/crypto"
	"github.com/liteseed/gatewaycore/gatewayerr"
)

// GetTx tries the peer fleet first, "first success wins" (spec.md
// §4.H); only on total peer failure does it fall back to the trusted
// node via PrefetchTx.
func (c *Client) GetTx(ctx context.Context, id string) (*Transaction, error) {
	if peers := c.snapshotPeers(); len(peers) > 0 {
		if tx, err := c.peerGetTx(ctx, id); err == nil {
			return tx, nil
		}
	}
	return c.PrefetchTx(ctx, id)
}

// PrefetchTx returns the cached transaction for id if still fresh, else
// starts (or joins) a single trusted-node fetch for it. A failed fetch
// evicts the entry (invariant 9).
func (c *Client) PrefetchTx(ctx context.Context, id string) (*Transaction, error) {
	if tx, err, ok := c.txTTL.get(id); ok {
		return tx, err
	}

	v, err, _ := c.txGroup.Do(id, func() (interface{}, error) {
		tx, ferr := c.fetchAndStoreTx(ctx, id)
		if ferr != nil {
			c.txTTL.evict(id)
			c.log.Debug("tx cache evicted after failed fetch", "id", id, "err", ferr)
			return nil, ferr
		}
		c.txTTL.put(id, tx, c.cfg.PrefetchTTL)
		return tx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Transaction), nil
}

func (c *Client) fetchAndStoreTx(ctx context.Context, id string) (*Transaction, error) {
	tx, err := c.trustedGetTx(ctx, id)
	if err != nil {
		return nil, err
	}
	tx.Data = ""
	if err := sanityCheckTx(tx, id); err != nil {
		return nil, err
	}
	if tx.Owner == "" {
		if owner, rerr := c.recoverOwner(tx); rerr != nil {
			c.log.Warn("owner recovery failed", "tx", id, "err", rerr)
		} else {
			tx.Owner = crypto.Base64URLEncode(owner)
		}
	}
	if c.txStore != nil {
		if serr := c.txStore.PutTx(ctx, id, tx); serr != nil {
			c.log.Warn("persisting tx failed", "tx", id, "err", serr)
		}
	}
	return tx, nil
}

func sanityCheckTx(tx *Transaction, expectedID string) error {
	if tx.ID != "" && tx.ID != expectedID {
		return fmt.Errorf("%w: tx id mismatch, expected %s got %s", gatewayerr.ErrMalformedResponse, expectedID, tx.ID)
	}
	if tx.Signature == "" {
		return fmt.Errorf("%w: tx %s missing signature", gatewayerr.ErrMalformedResponse, expectedID)
	}
	return nil
}

// peerGetTx fans a GET out to every weighted peer concurrently and
// returns as soon as one succeeds, canceling the rest (spec.md §4.H:
// "Promise.any-style first success wins"). This is a distinct dispatch
// shape from peerqueue.Broadcast's minSuccess-staged fan-out (§4.G) and
// is implemented independently here rather than through the peer queue,
// since Broadcast's Task/Result types carry no typed transaction value
// to return; it reuses only the peer queue's weight table for selection
// and warm/cool feedback.
func (c *Client) peerGetTx(ctx context.Context, id string) (*Transaction, error) {
	peers := c.snapshotPeers()
	if len(peers) == 0 {
		return nil, fmt.Errorf("%w: no peers available", gatewayerr.ErrNoPeerSucceeded)
	}

	bctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		tx   *Transaction
		peer string
		err  error
	}
	out := make(chan outcome, len(peers))
	for _, peer := range peers {
		go func(p string) {
			tx, err := c.fetchTxFromPeer(bctx, p, id)
			out <- outcome{tx, p, err}
		}(peer)
	}

	var lastErr error
	for range peers {
		o := <-out
		if o.err == nil {
			cancel()
			c.peerQueue.Weights().OnSuccess(o.peer, peerWeightDelta)
			return o.tx, nil
		}
		lastErr = o.err
		c.peerQueue.Weights().OnFailure(o.peer, peerWeightDelta)
	}
	return nil, fmt.Errorf("%w: %v", gatewayerr.ErrNoPeerSucceeded, lastErr)
}

const peerWeightDelta = 5

func (c *Client) fetchTxFromPeer(ctx context.Context, peer, id string) (*Transaction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, peer+"/tx/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gatewayerr.ErrTransport, err)
	}
	req.Header.Set("X-AR-IO-Node-Release", c.cfg.NodeRelease)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gatewayerr.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gatewayerr.ErrTransport, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", gatewayerr.ErrNotFound, id)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: peer %s status %d", gatewayerr.ErrMalformedResponse, peer, resp.StatusCode)
	}

	var tx Transaction
	if err := json.Unmarshal(body, &tx); err != nil {
		return nil, fmt.Errorf("%w: %v", gatewayerr.ErrMalformedResponse, err)
	}
	return &tx, nil
}
