package chainclient

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/liteseed/gatewaycore/gatewayerr"
)

// PrefetchBlockByHeight returns the cached block at height if still
// fresh, else starts (or joins) a single fetch for it. A failed fetch
// evicts the entry so the next caller tries again (invariant 9). When
// prefetchTxs is true, every transaction id in a successfully fetched
// block is prefetched in the background, fire-and-forget.
func (c *Client) PrefetchBlockByHeight(ctx context.Context, height uint64, prefetchTxs bool) (*Block, error) {
	if block, err, ok := c.blockTTL.get(height); ok {
		return block, err
	}

	key := strconv.FormatUint(height, 10)
	v, err, _ := c.blockGroup.Do(key, func() (interface{}, error) {
		block, ferr := c.fetchAndStoreBlock(ctx, height, prefetchTxs)
		if ferr != nil {
			c.blockTTL.evict(height)
			c.log.Debug("block cache evicted after failed fetch", "height", height, "err", ferr)
			return nil, ferr
		}
		c.blockTTL.put(height, block, c.cfg.PrefetchTTL)
		return block, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Block), nil
}

func (c *Client) fetchAndStoreBlock(ctx context.Context, height uint64, prefetchTxs bool) (*Block, error) {
	if c.blockStore != nil {
		if b, serr := c.blockStore.GetBlockByHeight(ctx, height); serr == nil && b != nil {
			return b, nil
		}
	}

	block, err := c.trustedGetBlockByHeight(ctx, height)
	if err != nil {
		return nil, err
	}
	stripPoAFields(block)
	if err := sanityCheckBlock(block, height); err != nil {
		return nil, err
	}

	c.bumpMaxPrefetchHeight(height)
	if c.blockStore != nil && c.maxPrefetchHeight-height > c.cfg.MaxForkDepth {
		if serr := c.blockStore.PutBlockByHeight(ctx, height, block); serr != nil {
			c.log.Warn("persisting block failed", "height", height, "err", serr)
		}
	}

	if prefetchTxs {
		for _, txID := range block.Txs {
			go func(id string) {
				if _, perr := c.PrefetchTx(context.Background(), id); perr != nil {
					c.log.Debug("fire-and-forget tx prefetch failed", "tx", id, "err", perr)
				}
			}(txID)
		}
	}
	return block, nil
}

func (c *Client) bumpMaxPrefetchHeight(height uint64) {
	for {
		cur := atomic.LoadUint64(&c.maxPrefetchHeight)
		if height <= cur {
			return
		}
		if atomic.CompareAndSwapUint64(&c.maxPrefetchHeight, cur, height) {
			return
		}
	}
}

func sanityCheckBlock(b *Block, expectedHeight uint64) error {
	if b.Height != expectedHeight {
		return fmt.Errorf("%w: block height mismatch, expected %d got %d", gatewayerr.ErrMalformedResponse, expectedHeight, b.Height)
	}
	if b.IndepHash == "" {
		return fmt.Errorf("%w: block %d missing indep_hash", gatewayerr.ErrMalformedResponse, expectedHeight)
	}
	return nil
}
