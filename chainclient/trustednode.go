package chainclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/liteseed/gatewaycore/gatewayerr"
	"github.com/tidwall/gjson"
	"gopkg.in/h2non/gentleman.v2"
	"gopkg.in/h2non/gentleman.v2/plugins/timeout"
)

// trustedRequest performs one trusted-node HTTP round trip through the
// shared queue and leaky bucket, retrying on transport failure, 5xx, and
// 429 up to cfg.RequestRetryCount times with exponential backoff. A 429
// additionally penalizes the bucket by 2^attempt (spec.md §4.H's
// onRetry rule). Headers carry the X-AR-IO-* identification the
// teacher's gateway peers expect (spec.md §6).
func (c *Client) trustedRequest(ctx context.Context, method, path string, query map[string]string, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.RequestRetryCount; attempt++ {
		if err := c.bucket.wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: waiting on trusted-node bucket: %v", gatewayerr.ErrCanceled, err)
		}

		status, respBody, err := c.doQueued(method, path, query, body)
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", gatewayerr.ErrTransport, err)
			if !sleepBackoff(ctx, c.cfg.RetryBaseDelay, attempt) {
				return nil, fmt.Errorf("%w: %v", gatewayerr.ErrCanceled, ctx.Err())
			}
			continue
		}

		switch {
		case status == http.StatusTooManyRequests:
			c.bucket.penalizeForRetry(attempt)
			lastErr = fmt.Errorf("%w: trusted node returned 429", gatewayerr.ErrRateLimited)
			if !sleepBackoff(ctx, c.cfg.RetryBaseDelay, attempt) {
				return nil, fmt.Errorf("%w: %v", gatewayerr.ErrCanceled, ctx.Err())
			}
			continue
		case status >= 500:
			lastErr = fmt.Errorf("%w: trusted node status %d", gatewayerr.ErrTransport, status)
			if !sleepBackoff(ctx, c.cfg.RetryBaseDelay, attempt) {
				return nil, fmt.Errorf("%w: %v", gatewayerr.ErrCanceled, ctx.Err())
			}
			continue
		case status == http.StatusNotFound:
			return nil, fmt.Errorf("%w: %s", gatewayerr.ErrNotFound, path)
		case status >= 400:
			return nil, fmt.Errorf("%w: trusted node status %d on %s", gatewayerr.ErrMalformedResponse, status, path)
		default:
			return respBody, nil
		}
	}
	return nil, lastErr
}

// doQueued runs one HTTP attempt on the shared trusted-node queue,
// blocking the caller until a queue slot is free (ants.Pool's default
// blocking Submit), so trusted-node dispatch order matches enqueue
// order (spec.md §5).
func (c *Client) doQueued(method, path string, query map[string]string, body []byte) (int, []byte, error) {
	var status int
	var respBody []byte
	var runErr error
	done := make(chan struct{})

	submitErr := c.queuePool.Submit(func() {
		defer close(done)
		status, respBody, runErr = c.doOnce(method, path, query, body)
	})
	if submitErr != nil {
		return 0, nil, submitErr
	}
	<-done
	return status, respBody, runErr
}

func (c *Client) doOnce(method, path string, query map[string]string, body []byte) (int, []byte, error) {
	req := c.httpClient.Request()
	req.Use(timeout.Request(c.cfg.RequestTimeout))
	req.Method(method)
	req.Path(path)

	req.SetHeader("X-AR-IO-Node-Release", c.cfg.NodeRelease)
	req.SetHeader("X-AR-IO-Hops", fmt.Sprintf("%d", c.nextHop()))
	if c.cfg.AcceptEncodingIdentity {
		req.SetHeader("Accept-Encoding", "identity")
	}
	for k, v := range query {
		req.SetQuery(k, v)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json")
		req.Body(bytes.NewReader(body))
	}

	res, err := req.Send()
	if err != nil {
		return 0, nil, err
	}
	return res.StatusCode, res.Bytes(), nil
}

func sleepBackoff(ctx context.Context, base time.Duration, attempt int) bool {
	d := base * time.Duration(1<<uint(attempt))
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

// GetPeers fetches the trusted node's peer list (GET /peers).
func (c *Client) GetPeers(ctx context.Context) ([]string, error) {
	body, err := c.trustedRequest(ctx, http.MethodGet, "/peers", nil, nil)
	if err != nil {
		return nil, err
	}
	var peers []string
	if err := json.Unmarshal(body, &peers); err != nil {
		return nil, fmt.Errorf("%w: decoding /peers: %v", gatewayerr.ErrMalformedResponse, err)
	}
	return peers, nil
}

// GetInfo fetches /info, extracting only the fields the gateway needs
// via gjson rather than decoding the node's full (and only partially
// owned) response schema into a struct.
func (c *Client) GetInfo(ctx context.Context) (height int64, blocks int64, err error) {
	body, err := c.trustedRequest(ctx, http.MethodGet, "/info", nil, nil)
	if err != nil {
		return 0, 0, err
	}
	return gjson.GetBytes(body, "height").Int(), gjson.GetBytes(body, "blocks").Int(), nil
}

// GetHeight fetches the trusted node's current height (GET /height).
func (c *Client) GetHeight(ctx context.Context) (int64, error) {
	body, err := c.trustedRequest(ctx, http.MethodGet, "/height", nil, nil)
	if err != nil {
		return 0, err
	}
	var h int64
	if _, err := fmt.Sscanf(string(body), "%d", &h); err != nil {
		return 0, fmt.Errorf("%w: decoding /height: %v", gatewayerr.ErrMalformedResponse, err)
	}
	return h, nil
}

func (c *Client) trustedGetBlockByHeight(ctx context.Context, height uint64) (*Block, error) {
	body, err := c.trustedRequest(ctx, http.MethodGet, fmt.Sprintf("/block/height/%d", height), nil, nil)
	if err != nil {
		return nil, err
	}
	var b Block
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, fmt.Errorf("%w: decoding block %d: %v", gatewayerr.ErrMalformedResponse, height, err)
	}
	return &b, nil
}

func (c *Client) trustedGetTx(ctx context.Context, id string) (*Transaction, error) {
	body, err := c.trustedRequest(ctx, http.MethodGet, fmt.Sprintf("/tx/%s", id), nil, nil)
	if err != nil {
		body, err = c.trustedRequest(ctx, http.MethodGet, fmt.Sprintf("/unconfirmed_tx/%s", id), nil, nil)
		if err != nil {
			return nil, err
		}
	}
	var tx Transaction
	if err := json.Unmarshal(body, &tx); err != nil {
		return nil, fmt.Errorf("%w: decoding tx %s: %v", gatewayerr.ErrMalformedResponse, id, err)
	}
	return &tx, nil
}

// GetTxOffset fetches /tx/{id}/offset, parsed via gjson per spec.md §6's
// {size, offset} response shape.
func (c *Client) GetTxOffset(ctx context.Context, id string) (size int64, offset int64, err error) {
	body, err := c.trustedRequest(ctx, http.MethodGet, fmt.Sprintf("/tx/%s/offset", id), nil, nil)
	if err != nil {
		return 0, 0, err
	}
	return gjson.GetBytes(body, "size").Int(), gjson.GetBytes(body, "offset").Int(), nil
}

// GetTxField fetches a single transaction field (GET /tx/{id}/{field}).
func (c *Client) GetTxField(ctx context.Context, id, field string) (string, error) {
	body, err := c.trustedRequest(ctx, http.MethodGet, fmt.Sprintf("/tx/%s/%s", id, field), nil, nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// GetTxData fetches a transaction's raw data (GET /tx/{id}/data).
func (c *Client) GetTxData(ctx context.Context, id string) ([]byte, error) {
	return c.trustedRequest(ctx, http.MethodGet, fmt.Sprintf("/tx/%s/data", id), nil, nil)
}

// GetTxDataSize fetches a transaction's declared data size (GET
// /tx/{id}/data_size).
func (c *Client) GetTxDataSize(ctx context.Context, id string) (int64, error) {
	body, err := c.trustedRequest(ctx, http.MethodGet, fmt.Sprintf("/tx/%s/data_size", id), nil, nil)
	if err != nil {
		return 0, err
	}
	var n int64
	if _, err := fmt.Sscanf(string(body), "%d", &n); err != nil {
		return 0, fmt.Errorf("%w: decoding data_size: %v", gatewayerr.ErrMalformedResponse, err)
	}
	return n, nil
}

// GetPendingTxs fetches the mempool's transaction IDs (GET /tx/pending).
func (c *Client) GetPendingTxs(ctx context.Context) ([]string, error) {
	body, err := c.trustedRequest(ctx, http.MethodGet, "/tx/pending", nil, nil)
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(body, &ids); err != nil {
		return nil, fmt.Errorf("%w: decoding /tx/pending: %v", gatewayerr.ErrMalformedResponse, err)
	}
	return ids, nil
}

func (c *Client) trustedGetChunk(ctx context.Context, absoluteOffset int64) (*ChunkResult, error) {
	body, err := c.trustedRequest(ctx, http.MethodGet, fmt.Sprintf("/chunk/%d", absoluteOffset), nil, nil)
	if err != nil {
		return nil, err
	}
	var cr ChunkResult
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, fmt.Errorf("%w: decoding chunk at %d: %v", gatewayerr.ErrMalformedResponse, absoluteOffset, err)
	}
	return &cr, nil
}

func (c *Client) trustedPostChunk(ctx context.Context, payload []byte) error {
	_, err := c.trustedRequest(ctx, http.MethodPost, "/chunk", nil, payload)
	return err
}
