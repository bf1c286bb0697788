package chainclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/liteseed/gatewaycore/gatewayerr"
)

// fetchChunkFromPeer performs one direct GET /chunk/{absoluteOffset}
// against peer, outside the trusted-node queue/bucket — peers are not
// rate-limited the way the trusted node is (spec.md §4.H: "peer errors
// never trigger trusted-node retries for chunk GET; peers are the
// authority").
func fetchChunkFromPeer(ctx context.Context, peer string, absoluteOffset int64, nodeRelease string) (*ChunkResult, error) {
	url := fmt.Sprintf("%s/chunk/%d", peer, absoluteOffset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gatewayerr.ErrTransport, err)
	}
	req.Header.Set("X-AR-IO-Node-Release", nodeRelease)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: %v", gatewayerr.ErrTimedOut, err)
		}
		if ctx.Err() == context.Canceled {
			return nil, fmt.Errorf("%w: %v", gatewayerr.ErrCanceled, err)
		}
		return nil, fmt.Errorf("%w: %v", gatewayerr.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gatewayerr.ErrTransport, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: chunk at %d", gatewayerr.ErrNotFound, absoluteOffset)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: peer %s status %d", gatewayerr.ErrMalformedResponse, peer, resp.StatusCode)
	}

	var cr ChunkResult
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, fmt.Errorf("%w: %v", gatewayerr.ErrMalformedResponse, err)
	}
	return &cr, nil
}

// postChunkToPeer performs one direct POST /chunk against peer with a
// JSON chunk payload and extra headers (X-AR-IO-Origin etc).
func postChunkToPeer(ctx context.Context, peer string, chunk []byte, headers map[string]string) (int, error) {
	url := peer + "/chunk"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(chunk))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", gatewayerr.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return 0, fmt.Errorf("%w: %v", gatewayerr.ErrTimedOut, err)
		}
		if ctx.Err() == context.Canceled {
			return 0, fmt.Errorf("%w: %v", gatewayerr.ErrCanceled, err)
		}
		return 0, fmt.Errorf("%w: %v", gatewayerr.ErrTransport, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
