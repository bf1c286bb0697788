// §4.K: the per-request integration of the limiter — predict a cost
// from the cached content length, consume it atomically against both
// the resource and IP buckets before the response streams, then
// reconcile against the real byte count once it's known.
package ratelimit

import (
	"context"
	"fmt"
	"math"

	"github.com/liteseed/gatewaycore/gatewayerr"
)

// RequestLimits is the per-request configuration a caller supplies to
// CheckRequest: the resource identity, the client address, each
// bucket's capacity/refill rate, and the paid-tier parameters.
type RequestLimits struct {
	Method, Host, Path string
	ClientIP           string

	ResourceCapacity, ResourceRefillRate float64
	IPCapacity, IPRefillRate             float64

	Paid               bool
	CapMult, RefillMult float64

	TTLSec int64

	// CachedContentLength is the last observed response size for this
	// resource, if any; nil means "no prediction yet, use 1 token".
	CachedContentLength *int64

	// Disabled skips the gate but still records content length so
	// future predictions improve.
	Disabled bool
}

// Reservation is what CheckRequest returns on success: enough to
// reconcile once the real response size is known.
type Reservation struct {
	ResourceKey     string
	IPKey           string
	PredictedTokens float64
}

// Decision is the gate's verdict.
type Decision struct {
	Allowed     bool
	Reason      string
	Reservation *Reservation
}

const (
	ReasonResourceLimitExceeded = "Resource rate limit exceeded"
	ReasonIPLimitExceeded       = "IP rate limit exceeded"
)

// CheckRequest predicts a token cost, then consumes it from the
// resource bucket and, if that succeeds, the IP bucket. The resource
// bucket is checked first per spec: a resource-limited request never
// touches the IP bucket.
func (l *Limiter) CheckRequest(ctx context.Context, lim RequestLimits, nowMs int64) (*Decision, error) {
	predicted := predictTokensNeeded(lim.CachedContentLength, 1)
	resourceKey := ResourceKey(lim.Method, lim.Host, lim.Path)
	ipKey := IPKey(lim.ClientIP)

	if lim.Disabled {
		if lim.CachedContentLength != nil {
			if err := l.UpdateContentLength(ctx, resourceKey, *lim.CachedContentLength, lim.TTLSec); err != nil {
				return nil, err
			}
		}
		return &Decision{Allowed: true, Reservation: &Reservation{ResourceKey: resourceKey, IPKey: ipKey, PredictedTokens: predicted}}, nil
	}

	contentLength := int64(-1)
	if lim.CachedContentLength != nil {
		contentLength = *lim.CachedContentLength
	}

	resResult, err := l.GetOrCreateBucketAndConsume(ctx, resourceKey, lim.ResourceCapacity, lim.ResourceRefillRate, nowMs, lim.TTLSec, predicted, lim.Paid, lim.CapMult, lim.RefillMult, contentLength)
	if err != nil {
		return nil, err
	}
	if !resResult.Success {
		l.log.Warn("rate limit rejected request", "reason", ReasonResourceLimitExceeded, "key", resourceKey, "predicted", predicted)
		return &Decision{Allowed: false, Reason: ReasonResourceLimitExceeded}, nil
	}

	ipResult, err := l.GetOrCreateBucketAndConsume(ctx, ipKey, lim.IPCapacity, lim.IPRefillRate, nowMs, lim.TTLSec, predicted, lim.Paid, lim.CapMult, lim.RefillMult, -1)
	if err != nil {
		return nil, err
	}
	if !ipResult.Success {
		l.log.Warn("rate limit rejected request", "reason", ReasonIPLimitExceeded, "key", ipKey, "predicted", predicted)
		return &Decision{Allowed: false, Reason: ReasonIPLimitExceeded}, nil
	}

	return &Decision{
		Allowed:     true,
		Reservation: &Reservation{ResourceKey: resourceKey, IPKey: ipKey, PredictedTokens: resResult.Consumed},
	}, nil
}

// Reconcile compares the reserved prediction against actualBytes
// streamed and, if they differ, issues a compensating (possibly
// negative) consumeTokens on both buckets so the cached content length
// improves for the next request.
func (l *Limiter) Reconcile(ctx context.Context, res *Reservation, actualBytes int64, ttlSec int64) error {
	if res == nil {
		return fmt.Errorf("%w: nil reservation", gatewayerr.ErrMalformedResponse)
	}
	actual := math.Ceil(float64(actualBytes) / 1024)
	if actual < 1 {
		actual = 1
	}
	diff := actual - res.PredictedTokens
	if diff == 0 {
		return nil
	}
	if _, err := l.ConsumeTokens(ctx, res.ResourceKey, diff, ttlSec, actualBytes); err != nil {
		return err
	}
	_, err := l.ConsumeTokens(ctx, res.IPKey, diff, ttlSec, -1)
	return err
}
