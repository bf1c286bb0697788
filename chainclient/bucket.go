package chainclient

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// trustedNodeBucket is the leaky bucket gating trusted-node requests:
// refills at a steady rate up to a multi-minute burst, with a manual
// penalty hook for 429 backoff that golang.org/x/time/rate does not
// expose natively (spec.md §4.H: "onRetry of a 429 response subtracts
// 2^attempt from the bucket").
type trustedNodeBucket struct {
	limiter *rate.Limiter
}

func newTrustedNodeBucket(requestsPerSecond float64, burstWindow time.Duration) *trustedNodeBucket {
	burst := int(requestsPerSecond * burstWindow.Seconds())
	if burst < 1 {
		burst = 1
	}
	return &trustedNodeBucket{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// wait blocks until a token is available or ctx is done, polling via the
// limiter's own internal reservation delay (spec.md §5: "request rates
// above maxRequestsPerSecond block on bucket <= 0 with a small polling
// interval").
func (b *trustedNodeBucket) wait(ctx context.Context) error {
	return b.limiter.Wait(ctx)
}

// penalizeForRetry subtracts 2^attempt tokens from the bucket by forcing
// a reservation for that many tokens without canceling it — the standard
// way to permanently debit a golang.org/x/time/rate limiter, since it has
// no direct "subtract N tokens" method.
func (b *trustedNodeBucket) penalizeForRetry(attempt int) {
	n := 1 << uint(attempt)
	b.limiter.ReserveN(time.Now(), n)
}
