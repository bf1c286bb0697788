// Package gatewayerr defines the abstract error kinds shared across every
// gatewaycore component: transport, rate limiting, proof validation, and
// bundle parsing failures all classify into one of these sentinels so
// callers can branch with errors.Is instead of string matching.
package gatewayerr

import "errors"

var (
	// ErrCanceled means the caller aborted the request before a response
	// arrived. A TransportError sub-classification.
	ErrCanceled = errors.New("transport: canceled")

	// ErrTimedOut means the remote end stayed silent past the deadline.
	// A TransportError sub-classification.
	ErrTimedOut = errors.New("transport: timed out")

	// ErrTransport is the general TransportError kind: peer unreachable,
	// DNS failure, connection refused. Wrap with fmt.Errorf("...: %w", ErrTransport).
	ErrTransport = errors.New("transport error")

	// ErrRateLimited means an upstream responded 429.
	ErrRateLimited = errors.New("upstream rate limited")

	// ErrMalformedResponse means a sanity check or format parse failed.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrInvalidProof means a Merkle hash mismatch or ruleset violation.
	ErrInvalidProof = errors.New("invalid merkle proof")

	// ErrNotFound means the resource is genuinely absent.
	ErrNotFound = errors.New("not found")

	// ErrRateExceeded means the local limiter gate rejected the request.
	ErrRateExceeded = errors.New("local rate limit exceeded")

	// ErrBundleParse means an ANS-104 bundle or data item header could
	// not be parsed.
	ErrBundleParse = errors.New("bundle parse error")

	// ErrUnknownSignatureType means a data item declared a sigType this
	// module does not recognize.
	ErrUnknownSignatureType = errors.New("unknown signature type")

	// ErrNoPeerSucceeded means every peer attempt for a chunk/tx fetch
	// failed and no trusted-node fallback remains.
	ErrNoPeerSucceeded = errors.New("no peer succeeded")

	// ErrQueueFull means a peer's queue depth was already at or above
	// its admission threshold; the caller was rejected, not blocked.
	ErrQueueFull = errors.New("peer queue full")
)

// IsCanceled reports whether err (or anything it wraps) is ErrCanceled.
func IsCanceled(err error) bool { return errors.Is(err, ErrCanceled) }

// IsTimedOut reports whether err (or anything it wraps) is ErrTimedOut.
func IsTimedOut(err error) bool { return errors.Is(err, ErrTimedOut) }

// IsRetryable reports whether the error kind is one a caller should retry
// against a different peer or after backoff: transport failures and
// upstream rate limiting are; malformed responses, invalid proofs, and
// not-found are not (they are either fatal or require cooling, not retry).
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrCanceled) ||
		errors.Is(err, ErrTimedOut) ||
		errors.Is(err, ErrRateLimited)
}
