// Package ratelimit implements the atomic, paid-tier-aware token-bucket
// limiter backed by Redis. The bucket shape (rate, burst/capacity,
// tokens, lastRefill) follows the sharded in-process limiter sketched in
// the example rate-limiter corpus file, generalized from in-memory
// shards to a single atomic Redis Lua script so the bucket state is
// shared across every gateway process rather than sharded per instance.
package ratelimit

import (
	"context"
	"fmt"

	"github.com/liteseed/gatewaycore/gatewayerr"
	"github.com/liteseed/gatewaycore/log"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// tokensPerKiB is the byte→token conversion rate used whenever a
// request's cost is predicted or reconciled from a byte count.
var tokensPerKiB = decimal.NewFromFloat(1.0)

// consumeAndRefillScript implements getOrCreateBucketAndConsume
// atomically: refill (capped at capacity, or topped up to
// capacity*capMult for paid buckets, skipping the time-based refill
// entirely), then consume iff enough tokens are available.
var consumeAndRefillScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refillRate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])
local requested = tonumber(ARGV[5])
local paid = ARGV[6] == "1"
local capMult = tonumber(ARGV[7])
local refillMult = tonumber(ARGV[8])
local contentLength = tonumber(ARGV[9])

local data = redis.call("HMGET", key, "tokens", "lastRefill", "contentLength")
local tokens = tonumber(data[1])
local lastRefill = tonumber(data[2])
local storedContentLength = tonumber(data[3])

if tokens == nil then
  tokens = capacity
  lastRefill = now
end

if paid then
  tokens = capacity * capMult
else
  if tokens > capacity then
    tokens = capacity
  end
  local elapsedMs = now - lastRefill
  if elapsedMs < 0 then elapsedMs = 0 end
  local refill = (elapsedMs * refillRate * refillMult) / 1000
  tokens = tokens + refill
  if tokens > capacity then
    tokens = capacity
  end
end
lastRefill = now

local effectiveContentLength = storedContentLength
if contentLength >= 0 then
  effectiveContentLength = contentLength
end

local actualTokensNeeded = requested
if effectiveContentLength ~= nil and effectiveContentLength >= 0 then
  local kib = math.ceil(effectiveContentLength / 1024)
  if kib < 1 then kib = 1 end
  actualTokensNeeded = kib
end

local success = 0
local consumed = 0
if tokens >= actualTokensNeeded then
  tokens = tokens - actualTokensNeeded
  consumed = actualTokensNeeded
  success = 1
end

redis.call("HSET", key, "tokens", tokens, "lastRefill", lastRefill, "capacity", capacity, "refillRate", refillRate)
if effectiveContentLength ~= nil and effectiveContentLength >= 0 then
  redis.call("HSET", key, "contentLength", effectiveContentLength)
end
redis.call("EXPIRE", key, ttl)

return {tostring(tokens), tostring(lastRefill), tostring(consumed), tostring(success)}
`)

// consumeOnlyScript implements the non-atomic consumeTokens path, which
// may drive tokens negative — used for post-response reconciliation.
var consumeOnlyScript = redis.NewScript(`
local key = KEYS[1]
local n = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])
local contentLength = tonumber(ARGV[3])

local tokens = tonumber(redis.call("HGET", key, "tokens"))
if tokens == nil then
  tokens = 0
end
tokens = tokens - n
redis.call("HSET", key, "tokens", tokens)
if contentLength >= 0 then
  redis.call("HSET", key, "contentLength", contentLength)
end
redis.call("EXPIRE", key, ttl)
return tostring(tokens)
`)

// updateContentLengthScript records an observed content length without
// consuming or refilling anything, for the limits-disabled path where
// predictions should still improve over time.
var updateContentLengthScript = redis.NewScript(`
redis.call("HSET", KEYS[1], "contentLength", ARGV[1])
redis.call("EXPIRE", KEYS[1], ARGV[2])
return "OK"
`)

// Bucket is a snapshot of one key's post-operation state.
type Bucket struct {
	Key        string
	Tokens     float64
	LastRefill int64
}

// ConsumeResult is the outcome of GetOrCreateBucketAndConsume.
type ConsumeResult struct {
	Bucket   Bucket
	Consumed float64
	Success  bool
}

// Limiter wraps a Redis client with the atomic token-bucket operations.
type Limiter struct {
	rdb *redis.Client
	log log.Logger
}

// New wraps an existing Redis client. The caller owns the client's
// lifecycle (connection pool, auth, TLS).
func New(rdb *redis.Client) *Limiter {
	return &Limiter{rdb: rdb, log: log.New("ratelimit")}
}

// ResourceKey builds the hash-tagged resource bucket key for a
// method/host/path triple, grouped so a Redis Cluster keeps the resource
// and IP buckets of one reservation on a single shard.
func ResourceKey(method, host, path string) string {
	return fmt.Sprintf("{rl:%s:%s:%s}:resource", method, host, path)
}

// IPKey builds the bucket key for a client address.
func IPKey(addr string) string {
	return fmt.Sprintf("rl:ip:%s", addr)
}

// GetOrCreateBucketAndConsume atomically refills key's bucket and, if it
// holds enough tokens for actualTokensNeeded (derived from the cached
// contentLength when known, else requested), consumes them and
// succeeds; otherwise it consumes nothing (the refilled token count and
// lastRefill are still stored) and fails. paid
// buckets are topped up to capacity*capMult instead of time-refilled;
// unpaid buckets are clipped back to capacity before refilling.
// contentLength < 0 means "no observed length this call".
func (l *Limiter) GetOrCreateBucketAndConsume(
	ctx context.Context,
	key string,
	capacity, refillRate float64,
	nowMs int64,
	ttlSec int64,
	requested float64,
	paid bool,
	capMult, refillMult float64,
	contentLength int64,
) (*ConsumeResult, error) {
	if capMult <= 0 {
		capMult = 1
	}
	if refillMult <= 0 {
		refillMult = 1
	}
	paidArg := "0"
	if paid {
		paidArg = "1"
	}

	res, err := consumeAndRefillScript.Run(ctx, l.rdb, []string{key},
		capacity, refillRate, nowMs, ttlSec, requested, paidArg, capMult, refillMult, contentLength,
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: bucket consume: %v", gatewayerr.ErrTransport, err)
	}

	fields, ok := res.([]interface{})
	if !ok || len(fields) != 4 {
		return nil, fmt.Errorf("%w: unexpected bucket script reply shape", gatewayerr.ErrMalformedResponse)
	}
	tokens := parseFloatField(fields[0])
	lastRefill := int64(parseFloatField(fields[1]))
	consumed := parseFloatField(fields[2])
	success := parseFloatField(fields[3]) == 1

	return &ConsumeResult{
		Bucket:   Bucket{Key: key, Tokens: tokens, LastRefill: lastRefill},
		Consumed: consumed,
		Success:  success,
	}, nil
}

// ConsumeTokens applies a non-atomic, possibly negative adjustment to
// key's token count — the post-response reconciliation path.
// contentLength < 0 means "don't update the cached length".
func (l *Limiter) ConsumeTokens(ctx context.Context, key string, n float64, ttlSec int64, contentLength int64) (float64, error) {
	res, err := consumeOnlyScript.Run(ctx, l.rdb, []string{key}, n, ttlSec, contentLength).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: consumeTokens: %v", gatewayerr.ErrTransport, err)
	}
	s, ok := res.(string)
	if !ok {
		return 0, fmt.Errorf("%w: unexpected consumeTokens reply shape", gatewayerr.ErrMalformedResponse)
	}
	var tokens float64
	if _, err := fmt.Sscanf(s, "%g", &tokens); err != nil {
		return 0, fmt.Errorf("%w: parsing consumeTokens reply: %v", gatewayerr.ErrMalformedResponse, err)
	}
	return tokens, nil
}

// UpdateContentLength records contentLength on key without consuming or
// refilling anything — used when rate limiting is disabled but
// predictions should still improve over time.
func (l *Limiter) UpdateContentLength(ctx context.Context, key string, contentLength int64, ttlSec int64) error {
	if _, err := updateContentLengthScript.Run(ctx, l.rdb, []string{key}, contentLength, ttlSec).Result(); err != nil {
		return fmt.Errorf("%w: updating content length: %v", gatewayerr.ErrTransport, err)
	}
	return nil
}

// predictTokensNeeded is actualTokensNeeded's pure-Go twin: cached
// contentLength (if known and non-negative) wins over requested,
// converted at tokensPerKiB and floored to at least 1. The conversion
// runs through decimal.Decimal rather than plain float64 division so
// the byte→token ratio can't drift from rounding the way a raw float
// division would. The Lua script above computes the same value
// server-side for the atomic path; this is used wherever a caller needs
// the prediction before issuing a reservation (e.g. to decide what to
// pass as requested).
func predictTokensNeeded(contentLength *int64, requested float64) float64 {
	if contentLength != nil && *contentLength >= 0 {
		kib := decimal.NewFromInt(*contentLength).
			Div(decimal.NewFromInt(1024)).
			Mul(tokensPerKiB).
			Ceil()
		if kib.LessThan(decimal.NewFromInt(1)) {
			kib = decimal.NewFromInt(1)
		}
		f, _ := kib.Float64()
		return f
	}
	return requested
}

func parseFloatField(v interface{}) float64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	var f float64
	_, _ = fmt.Sscanf(s, "%g", &f)
	return f
}
