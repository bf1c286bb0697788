package chainclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketWaitAllowsBurstThenBlocks(t *testing.T) {
	b := newTrustedNodeBucket(10, time.Second) // burst = 10
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.NoError(t, b.wait(ctx))
	}

	start := time.Now()
	require.NoError(t, b.wait(ctx))
	assert.Greater(t, time.Since(start), time.Duration(0))
}

func TestBucketWaitRespectsContextCancellation(t *testing.T) {
	b := newTrustedNodeBucket(1, time.Second)
	require.NoError(t, b.wait(context.Background())) // drain the single burst token

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := b.wait(ctx)
	assert.Error(t, err)
}

func TestBucketPenalizeForRetryConsumesTokens(t *testing.T) {
	b := newTrustedNodeBucket(100, time.Second) // burst = 100
	b.penalizeForRetry(3)                       // subtracts 2^3 = 8 tokens

	ctx := context.Background()
	for i := 0; i < 100-8; i++ {
		require.NoError(t, b.wait(ctx))
	}
	start := time.Now()
	require.NoError(t, b.wait(ctx))
	assert.Greater(t, time.Since(start), time.Duration(0))
}

func TestBucketBurstFloorsToOne(t *testing.T) {
	b := newTrustedNodeBucket(0.001, time.Millisecond)
	require.Equal(t, 1, b.limiter.Burst())
}
