package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenBucketAllowsUpToCapacityThenBlocks(t *testing.T) {
	t.Parallel()
	tb := NewTokenBucket(3, 0)

	require.True(t, tb.Allow())
	require.True(t, tb.Allow())
	require.True(t, tb.Allow())
	require.False(t, tb.Allow(), "bucket should be exhausted after capacity draws")
}

func TestTokenBucketRefillsOverTime(t *testing.T) {
	t.Parallel()
	tb := NewTokenBucket(1, 100) // 100/s refill, drains fast

	require.True(t, tb.Allow())
	require.False(t, tb.Allow())

	time.Sleep(20 * time.Millisecond)
	require.True(t, tb.Allow(), "bucket should have refilled at least one token")
}

func TestTokenBucketNeverExceedsCapacity(t *testing.T) {
	t.Parallel()
	tb := NewTokenBucket(2, 1000)

	time.Sleep(20 * time.Millisecond)
	require.True(t, tb.Allow())
	require.True(t, tb.Allow())
	require.False(t, tb.Allow(), "refill must be capped at capacity")
}

func TestPerPrincipalIsolatesBuckets(t *testing.T) {
	t.Parallel()
	limiter := NewPerPrincipal(1, 0)

	require.True(t, limiter.Allow("alice"))
	require.False(t, limiter.Allow("alice"), "alice's bucket should be exhausted")
	require.True(t, limiter.Allow("bob"), "bob has an independent bucket")
}
