package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterRefill(t *testing.T) {
	rl := NewRateLimiter(60, 2)
	defer rl.Stop()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Check("a").Allowed)
	assert.True(t, rl.Check("a").Allowed)

	denied := rl.Check("a")
	assert.False(t, denied.Allowed)
	assert.Equal(t, time.Second, denied.RetryAfter)

	// Other clients have their own bucket
	assert.True(t, rl.Check("b").Allowed)

	now = now.Add(time.Second)
	assert.True(t, rl.Check("a").Allowed)
	assert.False(t, rl.Check("a").Allowed)

	// Refill never exceeds the burst
	now = now.Add(time.Hour)
	assert.Equal(t, 1, rl.Check("a").Remaining)
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(60, 1)
	defer rl.Stop()

	now := time.Now()
	rl.now = func() time.Time { return now }
	rl.Check("stale")

	now = now.Add(bucketExpiry + time.Minute)
	rl.Check("fresh")
	rl.performCleanup()

	rl.bucketMutex.RLock()
	defer rl.bucketMutex.RUnlock()
	assert.NotContains(t, rl.buckets, "stale")
	assert.Contains(t, rl.buckets, "fresh")
}

func TestBurstFor(t *testing.T) {
	assert.Equal(t, 1, burstFor(1))
	assert.Equal(t, 1, burstFor(15))
	assert.Equal(t, 60, burstFor(600))
}

func TestRateLimiterStopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(10, 1)
	rl.Stop()
	assert.NotPanics(t, rl.Stop)
}
