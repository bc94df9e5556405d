package server

import (
	"sync"
	"time"
)

const (
	bucketExpiry    = 10 * time.Minute
	cleanupInterval = 5 * time.Minute
)

// RateLimiter implements per-client token bucket rate limiting
type RateLimiter struct {
	buckets     map[string]*tokenBucket
	bucketMutex sync.RWMutex
	perMinute   int
	burst       int
	now         func() time.Time
	cleaner     *time.Ticker
	stopOnce    sync.Once
	stop        chan struct{}
}

type tokenBucket struct {
	tokens     int
	lastRefill time.Time
	lastAccess time.Time
	mutex      sync.Mutex
}

// RateLimitResult represents the result of a rate limit check
type RateLimitResult struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// burstFor sizes the bucket at a tenth of the per-minute rate, at least one.
func burstFor(perMinute int) int {
	if b := perMinute / 10; b > 1 {
		return b
	}
	return 1
}

// NewRateLimiter creates a limiter refilling perMinute tokens per minute
// into buckets of size burst.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	rl := &RateLimiter{
		buckets:   make(map[string]*tokenBucket),
		perMinute: perMinute,
		burst:     burst,
		now:       time.Now,
		cleaner:   time.NewTicker(cleanupInterval),
		stop:      make(chan struct{}),
	}
	go rl.cleanupExpiredBuckets()
	return rl
}

// Check consumes a token for key if one is available.
func (rl *RateLimiter) Check(key string) RateLimitResult {
	now := rl.now()
	bucket := rl.getBucket(key, now)

	bucket.mutex.Lock()
	defer bucket.mutex.Unlock()

	bucket.lastAccess = now
	rl.refill(bucket, now)

	if bucket.tokens > 0 {
		bucket.tokens--
		return RateLimitResult{Allowed: true, Remaining: bucket.tokens}
	}

	return RateLimitResult{
		Allowed:    false,
		RetryAfter: time.Minute / time.Duration(rl.perMinute),
	}
}

func (rl *RateLimiter) getBucket(key string, now time.Time) *tokenBucket {
	rl.bucketMutex.RLock()
	bucket, exists := rl.buckets[key]
	rl.bucketMutex.RUnlock()
	if exists {
		return bucket
	}

	rl.bucketMutex.Lock()
	defer rl.bucketMutex.Unlock()

	// Double-check after acquiring write lock
	if bucket, exists := rl.buckets[key]; exists {
		return bucket
	}
	bucket = &tokenBucket{tokens: rl.burst, lastRefill: now, lastAccess: now}
	rl.buckets[key] = bucket
	return bucket
}

// refill must be called with the bucket mutex held.
func (rl *RateLimiter) refill(b *tokenBucket, now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	tokensToAdd := int(elapsed * time.Duration(rl.perMinute) / time.Minute)
	if tokensToAdd <= 0 {
		return
	}
	b.tokens += tokensToAdd
	if b.tokens > rl.burst {
		b.tokens = rl.burst
	}
	b.lastRefill = now
}

func (rl *RateLimiter) cleanupExpiredBuckets() {
	for {
		select {
		case <-rl.cleaner.C:
			rl.performCleanup()
		case <-rl.stop:
			rl.cleaner.Stop()
			return
		}
	}
}

// performCleanup removes buckets not accessed for bucketExpiry.
func (rl *RateLimiter) performCleanup() {
	rl.bucketMutex.Lock()
	defer rl.bucketMutex.Unlock()

	now := rl.now()
	for key, bucket := range rl.buckets {
		bucket.mutex.Lock()
		if now.Sub(bucket.lastAccess) > bucketExpiry {
			delete(rl.buckets, key)
		}
		bucket.mutex.Unlock()
	}
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}
