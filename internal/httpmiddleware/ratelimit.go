// Package httpmiddleware holds the gin middleware shared by the binaries.
package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/juju/ratelimit"

	"amalnama/internal/metrics"
)

// RateLimiter keeps one token bucket per client IP. A bucket left idle long
// enough to refill completely is dropped, since a new one starts full.
type RateLimiter struct {
	rate     float64
	capacity int64
	clock    ratelimit.Clock
	idle     time.Duration

	mu        sync.Mutex
	buckets   map[string]*clientBucket
	lastSweep time.Time
}

type clientBucket struct {
	*ratelimit.Bucket
	seen time.Time
}

// NewRateLimiter allows perMinute requests per client with bursts up to
// burst. A zero burst equals perMinute.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	return NewRateLimiterWithClock(perMinute, burst, nil)
}

// NewRateLimiterWithClock is NewRateLimiter with an explicit clock. A nil
// clock uses real time.
func NewRateLimiterWithClock(perMinute, burst int, clk ratelimit.Clock) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 120
	}
	if burst <= 0 {
		burst = perMinute
	}
	rate := float64(perMinute) / 60
	return &RateLimiter{
		rate:     rate,
		capacity: int64(burst),
		clock:    clk,
		idle:     time.Duration(float64(burst) / rate * float64(time.Second)),
		buckets:  make(map[string]*clientBucket),
	}
}

func (l *RateLimiter) now() time.Time {
	if l.clock != nil {
		return l.clock.Now()
	}
	return time.Now()
}

func (l *RateLimiter) bucket(key string) *ratelimit.Bucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.lastSweep) >= l.idle {
		l.sweep(now)
	}
	b, ok := l.buckets[key]
	if !ok {
		b = &clientBucket{}
		if l.clock != nil {
			b.Bucket = ratelimit.NewBucketWithRateAndClock(l.rate, l.capacity, l.clock)
		} else {
			b.Bucket = ratelimit.NewBucketWithRate(l.rate, l.capacity)
		}
		l.buckets[key] = b
	}
	b.seen = now
	return b.Bucket
}

// sweep drops buckets unused for at least the refill interval. Callers hold
// l.mu.
func (l *RateLimiter) sweep(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.seen) >= l.idle {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

// Clients reports how many client buckets are tracked.
func (l *RateLimiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Allow takes one token for key.
func (l *RateLimiter) Allow(key string) bool {
	return l.bucket(key).TakeAvailable(1) == 1
}

// GinMiddleware returns gin handler enforcing per-IP limits.
func (l *RateLimiter) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.Allow(ip) {
			metrics.RateLimited.Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
			return
		}
		c.Next()
	}
}
