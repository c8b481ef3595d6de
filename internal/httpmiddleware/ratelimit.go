package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// KeyFunc picks the bucket a request is charged to. An empty key falls
// back to the client IP.
type KeyFunc func(c *gin.Context) string

// TokenBucket is an in-memory per-key rate limiter refilled per minute.
type TokenBucket struct {
	capacity int
	rate     int
	key      KeyFunc
	now      func() time.Time

	mu    sync.Mutex
	state map[string]*bucket
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewTokenBucket creates a limiter allowing perMinute requests per key
// with bursts up to capacity.
func NewTokenBucket(capacity, perMinute int, key KeyFunc) *TokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	return &TokenBucket{
		capacity: capacity,
		rate:     perMinute,
		key:      key,
		now:      time.Now,
		state:    make(map[string]*bucket),
	}
}

// GinMiddleware returns the gin handler enforcing the limit.
func (l *TokenBucket) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.rate <= 0 {
			c.Next()
			return
		}
		k := ""
		if l.key != nil {
			k = l.key(c)
		}
		if k == "" {
			k = "ip:" + c.ClientIP()
		}
		if !l.allow(k) {
			log.Warn().Str("key", k).Str("path", c.FullPath()).Msg("rate limited")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
			return
		}
		c.Next()
	}
}

func (l *TokenBucket) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	b, ok := l.state[key]
	if !ok {
		l.state[key] = &bucket{tokens: l.capacity - 1, last: now}
		return true
	}
	refill := int(now.Sub(b.last).Minutes() * float64(l.rate))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// Sweep forgets buckets untouched for longer than idle.
func (l *TokenBucket) Sweep(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-idle)
	n := 0
	for k, b := range l.state {
		if b.last.Before(cutoff) {
			delete(l.state, k)
			n++
		}
	}
	return n
}
