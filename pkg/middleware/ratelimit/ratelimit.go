package ratelimit

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/dance-studio-api/pkg/errors"
	"github.com/noah-isme/dance-studio-api/pkg/response"
)

const idleEviction = 10 * time.Minute

// Limiter is an in-memory token bucket keyed by client IP. Each bucket holds
// up to perMinute tokens and refills continuously.
type Limiter struct {
	capacity float64
	mu       sync.Mutex
	buckets  map[string]*bucket
	now      func() time.Time
	lastGC   time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

// New returns a limiter allowing perMinute requests per client. A
// non-positive value disables limiting.
func New(perMinute int) *Limiter {
	return &Limiter{
		capacity: float64(perMinute),
		buckets:  make(map[string]*bucket),
		now:      time.Now,
	}
}

// Middleware rejects requests over the limit with a 429 envelope.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.capacity <= 0 {
			c.Next()
			return
		}
		key := c.ClientIP()
		if key == "" {
			key = "unknown"
		}
		allowed, retryAfter := l.Allow(key)
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			response.Error(c, appErrors.Clone(appErrors.ErrRateLimited, "too many requests, please try again later"))
			return
		}
		c.Next()
	}
}

// Allow takes one token for key. When none is left it reports the number of
// seconds until the next token.
func (l *Limiter) Allow(key string) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.evictIdle(now)

	b, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &bucket{tokens: l.capacity - 1, last: now}
		return true, 0
	}

	b.tokens = math.Min(l.capacity, b.tokens+now.Sub(b.last).Seconds()*l.capacity/60)
	b.last = now
	if b.tokens < 1 {
		return false, int(math.Ceil((1 - b.tokens) * 60 / l.capacity))
	}
	b.tokens--
	return true, 0
}

func (l *Limiter) evictIdle(now time.Time) {
	if now.Sub(l.lastGC) < idleEviction {
		return
	}
	l.lastGC = now
	for key, b := range l.buckets {
		if now.Sub(b.last) >= idleEviction {
			delete(l.buckets, key)
		}
	}
}
