package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/openlearn/openlearn/backend/go-services/pkg/metrics"
)

// Limiter decides whether one more request under key may pass. When it
// may not, retry is how long the caller should wait.
type Limiter interface {
	Name() string
	Allow(ctx context.Context, key string) (ok bool, retry time.Duration, err error)
}

// MemoryLimiter keeps one token bucket per key in process memory. Buckets
// idle for longer than the idle window are dropped on the next sweep.
type MemoryLimiter struct {
	rps   rate.Limit
	burst int
	idle  time.Duration

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewMemoryLimiter(rps float64, burst int) *MemoryLimiter {
	if burst < 1 {
		burst = 1
	}
	return &MemoryLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		idle:    10 * time.Minute,
		buckets: map[string]*bucket{},
		now:     time.Now,
	}
}

func (m *MemoryLimiter) Name() string { return "memory" }

func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	if now.Sub(m.lastSweep) > m.idle {
		for k, b := range m.buckets {
			if now.Sub(b.seen) > m.idle {
				delete(m.buckets, k)
			}
		}
		m.lastSweep = now
	}

	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(m.rps, m.burst)}
		m.buckets[key] = b
	}
	b.seen = now
	r := b.lim.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second, nil
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d, nil
	}
	return true, 0, nil
}

// RedisLimiter is a fixed-window counter shared by every instance that
// talks to the same Redis. A window admits rps*window+burst requests.
type RedisLimiter struct {
	client  *redis.Client
	window  time.Duration
	allowed int64
	now     func() time.Time
}

func NewRedisLimiter(client *redis.Client, rps float64, burst int, window time.Duration) *RedisLimiter {
	if window < time.Second {
		window = time.Second
	}
	return &RedisLimiter{
		client:  client,
		window:  window,
		allowed: int64(rps*window.Seconds()) + int64(burst),
		now:     time.Now,
	}
}

func (r *RedisLimiter) Name() string { return "redis" }

func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	secs := int64(r.window / time.Second)
	now := r.now().Unix()
	slot := now / secs
	redisKey := fmt.Sprintf("rl:%s:%d", key, slot)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, r.window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, err
	}
	if incr.Val() > r.allowed {
		return false, time.Duration((slot+1)*secs-now) * time.Second, nil
	}
	return true, 0, nil
}

// RateLimitKey identifies the caller: the token subject when the request is
// authenticated, the client IP otherwise. Reads and writes are counted in
// separate buckets so an editor saving drafts does not lock out page loads.
func RateLimitKey(c *gin.Context) string {
	class := "w"
	switch c.Request.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		class = "r"
	}
	if sub := UserID(c); sub != "" {
		return class + ":sub:" + sub
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return class + ":ip:" + ip
}

// RateLimit rejects requests over the limit with 429 and a Retry-After
// header. Limiter errors fail closed.
func RateLimit(l Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, retry, err := l.Allow(c.Request.Context(), RateLimitKey(c))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Rate limit check failed"})
			return
		}
		if !ok {
			secs := int(retry.Round(time.Second) / time.Second)
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			metrics.RateLimitRejected.WithLabelValues(l.Name()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues(l.Name()).Inc()
		c.Next()
	}
}
