package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type RateLimiterConfig struct {
	RequestsPerSecond int
	Burst             int
	// How often idle visitors are forgotten
	CleanupInterval time.Duration
	// How long a visitor stays idle before being forgotten
	TTL time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type visitors struct {
	mu   sync.Mutex
	seen map[string]*visitor
	rps  rate.Limit
	b    int
}

func (v *visitors) get(ip string) *rate.Limiter {
	v.mu.Lock()
	defer v.mu.Unlock()

	vis, ok := v.seen[ip]
	if !ok {
		vis = &visitor{limiter: rate.NewLimiter(v.rps, v.b)}
		v.seen[ip] = vis
	}

	vis.lastSeen = time.Now()
	return vis.limiter
}

func (v *visitors) forget(ttl time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for ip, vis := range v.seen {
		if time.Since(vis.lastSeen) > ttl {
			delete(v.seen, ip)
		}
	}
}

// RateLimiterMiddleware limits requests per client IP with a token bucket
func RateLimiterMiddleware(config RateLimiterConfig) gin.HandlerFunc {
	if config.CleanupInterval == 0 {
		config.CleanupInterval = time.Minute
	}
	if config.TTL == 0 {
		config.TTL = 3 * time.Minute
	}
	if config.Burst < config.RequestsPerSecond {
		config.Burst = config.RequestsPerSecond
	}

	v := &visitors{
		seen: make(map[string]*visitor),
		rps:  rate.Limit(config.RequestsPerSecond),
		b:    config.Burst,
	}

	go func() {
		ticker := time.NewTicker(config.CleanupInterval)
		for range ticker.C {
			v.forget(config.TTL)
		}
	}()

	return func(c *gin.Context) {
		if !v.get(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":     "Too many requests",
				"requestID": c.GetString("requestID"),
			})
			return
		}

		c.Next()
	}
}
