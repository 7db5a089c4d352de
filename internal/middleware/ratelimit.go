package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64       // Token refill rate
	Burst             int           // Maximum burst size
	IdleTTL           time.Duration // Limiters unused this long are dropped
	SkipPaths         []string      // Paths to skip rate limiting
}

// DefaultRateLimitConfig returns default rate limit configuration.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 20,
		Burst:             40,
		IdleTTL:           10 * time.Minute,
		SkipPaths:         []string{"/health", "/ready", "/metrics"},
	}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a token bucket per client IP.
type RateLimiter struct {
	config RateLimitConfig
	skip   map[string]struct{}

	mu      sync.Mutex
	clients map[string]*clientLimiter
	now     func() time.Time
}

// NewRateLimiter creates a new rate limiter. A non-positive rate disables it.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	skip := make(map[string]struct{}, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = struct{}{}
	}
	return &RateLimiter{
		config:  config,
		skip:    skip,
		clients: make(map[string]*clientLimiter),
		now:     time.Now,
	}
}

// Allow reports whether key may make a request now.
func (r *RateLimiter) Allow(key string) (allowed bool, remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cl, ok := r.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(r.config.RequestsPerSecond), r.config.Burst)}
		r.clients[key] = cl
	}
	cl.lastSeen = now
	allowed = cl.limiter.AllowN(now, 1)
	return allowed, int(cl.limiter.TokensAt(now))
}

// Sweep drops limiters that have been idle longer than IdleTTL.
func (r *RateLimiter) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.config.IdleTTL)
	dropped := 0
	for key, cl := range r.clients {
		if cl.lastSeen.Before(cutoff) {
			delete(r.clients, key)
			dropped++
		}
	}
	return dropped
}

// GinMiddleware returns the Gin middleware for rate limiting.
func (r *RateLimiter) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if r.config.RequestsPerSecond <= 0 {
			c.Next()
			return
		}
		if _, ok := r.skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		allowed, remaining := r.Allow("ip:" + c.ClientIP())
		c.Header("X-RateLimit-Limit", strconv.Itoa(r.config.Burst))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))

		if !allowed {
			retryAfter := time.Duration(float64(time.Second) / r.config.RequestsPerSecond)
			c.Header("Retry-After", strconv.Itoa(max(1, int(retryAfter.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests, please retry later",
				"code":  "RATE_LIMIT_EXCEEDED",
			})
			return
		}
		c.Next()
	}
}

// ConnectionLimiter limits concurrent connections per IP.
type ConnectionLimiter struct {
	connections map[string]int
	mu          sync.Mutex
	limit       int
}

// NewConnectionLimiter creates a new connection limiter.
func NewConnectionLimiter(limit int) *ConnectionLimiter {
	return &ConnectionLimiter{
		connections: make(map[string]int),
		limit:       limit,
	}
}

// Allow checks if a new connection is allowed and counts it if so.
func (l *ConnectionLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.connections[ip] >= l.limit {
		return false
	}
	l.connections[ip]++
	return true
}

// Release removes a connection for an IP.
func (l *ConnectionLimiter) Release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if count, exists := l.connections[ip]; exists && count > 0 {
		l.connections[ip]--
		if l.connections[ip] == 0 {
			delete(l.connections, ip)
		}
	}
}

// Count returns the current connection count for an IP.
func (l *ConnectionLimiter) Count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connections[ip]
}
