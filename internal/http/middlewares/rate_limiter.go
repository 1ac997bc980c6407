package middlewares

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter counts requests per key in fixed windows and advertises its state with the
// RateLimit-Limit / RateLimit-Remaining / RateLimit-Reset headers.
type RateLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	limit   int
	now     func() time.Time
	clients map[string]*clientWindow
}

type clientWindow struct {
	count int
	ends  time.Time
}

// sweep expired windows once the map grows past this
const rateLimiterSweepAt = 10_000

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		clients: make(map[string]*clientWindow),
	}
}

// RateLimiterMiddleware enforces the limit for the key derived by keyFn, falling back to the client IP.
func (rl *RateLimiter) RateLimiterMiddleware(keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)
		if key == "" {
			key = clientIP(c)
		}

		allowed, remaining, reset := rl.take(key)

		h := c.Writer.Header()
		h.Set("RateLimit-Limit", strconv.Itoa(rl.limit))
		h.Set("RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("RateLimit-Reset", strconv.Itoa(reset))

		if !allowed {
			h.Set("Retry-After", strconv.Itoa(reset))
			abort(c, http.StatusTooManyRequests, "Too many requests from this IP, please try again later.")
			return
		}

		c.Next()
	}
}

// take records one request for key. reset is the whole seconds left in the key's window.
func (rl *RateLimiter) take(key string) (allowed bool, remaining, reset int) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if len(rl.clients) >= rateLimiterSweepAt {
		rl.sweepLocked(now)
	}

	w, ok := rl.clients[key]
	if !ok || !now.Before(w.ends) {
		w = &clientWindow{ends: now.Add(rl.window)}
		rl.clients[key] = w
	}

	reset = int(math.Ceil(w.ends.Sub(now).Seconds()))

	if w.count >= rl.limit {
		return false, 0, reset
	}

	w.count++

	return true, rl.limit - w.count, reset
}

func (rl *RateLimiter) sweepLocked(now time.Time) {
	for k, w := range rl.clients {
		if !now.Before(w.ends) {
			delete(rl.clients, k)
		}
	}
}

func KeyByIP(c *gin.Context) string {
	return clientIP(c)
}

func clientIP(c *gin.Context) string {
	// Gin's ClientIP honours X-Forwarded-For / X-Real-IP only from trusted proxies.
	ip := c.ClientIP()

	host, _, err := net.SplitHostPort(ip)
	if err == nil && host != "" {
		return host
	}

	return ip
}
