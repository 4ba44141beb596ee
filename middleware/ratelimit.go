package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// CodeRateLimited is the wire code for the per-IP limiter.
const CodeRateLimited = "RATE_LIMITED"

type ipBucket struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit provides per-IP token-bucket limiting across the whole API.
// r = requests per second, b = burst size. Buckets are process-local;
// per-actor action throttles live in Throttle, backed by the cache.
func RateLimit(r rate.Limit, b int) gin.HandlerFunc {
	buckets := &sync.Map{}

	// Stale IPs drop out after ten minutes of silence.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			cutoff := time.Now().Add(-10 * time.Minute)
			buckets.Range(func(k, v interface{}) bool {
				bk := v.(*ipBucket)
				bk.mu.Lock()
				stale := bk.lastSeen.Before(cutoff)
				bk.mu.Unlock()
				if stale {
					buckets.Delete(k)
				}
				return true
			})
		}
	}()

	allow := func(ip string) bool {
		v, _ := buckets.LoadOrStore(ip, &ipBucket{limiter: rate.NewLimiter(r, b)})
		bk := v.(*ipBucket)
		bk.mu.Lock()
		bk.lastSeen = time.Now()
		bk.mu.Unlock()
		return bk.limiter.Allow()
	}

	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}
		if !allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
				"code":  CodeRateLimited,
			})
			return
		}
		c.Next()
	}
}
