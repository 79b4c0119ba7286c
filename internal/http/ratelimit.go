package http

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tazhibayda/profile-service/internal/helper"
)

type bucket struct {
	tokens  int
	updated time.Time
}

type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    int           // максимальное кол-во за окно
	window  time.Duration // окно
	now     func() time.Time
}

func NewRateLimiter(rate int, window time.Duration) *RateLimiter {
	return &RateLimiter{buckets: make(map[string]*bucket), rate: rate, window: window, now: time.Now}
}

func (rl *RateLimiter) Allow(key string) bool {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	b, ok := rl.buckets[key]
	if !ok || now.Sub(b.updated) > rl.window {
		rl.buckets[key] = &bucket{tokens: 1, updated: now}
		rl.sweep(now)
		return true
	}
	if b.tokens < rl.rate {
		b.tokens++
		b.updated = now
		return true
	}
	return false
}

// sweep drops idle buckets once the map grows, so one-off clients do not pile up.
func (rl *RateLimiter) sweep(now time.Time) {
	if len(rl.buckets) < 10000 {
		return
	}
	for k, b := range rl.buckets {
		if now.Sub(b.updated) > rl.window {
			delete(rl.buckets, k)
		}
	}
}

func ClientIP(c *gin.Context) string {
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	host, _, err := net.SplitHostPort(ip)
	if err == nil && host != "" {
		return host
	}
	return ip
}

// RateLimit keys on the session cookie when present, else on the client IP.
func RateLimit(rl *RateLimiter, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + ClientIP(c)
		if ck, err := c.Request.Cookie(cookieName); err == nil && ck.Value != "" {
			key = "s:" + helper.Hash8(ck.Value)
		}
		if !rl.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
