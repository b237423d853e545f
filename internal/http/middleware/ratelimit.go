// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file puts a per-client token bucket (internal/ratelimit) in front of
// the HTTP routes. Requests marked by Trusted bypass it:
// Telegram delivers webhook updates from a handful of addresses and the bot
// applies its own per-user flood limit.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-quota-bot/internal/ratelimit"
)

// keyFunc selects the identity used to key a rate-limit bucket.
type keyFunc func(*gin.Context) string

// KeyByIP keys buckets by client address ("ip:203.0.113.7").
func KeyByIP() keyFunc {
	return func(c *gin.Context) string { return "ip:" + c.ClientIP() }
}

// RateLimiter enforces per-key limits on HTTP requests.
type RateLimiter struct {
	buckets *ratelimit.Keyed
	keyFn   keyFunc
}

// NewRateLimiter returns a RateLimiter allowing rps requests per second with
// the given burst per key. burst <= 0 is coerced to 1.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc, opts ...ratelimit.Option) *RateLimiter {
	return &RateLimiter{buckets: ratelimit.New(rps, burst, opts...), keyFn: keyFn}
}

// IsRateBypass reports whether Trusted marked the request as coming from
// a trusted caller.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler returns the Gin middleware. A limited request gets 429 with
// Retry-After: 1 and a compact JSON body:
//
//	{"request_id": "<uuid>", "code": "rate_limited", "message": "rate limit exceeded"}
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) || rl.buckets.Allow(rl.keyFn(c)) {
			c.Next()
			return
		}
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
