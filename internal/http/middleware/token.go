// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file guards routes with a shared secret carried in a request header:
// X-Admin-Token for the admin API and X-Telegram-Bot-Api-Secret-Token for
// the webhook. Comparison is constant-time.
//
// Trusted runs globally, before the rate limiter, and only marks requests
// that carry a valid secret so the limiter lets them through. RequireToken
// runs on the guarded route group and rejects everything else.
package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HeaderAdminToken authenticates admin API calls.
const HeaderAdminToken = "X-Admin-Token"

const (
	ctxKeyPrincipal  = "auth.principal"
	ctxKeyRateBypass = "rate.bypass"
)

// TokenOptions names a secret and where to find it.
type TokenOptions struct {
	// Header carries the secret.
	Header string
	// Token is the expected value. An empty Token never matches.
	Token string
	// Principal names the caller in logs and Principal().
	Principal string
}

func (o TokenOptions) matches(c *gin.Context) bool {
	if o.Token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.GetHeader(o.Header)), []byte(o.Token)) == 1
}

// Trusted marks requests carrying any of the given secrets. It never aborts.
func Trusted(tokens ...TokenOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, t := range tokens {
			if t.matches(c) {
				c.Set(ctxKeyPrincipal, t.Principal)
				c.Set(ctxKeyRateBypass, true)
				break
			}
		}
		c.Next()
	}
}

// RequireToken aborts with 401 unless the request carries opts.Token in
// opts.Header.
func RequireToken(opts TokenOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !opts.matches(c) {
			LoggerFrom(c).Warn().Str("header", opts.Header).Str("remote_ip", c.ClientIP()).Msg("token rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "unauthorized",
				"message":    "invalid or missing " + opts.Header,
			})
			return
		}
		c.Set(ctxKeyPrincipal, opts.Principal)
		c.Next()
	}
}

// Principal returns the caller name set by Trusted or RequireToken, or "".
func Principal(c *gin.Context) string {
	v, _ := c.Get(ctxKeyPrincipal)
	s, _ := v.(string)
	return s
}
