package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-quota-bot/internal/ratelimit"
)

func limitedRouter(rl *RateLimiter, tokens ...TokenOptions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Trusted(tokens...), rl.Handler())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func get(r http.Handler, ip string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = ip + ":1234"
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_PerIP(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 2, KeyByIP(), ratelimit.WithClock(func() time.Time { return fixed }))
	r := limitedRouter(rl)

	for i := 0; i < 2; i++ {
		if w := get(r, "203.0.113.7", nil); w.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, w.Code)
		}
	}
	w := get(r, "203.0.113.7", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "1" {
		t.Fatalf("Retry-After = %q", w.Header().Get("Retry-After"))
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["code"] != "rate_limited" || body["request_id"] == "" {
		t.Fatalf("unexpected body: %v", body)
	}

	if w := get(r, "198.51.100.1", nil); w.Code != http.StatusOK {
		t.Fatalf("other ip limited: %d", w.Code)
	}
}

func TestRateLimiter_TrustedBypass(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1, KeyByIP(), ratelimit.WithClock(func() time.Time { return fixed }))
	hook := TokenOptions{Header: "X-Telegram-Bot-Api-Secret-Token", Token: "s3cret", Principal: "telegram"}
	r := limitedRouter(rl, hook)

	trusted := map[string]string{hook.Header: "s3cret"}
	for i := 0; i < 5; i++ {
		if w := get(r, "149.154.167.1", trusted); w.Code != http.StatusOK {
			t.Fatalf("trusted request %d: status %d", i, w.Code)
		}
	}

	wrong := map[string]string{hook.Header: "nope"}
	if w := get(r, "149.154.167.1", wrong); w.Code != http.StatusOK {
		t.Fatalf("first untrusted request: %d", w.Code)
	}
	if w := get(r, "149.154.167.1", wrong); w.Code != http.StatusTooManyRequests {
		t.Fatalf("untrusted request not limited: %d", w.Code)
	}
}
