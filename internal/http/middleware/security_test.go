package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func serveSecurity(opt SecurityOptions, mutate func(*http.Request)) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), SecurityHeaders(opt))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSecurityHeaders_Defaults(t *testing.T) {
	w := serveSecurity(SecurityOptions{}, nil)
	h := w.Header()
	if h.Get("X-Content-Type-Options") != "nosniff" || h.Get("X-Frame-Options") != "DENY" || h.Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("baseline headers missing: %v", h)
	}
	if h.Get("Strict-Transport-Security") != "" || h.Get("Cache-Control") != "" || h.Get("Permissions-Policy") != "" {
		t.Fatalf("optional headers set without options: %v", h)
	}
	if h.Get("Access-Control-Expose-Headers") != requestIDHeader {
		t.Fatalf("expose headers = %q", h.Get("Access-Control-Expose-Headers"))
	}
}

func TestSecurityHeaders_Options(t *testing.T) {
	opt := SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour, NoStore: true, EnablePolicy: true}

	w := serveSecurity(opt, nil)
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS must not be sent over plain HTTP")
	}
	if w.Header().Get("Cache-Control") != "no-store" || w.Header().Get("Permissions-Policy") == "" {
		t.Fatalf("NoStore/EnablePolicy not applied: %v", w.Header())
	}

	w = serveSecurity(opt, func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", "HTTPS") })
	if got := w.Header().Get("Strict-Transport-Security"); !strings.HasPrefix(got, "max-age=3600;") {
		t.Fatalf("HSTS = %q", got)
	}
}

func TestSecurityHeaders_DefaultHSTSAge(t *testing.T) {
	w := serveSecurity(SecurityOptions{EnableHSTS: true}, func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", "https") })
	if got := w.Header().Get("Strict-Transport-Security"); !strings.HasPrefix(got, "max-age=15552000;") {
		t.Fatalf("HSTS = %q", got)
	}
}
