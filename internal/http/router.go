// Package httpapi wires the HTTP transport (Gin) to the bot: the Telegram
// webhook, the read-only admin API, health, metrics and Swagger. It also
// owns the cross-cutting middleware: tracing, correlation IDs, redacted
// access logs, panic recovery, metrics, rate limiting, compression, CORS
// and security headers.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-quota-bot/docs"
	"github.com/tbourn/go-quota-bot/internal/config"
	"github.com/tbourn/go-quota-bot/internal/http/handlers"
	"github.com/tbourn/go-quota-bot/internal/http/middleware"
	"github.com/tbourn/go-quota-bot/internal/repo"
	"github.com/tbourn/go-quota-bot/internal/telegram"
)

// maxBody caps request bodies. Telegram updates are a few KiB.
const maxBody = 1 << 20

// Deps are the services RegisterRoutes mounts. A nil Sink leaves the
// webhook unmounted; nil readers leave the admin API unmounted.
type Deps struct {
	DB       *gorm.DB
	Grants   handlers.GrantReader
	Usage    handlers.UsageReader
	Settings handlers.SettingsReader
	Sink     handlers.UpdateSink
}

// updateDedupeShim adapts repo.MarkUpdateProcessed to handlers.Deduper.
type updateDedupeShim struct {
	db  *gorm.DB
	ttl time.Duration
}

// MarkProcessed proxies repo.MarkUpdateProcessed.
func (s updateDedupeShim) MarkProcessed(ctx context.Context, updateID, chatID int64) error {
	return repo.MarkUpdateProcessed(ctx, s.db, updateID, chatID, s.ttl)
}

// RegisterRoutes attaches all middleware and endpoints to r.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. AccessLog: request-scoped logger, secrets masked
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Trusted: mark requests carrying a valid secret
//  8. Rate limiter (per IP, bypassed by trusted callers)
//  9. gzip, CORS and security headers
func RegisterRoutes(r *gin.Engine, cfg config.Config, d Deps) {
	r.HandleMethodNotAllowed = true

	adminToken := middleware.TokenOptions{
		Header:    middleware.HeaderAdminToken,
		Token:     cfg.AdminAPIToken,
		Principal: "admin",
	}
	hookToken := middleware.TokenOptions{
		Header:    telegram.SecretHeader,
		Token:     cfg.Telegram.WebhookSecret,
		Principal: "telegram",
	}

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(middleware.RedactOptions{}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBody))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(middleware.Trusted(adminToken, hookToken))
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP())
	r.Use(rl.Handler())

	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	if d.Sink != nil {
		var dedupe handlers.Deduper
		if d.DB != nil {
			dedupe = updateDedupeShim{db: d.DB, ttl: cfg.UpdateTTL}
		}
		wh := handlers.NewWebhook(dedupe, d.Sink)
		r.POST(cfg.Telegram.WebhookPath, middleware.RequireToken(hookToken), wh.Receive)
	}

	if cfg.AdminAPIToken != "" && d.Grants != nil && d.Usage != nil && d.Settings != nil {
		h := handlers.NewAdmin(d.Grants, d.Usage, d.Settings)
		api := groupWithPrefix(r, cfg.APIBasePath)
		api.Use(middleware.RequireToken(adminToken))
		{
			api.GET("/stats", h.Stats)
			api.GET("/groups", h.ListGroups)
			api.GET("/groups/:id", h.GetGroup)
			api.GET("/usage/:user_id", h.GetUsage)
			api.GET("/settings", h.ListSettings)
		}
	}
}

// corsMiddleware allows every origin when none are configured, otherwise
// echoes allowlisted origins.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.HeaderAdminToken},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		base.AllowAllOrigins = true
		return []gin.HandlerFunc{
			// ACAO: * even without an Origin header.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	base.AllowOrigins = origins
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(base),
	}
}

// limitBody caps the request body at maxBytes; larger bodies fail on read.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
