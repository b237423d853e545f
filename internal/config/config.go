// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes bot credentials,
// quota policy, outbound API endpoints, the HTTP surface, backups, and
// observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // QUOTA_TZ must resolve on hosts without zoneinfo
)

// Transport modes for receiving Telegram updates.
const (
	TransportPolling = "polling"
	TransportWebhook = "webhook"
)

// webhookSecretRE is the character set Telegram accepts for secret_token.
var webhookSecretRE = regexp.MustCompile(`^[A-Za-z0-9_-]{1,256}$`)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// TelegramConfig holds bot credentials and the update transport.
type TelegramConfig struct {
	Token         string  // BOT_TOKEN
	AdminIDs      []int64 // ADMIN_IDS (comma separated user ids)
	Transport     string  // polling|webhook
	WebhookURL    string  // public URL registered with Telegram
	WebhookPath   string  // local route receiving updates
	WebhookSecret string  // X-Telegram-Bot-Api-Secret-Token value
	PollTimeout   int     // long-poll timeout in seconds
	Debug         bool    // verbose telegram client logging
}

// QuotaConfig holds per-user daily caps and the quota period definition.
type QuotaConfig struct {
	LikeCap        int    // QUOTA_LIKE
	SpamCap        int    // QUOTA_SPAM
	VisitCap       int    // QUOTA_VISIT
	Timezone       string // QUOTA_TZ (IANA name)
	ResetHour      int    // QUOTA_RESET_HOUR in [0,23]
	GrantsEnforced bool   // GRANTS_ENFORCED
}

// GameAPIConfig holds outbound endpoints for the game-data collaborators.
type GameAPIConfig struct {
	Timeout       time.Duration
	LikeURL       string
	SpamURL       string
	VisitURL      string
	SearchURL     string
	ProfileURL    string
	BannerURL     string
	OutfitURL     string
	LoginURL      string
	BanCheckURL   string
	LoginCookie   string // raw Cookie header for the login endpoint
	UserAgent     string
	LikeThreshold int // minimum likes granted for a like to count
	Regions       []string
}

// BackupConfig defines scheduled database backups.
type BackupConfig struct {
	Enabled  bool
	Dir      string
	Keep     int
	Schedule string // cron spec, evaluated in the quota timezone
	Compress bool
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for the admin API
	AdminAPIToken  string // X-Admin-Token; empty disables the admin API

	// Store
	DBPath string // SQLite path

	// Bot
	Telegram   TelegramConfig
	Quota      QuotaConfig
	GameAPI    GameAPIConfig
	Workers    int     // concurrent update handlers
	FloodRPS   float64 // per-user updates per second
	FloodBurst int

	// Rate limiting (HTTP)
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Webhook update dedupe window
	UpdateTTL time.Duration

	Backup BackupConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	admins, err := parseIDs(getenv("ADMIN_IDS", ""))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),
		AdminAPIToken:  getenv("ADMIN_API_TOKEN", ""),

		DBPath: getenv("DB_PATH", "bot_data.db"),

		Telegram: TelegramConfig{
			Token:         getenv("BOT_TOKEN", ""),
			AdminIDs:      admins,
			Transport:     strings.ToLower(getenv("BOT_TRANSPORT", TransportPolling)),
			WebhookURL:    getenv("WEBHOOK_URL", ""),
			WebhookPath:   normalizeBasePath(getenv("WEBHOOK_PATH", "/telegram/webhook")),
			WebhookSecret: getenv("WEBHOOK_SECRET", ""),
			PollTimeout:   getint("POLL_TIMEOUT", 60),
			Debug:         getbool("BOT_DEBUG", false),
		},
		Quota: QuotaConfig{
			LikeCap:        getint("QUOTA_LIKE", 1),
			SpamCap:        getint("QUOTA_SPAM", 15),
			VisitCap:       getint("QUOTA_VISIT", 20),
			Timezone:       getenv("QUOTA_TZ", "Asia/Kolkata"),
			ResetHour:      getint("QUOTA_RESET_HOUR", 4),
			GrantsEnforced: getbool("GRANTS_ENFORCED", true),
		},
		GameAPI: GameAPIConfig{
			Timeout:       getdur("API_TIMEOUT", 30*time.Second),
			LikeURL:       getenv("API_LIKE_URL", "https://liikes-api.vercel.app/like"),
			SpamURL:       getenv("API_SPAM_URL", "https://spaam-api.vercel.app/spam"),
			VisitURL:      getenv("API_VISIT_URL", "https://viisits-api.vercel.app/visit"),
			SearchURL:     getenv("API_SEARCH_URL", "https://name-search-api.vercel.app/search"),
			ProfileURL:    getenv("API_PROFILE_URL", "https://ff-player-info.vercel.app/player-info"),
			BannerURL:     getenv("API_BANNER_URL", "https://ff-banner-image.vercel.app/banner-image"),
			OutfitURL:     getenv("API_OUTFIT_URL", "https://ff-outfit-image.vercel.app/outfit-image"),
			LoginURL:      getenv("API_LOGIN_URL", "https://topup.pk/api/auth/player_id_login"),
			BanCheckURL:   getenv("API_BANCHECK_URL", "https://ff.garena.com/api/antihack/check_banned"),
			LoginCookie:   getenv("API_LOGIN_COOKIE", ""),
			UserAgent:     getenv("API_USER_AGENT", "Mozilla/5.0 (Linux; Android 10; K) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/132.0.0.0 Mobile Safari/537.36"),
			LikeThreshold: getint("LIKE_THRESHOLD", 50),
			Regions:       splitCSV(getenv("SUPPORTED_REGIONS", "ind,sg,eu,me,id,bd,ru,vn,tw,th,pk")),
		},
		Workers:    getint("BOT_WORKERS", 16),
		FloodRPS:   getfloat("FLOOD_RPS", 1.0),
		FloodBurst: getint("FLOOD_BURST", 4),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		UpdateTTL: getdur("UPDATE_TTL", 24*time.Hour),

		Backup: BackupConfig{
			Enabled:  getbool("BACKUP_ENABLED", true),
			Dir:      getenv("BACKUP_DIR", "database_backups"),
			Keep:     getint("BACKUP_KEEP", 30),
			Schedule: getenv("BACKUP_SCHEDULE", "0 4 * * *"),
			Compress: getbool("BACKUP_COMPRESS", true),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-quota-bot"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	for i, r := range cfg.GameAPI.Regions {
		cfg.GameAPI.Regions[i] = strings.ToLower(r)
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	switch cfg.Telegram.Transport {
	case TransportPolling:
	case TransportWebhook:
		if cfg.Telegram.WebhookURL == "" {
			return cfg, errors.New("WEBHOOK_URL is required when BOT_TRANSPORT=webhook")
		}
		if !webhookSecretRE.MatchString(cfg.Telegram.WebhookSecret) {
			return cfg, errors.New("WEBHOOK_SECRET is required when BOT_TRANSPORT=webhook (1-256 chars of A-Z a-z 0-9 _ -)")
		}
	default:
		return cfg, errors.New("BOT_TRANSPORT must be one of: polling, webhook")
	}
	if cfg.Quota.LikeCap < 1 || cfg.Quota.SpamCap < 1 || cfg.Quota.VisitCap < 1 {
		return cfg, errors.New("QUOTA_LIKE, QUOTA_SPAM and QUOTA_VISIT must be >= 1")
	}
	if cfg.Quota.ResetHour < 0 || cfg.Quota.ResetHour > 23 {
		return cfg, errors.New("QUOTA_RESET_HOUR must be in [0,23]")
	}
	if _, err := time.LoadLocation(cfg.Quota.Timezone); err != nil {
		return cfg, fmt.Errorf("QUOTA_TZ: %w", err)
	}
	if cfg.GameAPI.Timeout <= 0 {
		return cfg, errors.New("API_TIMEOUT must be > 0")
	}
	if len(cfg.GameAPI.Regions) == 0 {
		return cfg, errors.New("SUPPORTED_REGIONS must not be empty")
	}
	if cfg.Workers < 1 {
		return cfg, errors.New("BOT_WORKERS must be >= 1")
	}
	if cfg.FloodRPS < 0 || cfg.RateRPS < 0 {
		return cfg, errors.New("FLOOD_RPS and RATE_RPS must be >= 0")
	}
	if cfg.FloodBurst < 1 || cfg.RateBurst < 1 {
		return cfg, errors.New("FLOOD_BURST and RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.UpdateTTL <= 0 {
		return cfg, errors.New("UPDATE_TTL must be > 0")
	}
	if cfg.Backup.Keep < 1 {
		return cfg, errors.New("BACKUP_KEEP must be >= 1")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// Location returns the quota timezone. Load has already validated the name.
func (q QuotaConfig) Location() *time.Location {
	loc, err := time.LoadLocation(q.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// parseIDs parses a CSV list of Telegram user ids.
func parseIDs(s string) ([]int64, error) {
	parts := splitCSV(s)
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ADMIN_IDS: invalid user id %q", p)
		}
		out = append(out, id)
	}
	return out, nil
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
