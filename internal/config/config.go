// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, the database, identity, locales, receipt
// export, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

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
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-donation-tracker")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// AuthConfig defines token issuing and verification.
type AuthConfig struct {
	JWTSecret           string        // JWT_SECRET
	TokenTTL            time.Duration // JWT_TTL
	AllowHeaderIdentity bool          // ALLOW_HEADER_IDENTITY (X-User-ID fallback)
}

// ReceiptConfig defines receipt rendering and export.
type ReceiptConfig struct {
	Scale     float64 // RECEIPT_SCALE (>= 2)
	FontPath  string  // RECEIPT_FONT_PATH (optional TTF with Arabic glyphs)
	OrgNameAR string  // ORG_NAME_AR
	OrgNameEN string  // ORG_NAME_EN
}

// S3Config defines the optional receipt archive.
type S3Config struct {
	Bucket    string // S3_BUCKET (empty disables archiving)
	Region    string // S3_REGION
	Endpoint  string // S3_ENDPOINT (MinIO or other S3-compatible store)
	AccessKey string // S3_ACCESS_KEY
	SecretKey string // S3_SECRET_KEY
	Prefix    string // S3_PREFIX
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	StreamHeartbeat   time.Duration // SSE keep-alive interval
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Store
	DBDriver string // sqlite|postgres
	DBDSN    string // SQLite path or Postgres DSN

	// App
	DefaultLocale  string        // ar|en, used when negotiation finds nothing
	SessionIdleTTL time.Duration // idle view-shell sessions are evicted after this
	Auth           AuthConfig
	Receipt        ReceiptConfig
	S3             S3Config

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)
	// RateRenderCost is the number of tokens a receipt PDF or workbook export
	// consumes.
	RateRenderCost int

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

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

// Load reads configuration from environment variables, applies defaults,
// normalizes values, and validates the result. The returned error joins every
// invalid setting.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		StreamHeartbeat:   getdur("STREAM_HEARTBEAT", 15*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Store
		DBDriver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
		DBDSN:    getenv("DB_DSN", "donations.db"),

		// App
		DefaultLocale:  strings.ToLower(getenv("DEFAULT_LOCALE", "ar")),
		SessionIdleTTL: getdur("SESSION_IDLE_TTL", 30*time.Minute),
		Auth: AuthConfig{
			JWTSecret:           getenv("JWT_SECRET", ""),
			TokenTTL:            getdur("JWT_TTL", 12*time.Hour),
			AllowHeaderIdentity: getbool("ALLOW_HEADER_IDENTITY", false),
		},
		Receipt: ReceiptConfig{
			Scale:     getfloat("RECEIPT_SCALE", 2),
			FontPath:  getenv("RECEIPT_FONT_PATH", ""),
			OrgNameAR: getenv("ORG_NAME_AR", ""),
			OrgNameEN: getenv("ORG_NAME_EN", ""),
		},
		S3: S3Config{
			Bucket:    getenv("S3_BUCKET", ""),
			Region:    getenv("S3_REGION", "us-east-1"),
			Endpoint:  getenv("S3_ENDPOINT", ""),
			AccessKey: getenv("S3_ACCESS_KEY", ""),
			SecretKey: getenv("S3_SECRET_KEY", ""),
			Prefix:    getenv("S3_PREFIX", "receipts"),
		},

		// Rate limiting
		RateRPS:        getfloat("RATE_RPS", 5.0),
		RateBurst:      getint("RATE_BURST", 10),
		RateRenderCost: getint("RATE_RENDER_COST", 3),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-donation-tracker"),
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

	// --- validation: report every problem at once ---
	var errs []error
	bad := func(msg string) { errs = append(errs, errors.New(msg)) }

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		bad("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		bad("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 || cfg.StreamHeartbeat <= 0 {
		bad("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		bad("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DBDriver {
	case "sqlite", "postgres":
	default:
		bad("DB_DRIVER must be one of: sqlite, postgres")
	}
	if strings.TrimSpace(cfg.DBDSN) == "" {
		bad("DB_DSN must not be empty")
	}
	switch cfg.DefaultLocale {
	case "ar", "en":
	default:
		bad("DEFAULT_LOCALE must be one of: ar, en")
	}
	if cfg.SessionIdleTTL <= 0 {
		bad("SESSION_IDLE_TTL must be > 0")
	}
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		bad("JWT_SECRET must not be empty")
	}
	if cfg.Auth.TokenTTL <= 0 {
		bad("JWT_TTL must be > 0")
	}
	if cfg.Receipt.Scale < 2 {
		bad("RECEIPT_SCALE must be >= 2")
	}
	if cfg.RateRPS < 0 {
		bad("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		bad("RATE_BURST must be >= 1")
	}
	if cfg.RateRenderCost < 1 {
		bad("RATE_RENDER_COST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		bad("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		bad("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		bad("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	if cfg.S3.Bucket != "" && strings.TrimSpace(cfg.S3.Region) == "" {
		bad("S3_REGION must be set when S3_BUCKET is")
	}
	return cfg, errors.Join(errs...)
}

// ---- env helpers ----

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
