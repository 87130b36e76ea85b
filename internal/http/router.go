// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// identity, locale negotiation, CORS, security headers, idempotency, and
// rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"errors"
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

	"github.com/tbourn/go-donation-tracker/internal/config"
	"github.com/tbourn/go-donation-tracker/internal/domain"
	"github.com/tbourn/go-donation-tracker/internal/http/handlers"
	"github.com/tbourn/go-donation-tracker/internal/http/middleware"
	"github.com/tbourn/go-donation-tracker/internal/i18n"
	"github.com/tbourn/go-donation-tracker/internal/repo"
	"github.com/tbourn/go-donation-tracker/internal/services"
)

// donationRepoShim adapts the repository free functions to the
// services.DonationRepo interface expected by the DonationService. This keeps
// services decoupled from the concrete repo package while reusing existing
// functions.
type donationRepoShim struct{}

// CreateDonation proxies repo.CreateDonation.
func (donationRepoShim) CreateDonation(ctx context.Context, db *gorm.DB, actor domain.Actor, f domain.Fields) (*domain.Donation, error) {
	return repo.CreateDonation(ctx, db, actor, f)
}

// GetDonation proxies repo.GetDonation.
func (donationRepoShim) GetDonation(ctx context.Context, db *gorm.DB, id string) (*domain.Donation, error) {
	return repo.GetDonation(ctx, db, id)
}

// ListDonations proxies repo.ListDonations.
func (donationRepoShim) ListDonations(ctx context.Context, db *gorm.DB) ([]domain.Donation, error) {
	return repo.ListDonations(ctx, db)
}

// UpdateDonation proxies repo.UpdateDonation.
func (donationRepoShim) UpdateDonation(ctx context.Context, db *gorm.DB, id string, f domain.Fields) (*domain.Donation, error) {
	return repo.UpdateDonation(ctx, db, id, f)
}

// DeleteDonation proxies repo.DeleteDonation.
func (donationRepoShim) DeleteDonation(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteDonation(ctx, db, id)
}

// DonationsStats proxies repo.DonationsStats (ETag support).
func (donationRepoShim) DonationsStats(ctx context.Context, db *gorm.DB) (int64, *time.Time, error) {
	return repo.DonationsStats(ctx, db)
}

// GetIdempotency proxies repo.GetIdempotency.
func (donationRepoShim) GetIdempotency(ctx context.Context, db *gorm.DB, userID, scope, key string, at time.Time) (*domain.Idempotency, error) {
	return repo.GetIdempotency(ctx, db, userID, scope, key, at)
}

// CreateIdempotency proxies repo.CreateIdempotency.
func (donationRepoShim) CreateIdempotency(ctx context.Context, db *gorm.DB, userID, scope, key, donationID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	return repo.CreateIdempotency(ctx, db, userID, scope, key, donationID, status, ttl)
}

// NewDonationService builds the donation service over db, publishing every
// mutation to hub.
func NewDonationService(db *gorm.DB, hub services.Publisher, cfg config.Config) *services.DonationService {
	svc := services.NewDonationService(db, donationRepoShim{}, hub)
	if cfg.IdempotencyTTL > 0 {
		svc.IdempotencyTTL = cfg.IdempotencyTTL
	}
	return svc
}

// Runtime carries the long-lived components the process owns: the snapshot
// hub, the session registry and the receipt exporter.
type Runtime struct {
	Hub      handlers.SnapshotSource
	Sessions handlers.SessionStore
	Exporter handlers.ReceiptExporter
	// Donations defaults to a DonationService over db when nil.
	Donations handlers.DonationService
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), identity, locale,
// idempotency and rate limiting, CORS and security headers, health and
// metrics endpoints, and then mounts the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Authenticate (identity feeds idempotency and rate-limit keys)
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per user/IP, bypass on replay)
//  10. CORS and Security headers
//  11. Locale negotiation and gzip (stream excluded)
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config, rt Runtime) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-User-ID"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Identity: bearer token, or X-User-ID in development
	r.Use(middleware.Authenticate(middleware.AuthOptions{
		Secret:              []byte(cfg.Auth.JWTSecret),
		AllowHeaderIdentity: cfg.Auth.AllowHeaderIdentity,
	}))

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
			Scope:  services.IdempotencyScope,
		},
		func(ctx context.Context, actorID, scope, key string, now time.Time) (bool, error) {
			_, err := repo.GetIdempotency(ctx, db, actorID, scope, key, now)
			if errors.Is(err, repo.ErrNotFound) {
				return false, nil
			}
			return err == nil, err
		},
	))

	// 9) Token-bucket rate limiter per actor/IP, renders cost more
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByActorOrIP(), middleware.RenderCost(cfg.RateRenderCost))
	r.Use(rl.Handler())

	// 10) CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{
		"Origin", "Content-Type", "Accept", "Accept-Language", "Authorization",
		"X-User-ID", "X-User-Name", middleware.HeaderLocale, middleware.HeaderIdempotencyKey,
	}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "Content-Disposition", "Content-Language", "ETag", middleware.HeaderIdempotencyReplayed}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only over HTTPS, downloads never cached)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	// 11) Locale and compression
	defaultLocale, _ := i18n.ParseLocale(cfg.DefaultLocale)
	r.Use(middleware.Locale(defaultLocale))

	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	r.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPaths([]string{joinPath(apiBase, "/donations/stream")}),
		gzip.WithExcludedExtensions([]string{".pdf", ".xlsx"}),
	))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/hub
	donations := rt.Donations
	if donations == nil {
		var pub services.Publisher
		if p, ok := rt.Hub.(services.Publisher); ok {
			pub = p
		}
		donations = NewDonationService(db, pub, cfg)
	}
	h := handlers.New(handlers.Deps{
		Donations: donations,
		Exporter:  rt.Exporter,
		Snapshots: rt.Hub,
		Sessions:  rt.Sessions,
		Catalog: i18n.NewCatalog(map[i18n.Locale]string{
			i18n.Arabic:  cfg.Receipt.OrgNameAR,
			i18n.English: cfg.Receipt.OrgNameEN,
		}),
		Auth: handlers.AuthSettings{
			Secret:   []byte(cfg.Auth.JWTSecret),
			TokenTTL: cfg.Auth.TokenTTL,
		},
		Heartbeat: cfg.StreamHeartbeat,
	})

	// Public API
	api := groupWithPrefix(r, apiBase)
	{
		// Identity and translations
		api.POST("/auth/token", h.IssueToken)
		api.GET("/i18n/:locale", h.GetTranslations)

		// Donations
		api.POST("/donations", h.CreateDonation)
		api.GET("/donations", h.ListDonations)
		api.GET("/donations/stream", h.StreamDonations)
		api.GET("/donations/export.tsv", h.ExportTSV)
		api.GET("/donations/export.xlsx", h.ExportXLSX)
		api.GET("/donations/:id", h.GetDonation)
		api.PUT("/donations/:id", h.UpdateDonation)
		api.DELETE("/donations/:id", h.DeleteDonation)

		// Receipts
		api.GET("/donations/:id/receipt", h.GetReceipt)
		api.GET("/donations/:id/receipt.pdf", h.ReceiptPDF)
		api.GET("/receipt", h.GetBlankReceipt)
		api.GET("/receipt.pdf", h.BlankReceiptPDF)

		// View shell session
		api.GET("/session", h.GetSession)
		api.PUT("/session/view", h.ChangeView)
		api.PUT("/session/locale", h.SetLocale)
		api.PUT("/session/sort", h.SetSort)
		api.PUT("/session/query", h.SetQuery)
		api.POST("/session/modals", h.OpenModal)
		api.DELETE("/session/modals", h.CloseModal)
		api.PUT("/session/draft", h.SetDraft)
		api.POST("/session/draft/submit", h.SubmitDraft)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
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

func joinPath(prefix, p string) string {
	if prefix == "" || prefix == "/" {
		return p
	}
	return prefix + p
}
