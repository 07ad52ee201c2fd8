// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, CORS,
// security headers, compression, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/reefline/go-catchlog-backend/internal/config"
	"github.com/reefline/go-catchlog-backend/internal/domain"
	"github.com/reefline/go-catchlog-backend/internal/http/handlers"
	"github.com/reefline/go-catchlog-backend/internal/http/middleware"
	"github.com/reefline/go-catchlog-backend/internal/push"
	"github.com/reefline/go-catchlog-backend/internal/ratelimit"
	"github.com/reefline/go-catchlog-backend/internal/repo"
	"github.com/reefline/go-catchlog-backend/internal/services"
)

// notifDirShim adapts the repository free functions to the
// handlers.NotificationDirectory interface. This keeps handlers decoupled
// from the concrete repo package while reusing existing functions.
type notifDirShim struct {
	db *gorm.DB
}

// List proxies repo.ListNotifications.
func (s notifDirShim) List(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	return repo.ListNotifications(ctx, s.db, userID, limit)
}

// CountUnread proxies repo.CountUnread.
func (s notifDirShim) CountUnread(ctx context.Context, userID string) (int64, error) {
	return repo.CountUnread(ctx, s.db, userID)
}

// MarkRead proxies repo.MarkRead.
func (s notifDirShim) MarkRead(ctx context.Context, id, userID string, now time.Time) error {
	return repo.MarkRead(ctx, s.db, id, userID, now)
}

// MarkAllRead proxies repo.MarkAllRead.
func (s notifDirShim) MarkAllRead(ctx context.Context, userID string, now time.Time) error {
	return repo.MarkAllRead(ctx, s.db, userID, now)
}

// DeleteAll proxies repo.DeleteAllNotifications.
func (s notifDirShim) DeleteAll(ctx context.Context, userID string) error {
	return repo.DeleteAllNotifications(ctx, s.db, userID)
}

// Get proxies repo.GetNotification.
func (s notifDirShim) Get(ctx context.Context, id, userID string) (*domain.Notification, error) {
	return repo.GetNotification(ctx, s.db, id, userID)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and wires the service graph.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Gzip (skipping the SSE stream and /metrics)
//  7. Metrics
//  8. Rate limiter (per user/IP)
//  9. CORS and security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, hub *push.Hub, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Compression; SSE must stay uncompressed so events flush promptly.
	r.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPaths([]string{"/metrics", cfg.APIBasePath + "/notifications/stream"})))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	hub.OnDrop = middleware.CountDroppedPush

	// 8) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "Retry-After", "X-RateLimit-Remaining"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist.
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
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "Retry-After", "X-RateLimit-Remaining"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← repo/db/hub
	notifSvc := &services.NotificationService{DB: db, Hub: hub, DedupeWindow: cfg.DedupeWindow}
	windows := repo.NewWindowStore(db)
	commentSvc := &services.CommentService{
		DB:       db,
		Limiters: ratelimit.NewRegistry(windows, cfg.CommentLimit.MaxAttempts, cfg.CommentLimit.Window),
		Notifier: notifSvc,
	}
	reportSvc := &services.ReportService{
		DB:       db,
		Limiters: ratelimit.NewRegistry(windows, cfg.ReportLimit.MaxAttempts, cfg.ReportLimit.Window),
		Notifier: notifSvc,
		Admins:   services.NewAdminCache(db, cfg.AdminCacheTTL),
	}
	sessions := func(userID string, onInsert func(domain.Notification)) handlers.NotificationSession {
		st := services.NewNotificationStore(db, hub, userID, cfg.NotificationLimit)
		st.OnInsert = onInsert
		return st
	}
	h := handlers.New(notifDirShim{db: db}, commentSvc, reportSvc, sessions, cfg.NotificationLimit)

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Notifications
		api.GET("/notifications", h.ListNotifications)
		api.PUT("/notifications/read-all", h.MarkAllNotificationsRead)
		api.PUT("/notifications/:id/read", h.MarkNotificationRead)
		api.DELETE("/notifications", h.ClearNotifications)
		api.GET("/notifications/:id/target", h.NotificationTarget)
		api.GET("/notifications/stream", h.StreamNotifications)

		// Gated write actions
		api.POST("/catches/:id/comments", h.PostComment)
		api.POST("/reports", h.SubmitReport)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader.
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
