package main

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crucial707/logsink/internal/auth"
	"github.com/crucial707/logsink/internal/config"
	"github.com/crucial707/logsink/internal/handlers"
	"github.com/crucial707/logsink/internal/middleware"
	"github.com/crucial707/logsink/internal/repo"
)

// newRouter wires repositories, the credential capability and handlers onto a chi router.
func newRouter(db *sql.DB, cfg config.Config) (http.Handler, error) {
	tokens, err := auth.NewTokens([]byte(cfg.JWTSecret), time.Duration(cfg.JWTExpireMinutes)*time.Minute, nil)
	if err != nil {
		return nil, fmt.Errorf("token config: %w", err)
	}

	userRepo := repo.NewUserRepo(db)
	logRepo := repo.NewLogRepo(db)
	auditRepo := repo.NewAuditRepo(db)

	authHandler := &handlers.AuthHandler{
		Users:  userRepo,
		Hasher: auth.NewPasswordHasher(cfg.BcryptCost),
		Tokens: tokens,
	}
	logHandler := &handlers.LogHandler{
		Repo:                logRepo,
		AuditRepo:           auditRepo,
		EmptyResultNotFound: cfg.EmptyResultNotFound,
	}
	auditHandler := &handlers.AuditHandler{Repo: auditRepo}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Prometheus)
	r.Use(middleware.SecurityHeaders(cfg.TLSEnabled()))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(middleware.MaxBytes(middleware.DefaultMaxBodyBytes))

	// Operational
	r.Get("/health", handlers.Health)
	r.Get("/ready", handlers.Ready(db))
	r.Handle("/metrics", promhttp.Handler())

	// Public, rate limited
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthRateLimiter(cfg.AuthRatePerMin).Middleware)
		r.Post("/users", authHandler.Register)
		r.Post("/users/", authHandler.Register)
		r.Post("/register", authHandler.Register)
		r.Post("/token", authHandler.Token)
	})

	// Bearer token required
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(tokens, userRepo))

		r.Get("/users/me", authHandler.Me)

		r.Post("/logs", logHandler.CreateLog)
		r.Post("/logs/", logHandler.CreateLog)
		r.Get("/logs", logHandler.ListLogs)
		r.Get("/logs/", logHandler.ListLogs)
		r.Get("/logs/info", logHandler.ListLogs)
		r.Get("/logs/{ref}", logHandler.GetLogs)

		// Administrators only
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Put("/logs/{ref}", logHandler.UpdateLog)
			r.Delete("/logs/{ref}", logHandler.DeleteLog)
			r.Get("/audit", auditHandler.ListAudit)
		})
	})

	return r, nil
}
