package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/crucial707/logsink/internal/auth"
	"github.com/crucial707/logsink/internal/config"
	"github.com/crucial707/logsink/internal/db"
	"github.com/crucial707/logsink/internal/models"
	"github.com/crucial707/logsink/internal/repo"
	"github.com/crucial707/logsink/internal/scheduler"
)

func main() {
	if err := run(); err != nil {
		slog.Error("logsink exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg := config.Load()
	slog.SetDefault(newLogger(cfg))

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := db.Options{
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		Name:            cfg.DBName,
		User:            cfg.DBUser,
		Password:        cfg.DBPass,
		SSLMode:         cfg.DBSSLMode,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetimeMin) * time.Minute,
	}

	// Schema first, then the pool the handlers share.
	if err := db.Run(opts.URL()); err != nil {
		return err
	}
	if v, dirty, err := db.Version(opts.URL()); err == nil {
		slog.Info("database schema ready", "version", v, "dirty", dirty)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	database, err := db.Connect(connectCtx, opts)
	cancel()
	if err != nil {
		return err
	}
	defer database.Close()
	slog.Info("connected to database", "host", cfg.DBHost, "name", cfg.DBName)

	if cfg.AdminUsername != "" {
		if err := bootstrapAdmin(ctx, repo.NewUserRepo(database), auth.NewPasswordHasher(cfg.BcryptCost), cfg.AdminUsername, cfg.AdminPassword); err != nil {
			return err
		}
	}

	stats, err := scheduler.Start(ctx, cfg.StatsRefreshCron, &scheduler.StatsRefresher{Counter: repo.NewLogRepo(database)})
	if err != nil {
		return err
	}
	defer stats.Stop()

	router, err := newRouter(database, cfg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", srv.Addr, "tls", cfg.TLSEnabled())
		var err error
		if cfg.TLSEnabled() {
			err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// AdminSeeder is the part of the user repository bootstrapAdmin needs.
type AdminSeeder interface {
	EnsureAdmin(ctx context.Context, username, passwordHash string) (*models.User, error)
}

// bootstrapAdmin creates or refreshes the configured administrator account.
func bootstrapAdmin(ctx context.Context, users AdminSeeder, hasher auth.PasswordHasher, username, password string) error {
	hash, err := hasher.Hash(password)
	if err != nil {
		return err
	}
	user, err := users.EnsureAdmin(ctx, username, hash)
	if err != nil {
		return fmt.Errorf("bootstrap admin %q: %w", username, err)
	}
	slog.Info("administrator account ready", "user_id", user.ID, "username", user.Username)
	return nil
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
