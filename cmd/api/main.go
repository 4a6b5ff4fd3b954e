package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/attendly/internal/auth"
	"github.com/BradenHooton/attendly/internal/background"
	"github.com/BradenHooton/attendly/internal/config"
	"github.com/BradenHooton/attendly/internal/database"
	"github.com/BradenHooton/attendly/internal/handlers"
	middlewareCustom "github.com/BradenHooton/attendly/internal/middleware"
	"github.com/BradenHooton/attendly/internal/repositories"
	"github.com/BradenHooton/attendly/internal/routes"
	"github.com/BradenHooton/attendly/internal/services"
	pkghttp "github.com/BradenHooton/attendly/pkg/http"
	pkglogger "github.com/BradenHooton/attendly/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// accountStore is the account repository plus the handle behind it
type accountStore struct {
	repo   services.AccountRepository
	health handlers.HealthChecker
	close  func()
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)
	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("db_driver", cfg.Database.Driver),
	)

	// Parse page templates before any resource needs closing
	pages, err := handlers.NewPages()
	if err != nil {
		logger.Error("failed to load page templates", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize storage and apply migrations
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := openAccountStore(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to open account store", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.close()

	// Session records outlive the idle timeout by one sweep so an idle session
	// is reported as expired rather than unknown
	sessionRepo := repositories.NewSessionRepository(cfg.Session.IdleTimeout + cfg.Session.CleanupInterval)
	cleanupManager := background.NewCleanupManager(sessionRepo, logger, cfg.Session.CleanupInterval)

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}

	// Session security
	csrfGuard := auth.NewCSRFGuard()
	sessionManager := auth.NewSessionManager(sessionRepo, csrfGuard, auth.SessionConfig{
		IdleTimeout:        cfg.Session.IdleTimeout,
		RegenerateInterval: cfg.Session.RegenerateInterval,
		Cookie: auth.CookieConfig{
			Name:        cfg.Session.CookieName,
			Domain:      cfg.Session.CookieDomain,
			ForceSecure: cfg.Session.ForceSecure,
			IPConfig:    ipConfig,
		},
	}, logger)

	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs: cfg.Auth.TimingDelayRandomMs,
		BcryptCost:    cfg.Auth.BcryptCost,
	})

	// Initialize services
	auditLogger := pkglogger.NewAuditLogger(logger)
	lockoutService := services.NewLockoutService(store.repo, services.LockoutConfig{
		MaxSessionAttempts: cfg.Auth.MaxSessionAttempts,
		AttemptWindow:      cfg.Auth.AttemptWindow,
		MaxAccountAttempts: cfg.Auth.MaxAccountAttempts,
	}, logger)
	authService := services.NewAuthService(store.repo, sessionManager, lockoutService, timingDelay, logger, auditLogger)
	accountService := services.NewAccountService(store.repo, csrfGuard, cfg.Auth.BcryptCost, logger, auditLogger)

	// Bootstrap first admin account if configured
	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminAccount(ctx, accountService, cfg.Admin, logger); err != nil {
		logger.Error("failed to ensure admin account", slog.Any("error", err))
	}
	cancel()

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, accountService, sessionManager, pages, ipConfig, logger)
	adminHandler := handlers.NewAdminHandler(accountService, cfg.Auth.MaxAccountAttempts)
	healthHandler := handlers.NewHealthHandler(store.health, logger)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{
		Env:      cfg.Server.Env,
		IPConfig: ipConfig,
	}))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, routes.Dependencies{
		Sessions:      sessionManager,
		Accounts:      store.repo,
		AuthHandler:   authHandler,
		AdminHandler:  adminHandler,
		HealthHandler: healthHandler,
		AuthRateLimit: middlewareCustom.RateLimitConfig{
			RequestsPerMinute: cfg.Auth.IPRequestsPerMinute,
			IPConfig:          ipConfig,
		},
		Logger: logger,
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("server error", slog.Any("error", err))
	}

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		return
	}

	logger.Info("server stopped gracefully")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// openAccountStore connects the configured driver and brings its schema up to date
func openAccountStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*accountStore, error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		db, err := database.NewSQLite(cfg.Database.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, db.DB, config.DriverSQLite); err != nil {
			db.Close()
			return nil, err
		}
		return &accountStore{
			repo:   repositories.NewSQLiteAccountRepository(db),
			health: db,
			close:  func() { _ = db.Close() },
		}, nil

	default:
		db, err := database.NewConnection(&cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		sqlDB := db.StdDB()
		err = database.Migrate(ctx, sqlDB, config.DriverPostgres)
		sqlDB.Close()
		if err != nil {
			db.Close()
			return nil, err
		}
		return &accountStore{
			repo:   repositories.NewAccountRepository(db),
			health: db,
			close:  db.Close,
		}, nil
	}
}

// ensureAdminAccount creates the first admin account if ADMIN_USERNAME and ADMIN_PASSWORD are set
func ensureAdminAccount(ctx context.Context, accounts *services.AccountService, admin config.AdminBootstrapConfig, logger *slog.Logger) error {
	if admin.Username == "" || admin.Password == "" {
		logger.Info("no ADMIN_USERNAME or ADMIN_PASSWORD set, skipping admin account creation")
		return nil
	}

	created, err := accounts.EnsureAccount(ctx, admin.Username, admin.Password)
	if err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}

	if created {
		logger.Info("admin account created successfully", slog.String("username", pkglogger.SanitizedUsername(admin.Username)))
	} else {
		logger.Info("admin account already exists")
	}
	return nil
}
