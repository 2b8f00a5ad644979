package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ask4sham/letsrevise-attempts/internal/auth"
	"github.com/ask4sham/letsrevise-attempts/internal/cache"
	"github.com/ask4sham/letsrevise-attempts/internal/config"
	"github.com/ask4sham/letsrevise-attempts/internal/handlers"
	"github.com/ask4sham/letsrevise-attempts/internal/observability"
	"github.com/ask4sham/letsrevise-attempts/internal/repositories"
	"github.com/ask4sham/letsrevise-attempts/internal/repositories/memory"
	"github.com/ask4sham/letsrevise-attempts/internal/repositories/postgres"
	"github.com/ask4sham/letsrevise-attempts/internal/scoring"
	"github.com/ask4sham/letsrevise-attempts/internal/services"
	"github.com/ask4sham/letsrevise-attempts/internal/utils"
	"github.com/ask4sham/letsrevise-attempts/internal/validator"
	"github.com/ask4sham/letsrevise-attempts/pkg"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(cfg.LogBackend, cfg.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	if s, ok := logger.(interface{ Sync() error }); ok {
		defer s.Sync()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger utils.Logger) error {
	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, cfg.Environment, logger)
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	healthChecks := map[string]handlers.HealthCheck{}

	// Repository
	var repo repositories.Repository
	var subscriptions repositories.SubscriptionRepository
	if cfg.DatabaseDriver == config.DriverMemory {
		logger.Warn("Using in-memory store, attempts are lost on restart")
		store := memory.NewStore()
		if cfg.MemorySeedFile == "" {
			logger.Warn("No MEMORY_SEED_FILE set, the store starts without papers")
		} else {
			seed, err := store.LoadSeedFile(cfg.MemorySeedFile)
			if err != nil {
				return err
			}
			logger.Info("Memory store seeded",
				"file", cfg.MemorySeedFile,
				"items", len(seed.Items),
				"papers", len(seed.Papers),
				"subscriptions", len(seed.Subscriptions))
		}
		repo = store
		subscriptions = store.Subscription()
	} else {
		db, err := pkg.InitDatabase(cfg)
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to get sql.DB: %w", err)
		}
		defer sqlDB.Close()

		if err := postgres.Migrate(db); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		logger.Info("Database ready", "driver", cfg.DatabaseDriver)

		repo = postgres.NewRepository(db)
		subscriptions = repo.Subscription()
		healthChecks["database"] = sqlDB.PingContext
	}

	if cfg.RedisURL != "" {
		client, err := pkg.NewRedisClient(ctx, cfg)
		if err != nil {
			return err
		}
		defer client.Close()

		repo = cache.WrapRepository(repo, cache.NewRedisCache(client, logger), cfg.PaperCacheTTL, logger)
		healthChecks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		logger.Info("Paper cache enabled", "ttl", cfg.PaperCacheTTL)
	}

	// Collaborators
	var entitlements services.EntitlementChecker = services.AllowAll{}
	if cfg.EntitlementMode == config.EntitlementSubscriptions {
		entitlements = services.NewSubscriptionEntitlements(subscriptions)
	}

	publisher, err := cfg.Events.CreateEventPublisher(logger)
	if err != nil {
		return fmt.Errorf("failed to create event publisher: %w", err)
	}
	defer publisher.Close()

	resolver, err := auth.NewResolver(cfg)
	if err != nil {
		return err
	}

	// Services
	attemptService := services.NewAttemptService(repo, entitlements, scoring.NewEngine(cfg.FreeTextPolicy),
		publisher, validator.New(), logger, services.WithHeartbeatInterval(cfg.HeartbeatInterval))
	paperService := services.NewPaperService(repo, entitlements, logger)

	// HTTP
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	hm := handlers.NewHandlerManager(attemptService, paperService, resolver, healthChecks, logger)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           hm.NewRouter(cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening",
			"port", cfg.Port,
			"environment", cfg.Environment,
			"free_text_policy", cfg.FreeTextPolicy,
			"entitlements", cfg.EntitlementMode,
			"auth", cfg.Auth.Provider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
