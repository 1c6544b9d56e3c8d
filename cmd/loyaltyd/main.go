package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/BnaryBlade/loyalty-hive-core/internal/config"
	"github.com/BnaryBlade/loyalty-hive-core/internal/domain"
	"github.com/BnaryBlade/loyalty-hive-core/internal/handler"
	"github.com/BnaryBlade/loyalty-hive-core/internal/infra/cache"
	"github.com/BnaryBlade/loyalty-hive-core/internal/infra/client"
	"github.com/BnaryBlade/loyalty-hive-core/internal/infra/gormstore"
	"github.com/BnaryBlade/loyalty-hive-core/internal/infra/memory"
	"github.com/BnaryBlade/loyalty-hive-core/internal/infra/observability"
	"github.com/BnaryBlade/loyalty-hive-core/internal/infra/resilience"
	"github.com/BnaryBlade/loyalty-hive-core/internal/port"
	"github.com/BnaryBlade/loyalty-hive-core/internal/service"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_driver", cfg.StoreDriver),
		zap.String("program_file", cfg.ProgramFile),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Duration("idempotency_ttl", cfg.IdempotencyTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("jwt_access_ttl", cfg.JWTAccessTTL),
		zap.Duration("expiry_sweep_interval", cfg.ExpirySweepInterval),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "loyalty-hive")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Program ---
	program, err := config.LoadProgram(cfg.ProgramFile)
	if err != nil {
		logger.Fatal("failed to load program", zap.Error(err))
	}
	logger.Info("program loaded",
		zap.String("name", program.Settings.Name),
		zap.Int("levels", len(program.Levels.Levels())),
		zap.String("points_per_dollar", program.Settings.PointsPerDollar.String()),
	)

	// --- Store ---
	var store port.Store
	switch cfg.StoreDriver {
	case "", "memory":
		logger.Warn("using in-memory store, data is lost on restart")
		store = memory.New()
	default:
		db, err := gormstore.Open(cfg.StoreDriver, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Fatal("failed to open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
		}
		defer db.Close()
		store = db
	}

	// --- Cache ---
	dashboardCache := cache.New[*domain.DashboardStats](cfg.CacheTTL)
	defer dashboardCache.Close()
	idempotencyCache := cache.New[handler.StoredResponse](cfg.IdempotencyTTL)
	defer idempotencyCache.Close()

	// --- Notifications ---
	var publisher port.LevelChangePublisher = client.NopPublisher{}
	if cfg.NotifyWebhookURL != "" {
		resilienceCfg := resilience.Config{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.InitialBackoff,
			MaxConcurrency: cfg.MaxConcurrency,
		}
		cb := resilience.NewCircuitBreaker("level-webhook")
		httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
		publisher = client.NewWebhookNotifier(httpClient, cfg.NotifyWebhookURL, cb, resilienceCfg)
		logger.Info("level change webhook enabled", zap.String("url", cfg.NotifyWebhookURL))
	}

	// --- Services ---
	loyaltySvc := service.NewLoyaltyService(store, program, publisher, dashboardCache, metrics, logger)
	authSvc := service.NewAuthService(store, loyaltySvc, cfg.JWTSecret, cfg.JWTAccessTTL, cfg.BcryptCost, logger)

	if cfg.AdminEmail != "" {
		admin, err := authSvc.EnsureAdmin(context.Background(), cfg.AdminEmail, cfg.AdminPassword, cfg.AdminName)
		if err != nil {
			logger.Fatal("failed to bootstrap admin", zap.Error(err))
		}
		logger.Info("bootstrap admin ready", zap.String("admin_id", admin.ID), zap.String("email", admin.Email))
	}

	// --- Background jobs ---
	jobsCtx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()
	go loyaltySvc.RunExpirySweeper(jobsCtx, cfg.ExpirySweepInterval)

	// --- Router ---
	router := handler.NewRouter(loyaltySvc, authSvc, metrics, logger, handler.Options{
		Idempotency:    idempotencyCache,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		LoginLimit: handler.RateLimit{
			RequestsPerMinute: float64(cfg.AuthRatePerMinute),
			Burst:             cfg.AuthRateBurst,
		},
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	stopJobs()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}
	loyaltySvc.Wait()

	logger.Info("server stopped")
}
