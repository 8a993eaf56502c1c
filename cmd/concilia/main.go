package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/concilia-app/concilia-api/internal/config"
	"github.com/concilia-app/concilia-api/internal/domain"
	"github.com/concilia-app/concilia-api/internal/handler"
	"github.com/concilia-app/concilia-api/internal/infra/advbox"
	"github.com/concilia-app/concilia-api/internal/infra/cache"
	"github.com/concilia-app/concilia-api/internal/infra/notify"
	"github.com/concilia-app/concilia-api/internal/infra/observability"
	"github.com/concilia-app/concilia-api/internal/infra/resilience"
	"github.com/concilia-app/concilia-api/internal/infra/supabase"
	"github.com/concilia-app/concilia-api/internal/matching"
	"github.com/concilia-app/concilia-api/internal/service"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	if sum := cfg.WeightSum(); sum != 100 {
		logger.Warn("factor weights do not sum to 100, scores will not align with default thresholds",
			zap.Int("weight_sum", sum),
		)
	}

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("directory_cache_ttl", cfg.DirectoryCacheTTL),
		zap.Duration("result_cache_ttl", cfg.ResultCacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Int("advbox_page_size", cfg.AdvboxPageSize),
		zap.Int("precompute_window_days", cfg.PrecomputeWindowDays),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "concilia-api")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Caches ---
	dirCache := cache.New[*matching.Directory](cfg.DirectoryCacheTTL)
	resultCache := cache.New[domain.ReconciliationResponse](cfg.ResultCacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("external-apis")

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	if cfg.SupabaseURL == "" {
		logger.Fatal("SUPABASE_URL is required")
	}
	store := supabase.NewClient(
		httpClient,
		cfg.SupabaseURL,
		cfg.SupabaseAnonKey,
		cfg.SupabaseServiceKey,
		cb,
		resilienceCfg,
		logger,
	)

	tokenFunc := func(ctx context.Context, tenantID string) (string, error) {
		integration, err := store.GetTenantIntegration(ctx, tenantID)
		if err != nil {
			return "", err
		}
		if !integration.Configured() {
			return "", &domain.ErrIntegrationNotConfigured{TenantID: tenantID}
		}
		return integration.AdvboxToken, nil
	}
	advboxClient := advbox.NewClient(
		httpClient,
		cfg.AdvboxAPIURL,
		cfg.AdvboxPageSize,
		tokenFunc,
		cb,
		resilienceCfg,
		logger,
	)

	// --- Notifications ---
	broker := notify.NewBroker(logger)

	// --- Services ---
	weights := matching.Weights{
		Identity: cfg.WeightIdentity,
		Name:     cfg.WeightName,
		Contact:  cfg.WeightContact,
		Amount:   cfg.WeightAmount,
	}
	thresholds := matching.Thresholds{
		High:   cfg.ScoreHigh,
		Medium: cfg.ScoreMedium,
	}

	svc := service.NewReconciliation(
		advboxClient,
		store,
		store,
		dirCache,
		resultCache,
		weights,
		thresholds,
		metrics,
		logger,
	)

	worker := service.NewPrecomputeWorker(
		svc,
		resultCache,
		broker,
		cfg.MaxConcurrency,
		cfg.PrecomputeWindowDays,
		cfg.ResultCacheTTL,
		metrics,
		logger,
	)

	// --- Scheduled warm-up ---
	var scheduler *cron.Cron
	if cfg.PrecomputeCron != "" {
		scheduler = cron.New()
		_, err := scheduler.AddFunc(cfg.PrecomputeCron, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			integrations, err := store.ListActiveIntegrations(ctx)
			if err != nil {
				logger.Error("scheduled warm-up: listing tenants failed", zap.Error(err))
				return
			}
			logger.Info("scheduled warm-up starting", zap.Int("tenants", len(integrations)))
			for _, integration := range integrations {
				worker.Trigger(integration.TenantID)
			}
		})
		if err != nil {
			logger.Fatal("invalid PRECOMPUTE_CRON expression", zap.Error(err))
		}
		scheduler.Start()
		logger.Info("precompute scheduler started", zap.String("cron", cfg.PrecomputeCron))
	}

	// --- Router ---
	router := handler.NewRouter(svc, worker, store, cfg, metrics, logger)

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
	if scheduler != nil {
		scheduler.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
