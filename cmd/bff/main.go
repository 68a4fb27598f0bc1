package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gloriousnetworker/dcarbon-bff-go/internal/config"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/domain"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/handler"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/infra/cache"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/infra/dcarbon"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/infra/observability"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/infra/resilience"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/infra/sessiondb"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/service"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/utility"

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

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("dcarbon_api_url", cfg.DCarbonAPIURL),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.String("session_db_path", cfg.SessionDBPath),
		zap.Duration("session_ttl", cfg.SessionTTL),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "dcarbon-bff")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Session store ---
	store, err := sessiondb.Open(cfg.SessionDBPath)
	if err != nil {
		logger.Fatal("failed to open session store", zap.Error(err))
	}
	defer store.Close()

	// --- Utility provider catalog ---
	catalog := utility.Default()
	if cfg.ProviderCatalogPath != "" {
		catalog, err = utility.Load(cfg.ProviderCatalogPath)
		if err != nil {
			logger.Fatal("failed to load provider catalog",
				zap.String("path", cfg.ProviderCatalogPath),
				zap.Error(err),
			)
		}
		logger.Info("provider catalog loaded",
			zap.String("path", cfg.ProviderCatalogPath),
			zap.Int("providers", len(catalog.Names())),
		)
	}

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("dcarbon-api")

	// --- Upstream client ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	upstream := dcarbon.NewClient(httpClient, cfg.DCarbonAPIURL, cb, resilienceCfg, logger)

	// --- Cache ---
	stageCache := cache.New[*domain.StageResult](cfg.CacheTTL)

	// --- Services ---
	sessions := service.NewSessionService(store, []byte(cfg.JWTSecret), cfg.JWTAccessTTL, cfg.SessionTTL, logger)
	stages := service.NewStageService(upstream, stageCache, metrics, logger)
	onboarding := service.NewOnboardingService(upstream, stages, metrics, logger)
	facilities := service.NewFacilityService(upstream, store, stages, metrics, logger)
	utilities := service.NewUtilityAuthService(upstream, catalog, stages, metrics, logger)

	// --- Expired session sweeper ---
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				if n, err := store.PurgeExpired(sweepCtx); err != nil {
					logger.Warn("session purge failed", zap.Error(err))
				} else if n > 0 {
					logger.Info("expired sessions purged", zap.Int64("count", n))
				}
			}
		}
	}()

	// --- Router ---
	router := handler.NewRouter(handler.Services{
		Sessions:   sessions,
		Stages:     stages,
		Onboarding: onboarding,
		Facilities: facilities,
		Utilities:  utilities,
	}, store.Ping, metrics, logger)

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
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
