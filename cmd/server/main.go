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

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/smartshop/backend/config"
	httpDelivery "github.com/smartshop/backend/internal/delivery/http"
	"github.com/smartshop/backend/internal/domain"
	"github.com/smartshop/backend/internal/infrastructure/cache"
	"github.com/smartshop/backend/internal/infrastructure/kassalapp"
	"github.com/smartshop/backend/internal/infrastructure/sqlite"
	"github.com/smartshop/backend/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	setupLogger(cfg)

	log.Info().
		Str("environment", cfg.Server.Environment).
		Str("port", cfg.Server.Port).
		Dur("cache_ttl", cfg.Cache.TTL).
		Msg("starting SmartShop backend v1.0.0")

	// Initialize infrastructure dependencies
	memoryCache := cache.NewMemoryCache(0)
	defer memoryCache.Close()
	offerCache := cache.NewOfferCache()

	catalog := kassalapp.NewClient(
		cfg.Kassalapp.APIKey,
		cfg.Kassalapp.BaseURL,
		kassalapp.WithTimeout(cfg.Kassalapp.Timeout),
		kassalapp.WithRateLimit(cfg.Kassalapp.RequestsPerSecond, cfg.Kassalapp.Burst),
	)
	log.Info().
		Str("base_url", cfg.Kassalapp.BaseURL).
		Float64("requests_per_second", cfg.Kassalapp.RequestsPerSecond).
		Msg("catalog client configured")

	lists, err := sqlite.Open(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Storage.SQLitePath).Msg("failed to open list storage")
	}
	defer lists.Close()

	// Initialize usecase layer
	priceService := usecase.NewPriceService(
		memoryCache,
		offerCache,
		catalog,
		catalog,
		priceServiceConfig(cfg),
	)
	listService := usecase.NewListService(lists, priceService)

	log.Info().
		Float64("min_coverage", cfg.Ranking.MinCoverage).
		Float64("coverage_weight", cfg.Ranking.CoverageWeight).
		Int("max_results", cfg.Ranking.MaxResults).
		Msg("ranking configured")

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(priceService, listService, usecase.NewQueryGate())

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// setupLogger uses a console writer in development and JSON otherwise.
func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	}
}

func priceServiceConfig(cfg *config.Config) usecase.PriceServiceConfig {
	return usecase.PriceServiceConfig{
		CacheTTL:    cfg.Cache.TTL,
		MaxAttempts: cfg.Lookup.MaxAttempts,
		Backoff:     cfg.Lookup.Backoff,
		Concurrency: cfg.Lookup.Concurrency,
		RadiusKm:    cfg.Lookup.RadiusKm,
		StoreLimit:  cfg.Lookup.StoreLimit,
		Weights: domain.RankingWeights{
			MinCoverage:    cfg.Ranking.MinCoverage,
			CoverageWeight: cfg.Ranking.CoverageWeight,
			MaxResults:     cfg.Ranking.MaxResults,
			ApplyQuantity:  cfg.Ranking.ApplyQuantity,
		},
	}
}
