package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/af-corp/pricewatch/internal/backend"
	"github.com/af-corp/pricewatch/internal/catalog"
	"github.com/af-corp/pricewatch/internal/collector"
	"github.com/af-corp/pricewatch/internal/config"
	"github.com/af-corp/pricewatch/internal/discovery"
	"github.com/af-corp/pricewatch/internal/resolver"
	"github.com/af-corp/pricewatch/internal/search"
	"github.com/af-corp/pricewatch/internal/store"
	"github.com/af-corp/pricewatch/internal/telemetry"
	"github.com/af-corp/pricewatch/internal/validate"
)

var version = "dev"

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	once := flag.Bool("once", false, "run a single collection pass and exit")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	loader := config.NewLoader(*configDir, logger)
	if err := loader.Load(); err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	setLogLevel(cfg.LogLevel)

	if !*once {
		if err := loader.Watch(); err != nil {
			logger.Warn("failed to start config watcher", "error", err)
		}
	}

	ctx := context.Background()

	primary, err := pgxpool.New(ctx, cfg.Database.PrimaryDSN)
	if err != nil {
		logger.Error("failed to connect to primary database", "error", err)
		os.Exit(1)
	}
	defer primary.Close()
	if err := primary.Ping(ctx); err != nil {
		logger.Error("primary database not reachable", "error", err)
		os.Exit(1)
	}
	logger.Info("primary database connected")

	var backendPool *pgxpool.Pool
	if cfg.Database.BackendDSN != "" {
		backendPool, err = pgxpool.New(ctx, cfg.Database.BackendDSN)
		if err != nil {
			logger.Warn("backend database connection failed, staging disabled", "error", err)
			backendPool = nil
		} else if err := backendPool.Ping(ctx); err != nil {
			logger.Warn("backend database not reachable, staging disabled", "error", err)
			backendPool.Close()
			backendPool = nil
		} else {
			logger.Info("backend database connected")
		}
	} else {
		logger.Info("no backend DSN configured, staging disabled")
	}
	defer func() {
		if backendPool != nil {
			backendPool.Close()
		}
	}()

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not reachable, search pacing is process-local", "error", err)
			rdb = nil
		} else {
			logger.Info("redis connected")
		}
	}

	metrics := telemetry.NewMetrics()
	client := catalog.NewClient(cfg.Catalog.APIKey, cfg.Catalog.Timeout(), cfg.Catalog.Referer)
	repo := store.NewRepo(primary)

	filters := catalog.Filters{
		SupportedParameters: cfg.Filters.SupportedParameters,
		InputModalities:     cfg.Filters.InputModalities,
		OutputModalities:    cfg.Filters.OutputModalities,
		Distillable:         cfg.Filters.Distillable,
	}
	disc := discovery.New(client, repo, filters)

	searcher := search.NewService(cfg.Search.BraveAPIKey, cfg.Search.Timeout(), rdb).
		WithRequestCounter(metrics.SearchRequestTotal)
	registry := resolver.NewRegistry(searcher)
	validator := validate.NewValidator(repo, cfg.Collector.PriceChangeThresholdPercent)

	runOnce := func(ctx context.Context) error {
		// The stager accumulates per-run state; build a fresh one each pass
		// so deactivation diffs never leak across runs.
		var bstore backend.Store
		if backendPool != nil {
			bstore = backend.NewPGStore(backendPool)
		}
		stager := backend.NewStager(bstore, cfg.Defaults.ForcedDefaults())

		c := collector.New(client, repo, disc, validator, registry, stager, metrics, collector.Options{
			Concurrency:     cfg.Collector.Concurrency,
			ProviderScrape:  cfg.Collector.EnableProviderScraping,
			Blocklist:       cfg.Collector.Blocklist,
			VerifySpotCheck: cfg.Collector.EnableSpotChecks,
		})
		return c.Run(ctx)
	}

	if *once {
		if err := runOnce(ctx); err != nil {
			logger.Error("collection run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	srv := opsServer(cfg.Server.Addr)
	go func() {
		logger.Info("ops server starting", "addr", cfg.Server.Addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("ops server error", "error", err)
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Collector.Interval())
	defer ticker.Stop()

	run := func() {
		if err := runOnce(runCtx); err != nil {
			logger.Error("collection run failed", "error", err)
		}
	}

	if cfg.Collector.RunOnStartup {
		run()
	}

	for {
		select {
		case <-ticker.C:
			run()
		case sig := <-quit:
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("graceful shutdown failed", "error", err)
				os.Exit(1)
			}
			logger.Info("pricewatch stopped")
			return
		}
	}
}

func opsServer(addr string) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/health", healthHandler)
	r.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"version": version,
	})
}

func setLogLevel(level string) {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l})))
}
