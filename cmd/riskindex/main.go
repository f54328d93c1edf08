package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MikeSquared-Agency/RiskIndex/internal/api"
	"github.com/MikeSquared-Agency/RiskIndex/internal/backend"
	"github.com/MikeSquared-Agency/RiskIndex/internal/config"
	"github.com/MikeSquared-Agency/RiskIndex/internal/hermes"
	"github.com/MikeSquared-Agency/RiskIndex/internal/importer"
	"github.com/MikeSquared-Agency/RiskIndex/internal/results"
	"github.com/MikeSquared-Agency/RiskIndex/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	bootLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		bootLogger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Hermes (optional)
	var hermesClient hermes.Client
	if cfg.Hermes.URL != "" {
		hc, err := hermes.NewNATSClient(ctx, cfg.Hermes.URL, logger)
		if err != nil {
			logger.Warn("failed to connect to hermes, running without events", "error", err)
		} else {
			hermesClient = hc
			defer hc.Close()
			logger.Info("connected to hermes")
		}
	}

	routerCfg := api.RouterConfig{
		AdminToken:         cfg.Server.AdminToken,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
		TrustProxy:         cfg.Server.TrustProxy,
		Import: importer.Options{
			MaxSuggestions: cfg.Import.MaxSuggestions,
			MaxDistance:    cfg.Import.MaxDistance,
		},
	}

	// Data source: the database when configured, otherwise the remote
	// backend in read-only mode.
	var router http.Handler
	var svc *results.Service
	if cfg.Database.URL != "" {
		db, err := store.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		logger.Info("connected to database")

		svc = results.NewService(db, cfg.Results.FetchConcurrency, logger)
		router = api.NewRouter(db, hermesClient, svc, routerCfg, logger)
	} else {
		client := backend.NewHTTPClient(cfg.Backend.URL, cfg.Backend.Token)
		logger.Info("using remote backend, admin routes disabled", "url", cfg.Backend.URL)

		svc = results.NewService(client, cfg.Results.FetchConcurrency, logger)
		router = api.NewResultsRouter(svc, routerCfg, logger)
	}

	// Snapshot publisher
	if cfg.Results.SnapshotEnabled && hermesClient != nil {
		pub := results.NewPublisher(svc, hermesClient, cfg.SnapshotInterval(), logger)
		pub.Start(ctx)
		defer pub.Stop()
		logger.Info("snapshot publisher started", "interval", cfg.SnapshotInterval())
	}

	// API server
	apiServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Metrics server
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler:           api.NewMetricsRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("API server error", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
