package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fleetwatch/fleetwatch/internal/api"
	"github.com/fleetwatch/fleetwatch/internal/cache"
	"github.com/fleetwatch/fleetwatch/internal/config"
	"github.com/fleetwatch/fleetwatch/internal/kb"
	"github.com/fleetwatch/fleetwatch/internal/llm"
	"github.com/fleetwatch/fleetwatch/internal/metrics"
	"github.com/fleetwatch/fleetwatch/internal/query"
	"github.com/fleetwatch/fleetwatch/internal/repo"
	"github.com/fleetwatch/fleetwatch/internal/services"
	"github.com/fleetwatch/fleetwatch/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting fleetwatch", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var cacheProvider cache.Provider = cache.NoopProvider{}
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewRedisProvider(cfg.Cache)
		if err != nil {
			logger.Warn("query cache unavailable", slog.Any("error", err))
		} else {
			cacheProvider = provider
			defer provider.Close()
		}
	}

	monitorClient := repo.NewMonitorClient(cfg.Monitor)

	var semantic query.SemanticParser
	var generator services.AnswerGenerator
	if cfg.AI.Enabled {
		client, err := llm.NewOpenAIClient(cfg.AI, logger)
		if err != nil {
			logger.Warn("ai provider unavailable, running with rule-based parsing only",
				slog.Any("error", err))
		} else {
			semantic = client
			generator = client
		}
	}

	store := kb.New(logger, monitorClient, kb.Options{
		Timeframe:    cfg.Build.Timeframe,
		MaxWorkers:   cfg.Build.MaxWorkers,
		BatchPause:   cfg.Build.BatchPause,
		ServiceLimit: cfg.Monitor.ServiceLimit,
		ProblemLimit: cfg.Monitor.ProblemLimit,
	})

	parser := query.NewParser(semantic, cacheProvider, cfg.Cache.ParsedQueryTTL, logger)
	executor := query.NewExecutor(store, logger)
	assistant := services.NewAssistant(logger, store, parser, executor, generator)

	server := api.NewServer(cfg.Server, logger, assistant)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := store.Build(ctx); err != nil {
			logger.Error("initial knowledge base build failed", slog.Any("error", err))
		}
	}()

	if cfg.Build.RefreshInterval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.Build.RefreshInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := store.Build(ctx); err != nil {
						logger.Warn("scheduled rebuild failed", slog.Any("error", err))
					}
				}
			}
		}()
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("http server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", slog.Any("error", err))
	}

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("fleetwatch stopped")
}
