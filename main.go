package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-ingest/internal/assets"
	"media-ingest/internal/config"
	"media-ingest/internal/database"
	"media-ingest/internal/handlers"
	"media-ingest/internal/ingest"
	"media-ingest/internal/logging"
	"media-ingest/internal/middleware"
	"media-ingest/internal/probe"
)

func main() {
	startTime := time.Now()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Configuration error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the metadata store
	dbStart := time.Now()
	store, err := database.New(ctx, cfg.DatabasePath)
	if err != nil {
		logging.Fatal("Failed to initialize database: %v", err)
	}
	defer store.Close()
	logging.Info("Database ready in %s", time.Since(dbStart).Round(time.Millisecond))

	// Wire the ingest coordinator and asset pipeline
	prober := probe.New(cfg.FFprobeBin, cfg.ProbeTimeout)
	coordinator := ingest.NewCoordinator(cfg, store, store, prober, ingest.SHA256Hasher(), ingest.DiskFileOps())

	extractor := assets.NewExtractor(cfg.FFmpegBin, cfg.ProbeTimeout)
	pipeline := assets.NewPipeline(cfg, store, prober, extractor)

	h := handlers.New(cfg, store, coordinator, pipeline)

	// Setup router and middleware chain
	router := mux.NewRouter()
	h.RegisterRoutes(router)

	var handler http.Handler = router
	handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)
	handler = middleware.Logger(middleware.DefaultLoggingConfig())(handler)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Metrics server on its own port so scrapes bypass the API surface
	var metricsSrv *http.Server
	if cfg.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:              ":" + cfg.MetricsPort,
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logging.Info("Metrics server listening on :%s", cfg.MetricsPort)
			if err := metricsSrv.ListenAndServe(); err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	// Incoming-directory watcher triggers ingest runs after a quiet period
	var watcher *ingest.Watcher
	if cfg.WatchIncoming {
		watcher, err = ingest.NewWatcher(cfg.IncomingRoot, cfg.WatchDebounce, func(runCtx context.Context) {
			if _, err := coordinator.Run(runCtx, nil, ingest.Options{}); err != nil {
				logging.Error("Watched ingest run failed: %v", err)
			}
		})
		if err != nil {
			logging.Fatal("Failed to watch incoming directory: %v", err)
		}
		go func() {
			if err := watcher.Start(ctx); err != nil {
				logging.Error("Incoming watcher stopped: %v", err)
			}
		}()
		logging.Info("Watching %s (debounce %s)", cfg.IncomingRoot, cfg.WatchDebounce)
	}

	go handleShutdown(srv, metricsSrv, watcher, cancel)

	logging.Info("Server listening on :%s (startup took %s)", cfg.Port, time.Since(startTime).Round(time.Millisecond))
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("Server error: %v", err)
	}
}

func handleShutdown(srv, metricsSrv *http.Server, watcher *ingest.Watcher, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	logging.Info("Received %s, shutting down", sig)
	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if watcher != nil {
		if err := watcher.Close(); err != nil {
			logging.Warn("Watcher close error: %v", err)
		}
	}

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	}
}
