// Command logaiengine is the process entrypoint: it loads configuration,
// assembles the Engine (§9 Globals), and exposes the thin query/spill-read
// HTTP surface that stands in for the out-of-scope transport (§1). Grounded
// on the teacher's services/*/cmd/main.go startup sequencing (config,
// logger, telemetry, metrics, domain server) and pkg/server.GRPCServer's
// Run/waitForShutdown lifecycle, generalized from gRPC+metrics to a single
// net/http mux since the real transport is an external collaborator.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"logai/internal/engine"
	"logai/pkg/config"
	"logai/pkg/logger"
	"logai/pkg/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.InitWithConfig(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng, err := engine.Assemble(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to assemble engine", "error", err)
	}

	if cfg.Metrics.Enabled {
		go func() {
			logger.Log.Info("starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
			if err := metrics.StartMetricsServer(cfg.Metrics.Port); err != nil {
				logger.Log.Error("metrics server failed", "error", err)
			}
		}()
	}

	srv := newQueryServer(eng)
	httpSrv := &http.Server{
		Addr:    addr(cfg),
		Handler: srv,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting query server", "addr", httpSrv.Addr, "environment", cfg.App.Environment, "version", cfg.App.Version)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Log.Error("query server failed", "error", err)
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Warn("failed to gracefully stop query server", "error", err)
	}

	eng.Shutdown(shutdownCtx)
	logger.Info("logaiengine stopped")
}

func addr(cfg *config.Config) string {
	return fmt.Sprintf(":%d", cfg.Query.Port)
}
