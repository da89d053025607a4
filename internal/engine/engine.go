// Package engine assembles the full dependency graph described in §4 into
// one process: catalog, admission semaphore, shared result cache, scanner,
// progress emitter, search executor, presenter, and housekeeper. It mirrors
// the teacher's services/*/cmd/main.go startup order (config, logger,
// telemetry, metrics, storage, then the domain server) and
// pkg/server.GRPCServer's Run/waitForShutdown lifecycle, generalized to a
// single in-process engine with no gRPC surface of its own.
package engine

import (
	"context"
	"fmt"
	"time"

	"logai/internal/catalog"
	"logai/internal/coord"
	"logai/internal/discovery"
	"logai/internal/housekeeping"
	"logai/internal/presenter"
	"logai/internal/resultset"
	"logai/internal/scanner"
	"logai/internal/search"
	"logai/pkg/cache"
	"logai/pkg/config"
	"logai/pkg/logger"
	"logai/pkg/metrics"
	"logai/pkg/progress"
	"logai/pkg/semaphore"
	"logai/pkg/telemetry"
)

// Engine owns every long-lived dependency of the search service and the
// background housekeeping loops. Assemble builds the graph; Shutdown tears
// it down in the reverse order, the way waitForShutdown unwinds telemetry,
// the rate limiter, and the audit logger before stopping the transport.
type Engine struct {
	cfg *config.Config

	telemetry *telemetry.Provider
	metrics   *metrics.Metrics

	Catalog      *catalog.Catalog
	admission    semaphore.Semaphore
	cacheBackend cache.Cache
	resultCache  *coord.ResultCache
	emitter      progress.Emitter
	Presenter    *presenter.Presenter
	Executor     *search.Executor
	housekeeper  *housekeeping.Housekeeper
}

// Assemble wires every component named in §4 from cfg, in the dependency
// order each one requires: catalog before discovery-backed components,
// admission and cache before the executor, the executor and presenter
// before housekeeping.
func Assemble(ctx context.Context, cfg *config.Config) (*Engine, error) {
	e := &Engine{cfg: cfg}

	if cfg.Tracing.Enabled {
		tp, err := telemetry.Init(ctx, telemetry.Config{
			Enabled:     cfg.Tracing.Enabled,
			Endpoint:    cfg.Tracing.Endpoint,
			ServiceName: cfg.Tracing.ServiceName,
			Version:     cfg.App.Version,
			Environment: cfg.App.Environment,
			SampleRate:  cfg.Tracing.SampleRate,
		})
		if err != nil {
			logger.Log.Warn("failed to init telemetry, continuing without it", "error", err)
		} else {
			e.telemetry = tp
		}
	}

	e.metrics = metrics.InitMetrics(cfg.Metrics.Namespace, cfg.Metrics.Subsystem)
	e.metrics.SetServiceInfo(cfg.App.Version, cfg.App.Environment)

	cat, err := catalog.Load(cfg.Catalog.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("engine: load catalog: %w", err)
	}
	e.Catalog = cat
	logger.Info("service catalog loaded", "path", cfg.Catalog.SourcePath)

	admission, err := semaphore.New(&semaphore.Config{
		Backend:       cfg.Admission.Backend,
		GlobalCap:     cfg.Admission.GlobalCap,
		SafetyWindow:  cfg.Admission.SafetyWindow,
		RetryBackoff:  cfg.Admission.RetryBackoff,
		MaxRetries:    cfg.Admission.MaxRetries,
		RedisAddr:     cfg.Admission.RedisAddr,
		RedisPassword: cfg.Admission.RedisPassword,
		RedisDB:       cfg.Admission.RedisDB,
		Key:           "logai:admission",
	})
	if err != nil {
		return nil, fmt.Errorf("engine: build admission semaphore: %w", err)
	}
	e.admission = admission
	logger.Info("admission semaphore ready", "backend", cfg.Admission.Backend, "global_cap", cfg.Admission.GlobalCap)

	if cfg.Cache.Enabled {
		cacheBackend, err := cache.New(cache.FromConfig(&cfg.Cache))
		if err != nil {
			return nil, fmt.Errorf("engine: build result cache backend: %w", err)
		}
		e.cacheBackend = cacheBackend
	} else {
		e.cacheBackend = cache.NewMemoryCache(cache.DefaultOptions())
	}
	e.resultCache = coord.NewResultCache(e.cacheBackend, cfg.Cache.Backend, cfg.Cache.TTL, cfg.Cache.ByteCap, cat, e.metrics)
	logger.Info("result cache ready", "backend", cfg.Cache.Backend, "ttl", cfg.Cache.TTL)

	emitter, err := progress.New(progress.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("engine: build progress emitter: %w", err)
	}
	e.emitter = emitter

	pres, err := presenter.New(cfg.Spill)
	if err != nil {
		return nil, fmt.Errorf("engine: build presenter: %w", err)
	}
	e.Presenter = pres

	scn := scanner.New(cfg.Scanner)

	e.Executor = search.New(cfg, cat, scn, e.admission, e.resultCache, e.Presenter, e.metrics, e.emitter)

	e.housekeeper = housekeeping.New(e.Presenter, e.admission, e.cacheBackend, e.metrics, housekeeping.Config{
		RetentionWindow:   cfg.Spill.RetentionWindow,
		SweepInterval:     cfg.Spill.SweepInterval,
		HeartbeatInterval: cfg.Admission.HeartbeatInterval,
		CacheEntryCap:     cfg.Cache.EntryCap,
	})
	e.housekeeper.Start(ctx)
	logger.Info("housekeeping started", "sweep_interval", cfg.Spill.SweepInterval, "heartbeat_interval", cfg.Admission.HeartbeatInterval)

	return e, nil
}

// Search runs one search() call end to end (§4.E), the engine's only
// public entrypoint into the domain logic.
func (e *Engine) Search(ctx context.Context, servicesQuery []string, pattern string, window discovery.Window, locale string, previewLimit int) (*resultset.ResultSet, error) {
	return e.Executor.Search(ctx, servicesQuery, pattern, window, locale, previewLimit)
}

// ReadSpill re-reads a previously spilled result for the presenter's
// retrieval surface, after validating path and prefix (§4.F).
func (e *Engine) ReadSpill(path string) (*resultset.ResultSet, error) {
	return e.Presenter.ReadSpill(path)
}

// Shutdown tears down the engine in the reverse of Assemble's order:
// housekeeping loops stop first, then the cache and admission backends
// close, then telemetry flushes, mirroring waitForShutdown's unwind order
// (telemetry and transports before the listener itself).
func (e *Engine) Shutdown(ctx context.Context) {
	if e.housekeeper != nil {
		e.housekeeper.Stop()
	}

	if e.emitter != nil {
		if err := e.emitter.Close(); err != nil {
			logger.Log.Warn("failed to close progress emitter", "error", err)
		}
	}

	if e.cacheBackend != nil {
		if err := e.cacheBackend.Close(); err != nil {
			logger.Log.Warn("failed to close cache backend", "error", err)
		}
	}

	if e.admission != nil {
		if err := e.admission.Close(); err != nil {
			logger.Log.Warn("failed to close admission semaphore", "error", err)
		}
	}

	if e.telemetry != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := e.telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Log.Warn("failed to shutdown telemetry", "error", err)
		}
	}
}
