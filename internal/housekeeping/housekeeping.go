// Package housekeeping implements the two periodic background tasks of
// §4.G: a spill retention sweep and a coordination heartbeat. Both run at
// wide intervals and tolerate individual iteration failures without
// affecting the rest of the process.
package housekeeping

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"logai/internal/presenter"
	"logai/pkg/cache"
	"logai/pkg/logger"
	"logai/pkg/metrics"
	"logai/pkg/semaphore"
)

const (
	defaultSweepInterval     = 15 * time.Minute
	defaultHeartbeatInterval = 30 * time.Second
)

// Config parameterizes a Housekeeper's two loops.
type Config struct {
	RetentionWindow   time.Duration
	SweepInterval     time.Duration
	HeartbeatInterval time.Duration
	// CacheEntryCap bounds CacheBackend's entry count, used to turn a raw
	// key count into a utilization fraction for the heartbeat gauge.
	CacheEntryCap int
}

// Housekeeper owns the spill output tree's retention sweep and samples
// admission/coordination pool pressure on a fixed cadence. Grounded on
// original_source/src/redis_coordinator.py's periodic pool-stats sampling,
// adapted from ad hoc polling calls to two independent tickers.
type Housekeeper struct {
	presenter    *presenter.Presenter
	admission    semaphore.Semaphore
	cacheBackend cache.Cache
	metrics      *metrics.Metrics
	cfg          Config

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Housekeeper. cacheBackend may be nil (pool utilization is
// then left unsampled); admission may be nil likewise.
func New(pres *presenter.Presenter, admission semaphore.Semaphore, cacheBackend cache.Cache, m *metrics.Metrics, cfg Config) *Housekeeper {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	return &Housekeeper{
		presenter:    pres,
		admission:    admission,
		cacheBackend: cacheBackend,
		metrics:      m,
		cfg:          cfg,
		stopCh:       make(chan struct{}),
	}
}

// Start launches both loops as background goroutines; they run until ctx
// is cancelled or Stop is called.
func (h *Housekeeper) Start(ctx context.Context) {
	h.wg.Add(2)
	go h.runSweepLoop(ctx)
	go h.runHeartbeatLoop(ctx)
}

// Stop signals both loops to exit and waits for them.
func (h *Housekeeper) Stop() {
	close(h.stopCh)
	h.wg.Wait()
}

func (h *Housekeeper) runSweepLoop(ctx context.Context) {
	defer h.wg.Done()
	ticker := time.NewTicker(h.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.sweepOnce()
		}
	}
}

// sweepOnce scans the spill output directory and deletes files whose
// embedded timestamp has aged past the retention window (§4.G Spill
// retention). A failure on one entry does not stop the rest of the sweep.
func (h *Housekeeper) sweepOnce() {
	if h.presenter == nil {
		return
	}

	root := h.presenter.OutputRoot()
	entries, err := os.ReadDir(root)
	if err != nil {
		logger.Log.Warn("spill retention sweep: failed to list output root", "root", root, "error", err)
		return
	}

	cutoff := time.Now().Add(-h.cfg.RetentionWindow)
	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ts, ok := presenter.EmbeddedTimestamp(entry.Name())
		if !ok || !ts.Before(cutoff) {
			continue
		}

		path := filepath.Join(root, entry.Name())
		if err := os.Remove(path); err != nil {
			logger.Log.Warn("spill retention sweep: failed to remove expired file", "path", path, "error", err)
			continue
		}
		deleted++
	}

	if deleted > 0 {
		logger.Log.Info("spill retention sweep removed expired files", "count", deleted)
		if h.metrics != nil {
			h.metrics.RecordSpillFilesDeleted(deleted)
		}
	}
}

func (h *Housekeeper) runHeartbeatLoop(ctx context.Context) {
	defer h.wg.Done()
	ticker := time.NewTicker(h.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.heartbeatOnce(ctx)
		}
	}
}

// heartbeatOnce samples admission-slot pressure and the shared cache's
// fill (key count against the entry cap), emitting both as gauges (§4.G
// Coordination heartbeat). Connection pool statistics are not sampled.
func (h *Housekeeper) heartbeatOnce(ctx context.Context) {
	if h.metrics == nil {
		return
	}

	if h.admission != nil {
		stats, err := h.admission.Stats(ctx)
		if err != nil {
			logger.Log.Warn("heartbeat: failed to sample admission stats", "error", err)
		} else {
			h.metrics.SetAdmissionGauges(stats.InUse, stats.Total)
		}
	}

	if h.cacheBackend != nil {
		stats, err := h.cacheBackend.Stats(ctx)
		if err != nil {
			logger.Log.Warn("heartbeat: failed to sample cache stats", "error", err)
			return
		}
		entryCap := h.cfg.CacheEntryCap
		if entryCap > 0 {
			h.metrics.SetPoolUtilization(float64(stats.TotalKeys) / float64(entryCap))
		}
	}
}
