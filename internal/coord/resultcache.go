package coord

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"logai/internal/catalog"
	"logai/internal/resultset"
	"logai/pkg/cache"
	"logai/pkg/logger"
	"logai/pkg/metrics"
)

const keyPrefix = "logai:result:"

// ResultCache is the shared result cache (§4.C.2), wrapping a generic
// pkg/cache.Cache with fingerprint keying, a byte-size skip threshold, and
// catalog-mtime invalidation for the local backend. It is the same shape
// the teacher wraps SolverCache around a generic Cache with: serialize to
// JSON, key by a deterministic hash, delegate TTL and eviction downward.
type ResultCache struct {
	cache   cache.Cache
	backend string
	ttl     time.Duration
	byteCap int64
	cat     *catalog.Catalog
	metrics *metrics.Metrics

	mu sync.Mutex
}

// NewResultCache wraps an already-constructed generic cache. cat may be
// nil; when non-nil and backend is memory, Get clears the whole cache once
// the catalog's source file mtime advances (§4.C.2 Invalidation — the
// distributed backend relies on TTL alone instead).
func NewResultCache(c cache.Cache, backend string, ttl time.Duration, byteCap int64, cat *catalog.Catalog, m *metrics.Metrics) *ResultCache {
	return &ResultCache{
		cache:   c,
		backend: backend,
		ttl:     ttl,
		byteCap: byteCap,
		cat:     cat,
		metrics: m,
	}
}

func (rc *ResultCache) key(fingerprint string) string {
	return keyPrefix + fingerprint
}

// Get returns the cached ResultSet for fingerprint, or (nil, false) on a
// miss, an expired entry, or a corrupt payload (treated as a miss and
// removed). Entries are the later of the two writers in a stampede
// scenario: §4.C.2 Concurrency intentionally does not coalesce concurrent
// identical misses.
func (rc *ResultCache) Get(ctx context.Context, fingerprint string) (*resultset.ResultSet, bool) {
	rc.checkCatalogInvalidation(ctx)

	data, err := rc.cache.Get(ctx, rc.key(fingerprint))
	if err != nil {
		if rc.metrics != nil {
			rc.metrics.RecordCacheMiss(rc.backend)
		}
		return nil, false
	}

	var rs resultset.ResultSet
	if err := json.Unmarshal(data, &rs); err != nil {
		logger.Log.Warn("result cache entry corrupt, evicting", "fingerprint", fingerprint, "error", err)
		_ = rc.cache.Delete(ctx, rc.key(fingerprint))
		if rc.metrics != nil {
			rc.metrics.RecordCacheMiss(rc.backend)
		}
		return nil, false
	}

	if rc.metrics != nil {
		rc.metrics.RecordCacheHit(rc.backend)
	}
	return &rs, true
}

// Put stores a ResultSet under fingerprint. Entries whose serialized size
// exceeds one-tenth of the byte cap are silently skipped, not cached
// (§4.C.2 Contract); cache I/O failures are logged, never surfaced,
// consistent with §7's "operational, logged not surfaced" tier.
func (rc *ResultCache) Put(ctx context.Context, fingerprint string, rs *resultset.ResultSet) {
	data, err := json.Marshal(rs)
	if err != nil {
		logger.Log.Warn("failed to marshal result set for caching", "fingerprint", fingerprint, "error", err)
		return
	}

	if rc.byteCap > 0 && int64(len(data)) > rc.byteCap/10 {
		logger.Log.Debug("result set too large to cache, skipping",
			"fingerprint", fingerprint, "size", len(data), "limit", rc.byteCap/10)
		return
	}

	if err := rc.cache.Set(ctx, rc.key(fingerprint), data, rc.ttl); err != nil {
		logger.Log.Warn("failed to write result cache entry", "fingerprint", fingerprint, "error", err)
	}
}

func (rc *ResultCache) checkCatalogInvalidation(ctx context.Context) {
	if rc.cat == nil || rc.backend != cache.BackendMemory {
		return
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.cat.Changed() {
		logger.Log.Info("service catalog source changed, clearing local result cache")
		if err := rc.cache.Clear(ctx); err != nil {
			logger.Log.Warn("failed to clear result cache after catalog change", "error", err)
		}
	}
}

