// Package search implements the Search Executor (§4.E): the public
// search() operation that resolves service tokens, probes the shared
// cache, fans out one scan per resolved service under a bounded
// concurrency and an overall deadline, and assembles the final
// ResultSet.
package search

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	xsemaphore "golang.org/x/sync/semaphore"

	"logai/internal/catalog"
	"logai/internal/coord"
	"logai/internal/discovery"
	"logai/internal/presenter"
	"logai/internal/resultset"
	"logai/internal/scanner"
	"logai/pkg/apperror"
	"logai/pkg/config"
	"logai/pkg/logger"
	"logai/pkg/metrics"
	"logai/pkg/progress"
	"logai/pkg/semaphore"
	"logai/pkg/telemetry"
)

// Scanner is the subset of *scanner.Scanner the executor depends on,
// named here so tests can substitute a fake instead of launching a real
// child process.
type Scanner interface {
	Scan(ctx context.Context, paths []string, pattern, serviceTag string, onMatch scanner.ProgressFunc) ([]resultset.Match, error)
}

// backendNamer is satisfied by *scanner.Scanner but not by test fakes;
// runService falls back to "unknown" rather than widening Scanner to
// require it.
type backendNamer interface {
	Backend() string
}

// Executor implements the seven phases of §4.E over a fixed catalog,
// scanner, admission semaphore, result cache, and presenter.
type Executor struct {
	catalog     *catalog.Catalog
	scanner     Scanner
	admission   semaphore.Semaphore
	resultCache *coord.ResultCache
	presenter   *presenter.Presenter
	metrics     *metrics.Metrics
	emitter     progress.Emitter
	throttler   *progress.Throttler

	guidWildcard    string
	perCallCap      int64
	overallDeadline time.Duration
	defaultPreview  int
}

// New assembles an Executor from its dependencies; cfg supplies the
// per-call fan-out cap, overall deadline, preview limit, and discovery
// GUID wildcard (§6 configuration surface).
func New(
	cfg *config.Config,
	cat *catalog.Catalog,
	scn Scanner,
	admission semaphore.Semaphore,
	resultCache *coord.ResultCache,
	pres *presenter.Presenter,
	m *metrics.Metrics,
	emitter progress.Emitter,
) *Executor {
	perCallCap := int64(cfg.Admission.PerCallCap)
	if perCallCap <= 0 {
		perCallCap = 1
	}

	return &Executor{
		catalog:         cat,
		scanner:         scn,
		admission:       admission,
		resultCache:     resultCache,
		presenter:       pres,
		metrics:         m,
		emitter:         emitter,
		throttler:       progress.NewThrottler(cfg.Progress),
		guidWildcard:    cfg.Discovery.GuidWildcard,
		perCallCap:      perCallCap,
		overallDeadline: cfg.Executor.OverallDeadline,
		defaultPreview:  cfg.Executor.PreviewLimit,
	}
}

// Search runs the full search() operation (§4.E). previewLimit of 0 uses
// the configured default.
func (e *Executor) Search(ctx context.Context, servicesQuery []string, pattern string, window discovery.Window, locale string, previewLimit int) (*resultset.ResultSet, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "search.execute")
	defer span.End()

	// Phase 1: Resolve.
	resolveCtx, resolveSpan := telemetry.StartSpan(ctx, "search.resolve")
	resolved, names, err := e.resolve(servicesQuery, locale)
	if err != nil {
		telemetry.SetError(resolveCtx, err)
		resolveSpan.End()
		telemetry.SetError(ctx, err)
		e.recordError(err)
		return nil, err
	}
	for _, d := range resolved {
		telemetry.AddEvent(resolveCtx, "service.resolved", telemetry.CatalogAttributes(d.Name, true, "catalog")...)
	}
	resolveSpan.End()

	// Phase 2: Fingerprint and cache probe.
	fp := coord.Fingerprint(names, pattern, coord.Window{Start: window.Start, End: window.End})
	if e.resultCache != nil {
		if rs, ok := e.resultCache.Get(ctx, fp); ok {
			rs.Metadata.Cached = true
			rs.Metadata.Duration = time.Since(start)
			telemetry.SetAttributes(ctx, telemetry.SearchAttributes(fp, rs.Metadata.TotalMatches, rs.Metadata.Partial, rs.Metadata.Overflow, true)...)
			if e.metrics != nil {
				e.metrics.RecordSearch(true, rs.Metadata.Partial, rs.Metadata.Overflow, false, rs.Metadata.Duration, rs.Metadata.TotalMatches, rs.Metadata.FilesExamined)
			}
			return rs, nil
		}
	}

	// Phase 3: Admit.
	admitCtx, admitSpan := telemetry.StartSpan(ctx, "search.admit")
	if e.admission != nil {
		admitStart := time.Now()
		if err := e.admission.Acquire(admitCtx); err != nil {
			appErr := apperror.Wrap(err, apperror.CodeInternal, "failed to acquire admission slot")
			telemetry.SetError(admitCtx, appErr)
			admitSpan.End()
			e.recordError(appErr)
			return nil, appErr
		}
		telemetry.SetAttributes(admitCtx, attribute.Int64(telemetry.AttrAdmissionWaitMS, time.Since(admitStart).Milliseconds()))
		defer e.admission.Release()
	}
	admitSpan.End()
	subSem := xsemaphore.NewWeighted(e.perCallCap)

	deadline := e.overallDeadline
	if deadline <= 0 {
		deadline = 30 * time.Second
	}
	searchCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	agg := newAggregator(fp, e.emitter, e.throttler)
	defer agg.forget()

	// Phase 4: Fan out.
	fanoutCtx, fanoutSpan := telemetry.StartSpan(searchCtx, "search.fanout")
	var wg sync.WaitGroup
	for _, desc := range resolved {
		desc := desc
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.runService(fanoutCtx, subSem, desc, pattern, window, agg)
		}()
	}

	// Phase 5: Deadline.
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()

	timedOut := false
	select {
	case <-waitDone:
	case <-searchCtx.Done():
		timedOut = errors.Is(searchCtx.Err(), context.DeadlineExceeded)
		<-waitDone
	}
	fanoutSpan.End()

	// Phase 6: Assemble.
	assembleCtx, assembleSpan := telemetry.StartSpan(ctx, "search.assemble")
	matches, filesExamined, failedServices := agg.snapshot()

	meta := resultset.Metadata{
		ServicesQueried: names,
		FilesExamined:   filesExamined,
		Duration:        time.Since(start),
		TotalMatches:    len(matches),
		FailedServices:  failedServices,
	}

	switch {
	case timedOut:
		meta.Partial = true
		meta.Error = string(apperror.CodeTimeout) + ": search exceeded overall deadline"
	case len(failedServices) > 0:
		meta.Partial = true
		meta.Error = string(apperror.CodeScannerFailed) + ": one or more services failed to scan"
	}

	limit := previewLimit
	if limit <= 0 {
		limit = e.defaultPreview
	}
	preview := matches
	if limit > 0 && len(matches) > limit {
		preview = append([]resultset.Match(nil), matches[:limit]...)
		meta.Overflow = true
	}

	if e.presenter != nil {
		prefix := presenter.PrefixFull
		if meta.Partial {
			prefix = presenter.PrefixPartial
		}
		full := &resultset.ResultSet{Matches: matches, Metadata: meta}
		path, err := e.presenter.Spill(prefix, strings.Join(names, "_"), full)
		if err != nil {
			logger.Log.Warn("failed to spill search result", "fingerprint", fp, "error", err)
			meta.Partial = true
			meta.Error = string(apperror.CodeSpillFailed) + ": spill failed"
		} else {
			meta.SpillPath = path
		}
	}

	rs := &resultset.ResultSet{Matches: preview, Metadata: meta}

	telemetry.SetAttributes(assembleCtx, telemetry.SearchAttributes(fp, meta.TotalMatches, meta.Partial, meta.Overflow, false)...)
	assembleSpan.End()

	// Phase 7: Publish.
	if e.resultCache != nil && !meta.Partial && !meta.Overflow {
		e.resultCache.Put(ctx, fp, rs)
	}

	if e.metrics != nil {
		e.metrics.RecordSearch(false, meta.Partial, meta.Overflow, timedOut, meta.Duration, meta.TotalMatches, meta.FilesExamined)
	}

	return rs, nil
}

// resolve implements phase 1: any unresolved token aborts the whole call
// with a ServiceNotFound error carrying suggestions; no search runs.
func (e *Executor) resolve(servicesQuery []string, locale string) ([]catalog.ServiceDescriptor, []string, error) {
	seen := make(map[string]catalog.ServiceDescriptor)
	var order []string

	for _, token := range servicesQuery {
		matches := e.catalog.Resolve(token, locale)
		if len(matches) == 0 {
			suggestions := e.catalog.Suggest(token)
			return nil, nil, apperror.NewWithField(apperror.CodeServiceNotFound,
				"no service matches the given token", token).
				WithDetails("suggestions", suggestions)
		}
		for _, d := range matches {
			key := catalog.Normalize(d.Name)
			if _, ok := seen[key]; !ok {
				seen[key] = d
				order = append(order, key)
			}
		}
	}

	resolved := make([]catalog.ServiceDescriptor, 0, len(order))
	names := make([]string, 0, len(order))
	for _, key := range order {
		resolved = append(resolved, seen[key])
		names = append(names, seen[key].Name)
	}
	sort.Strings(names)

	return resolved, names, nil
}

// runService is one fan-out task (§4.E phase 4): acquire a sub-slot,
// discover files, scan them, and stream matches into the shared
// aggregator. Its failure is recorded but never cancels sibling tasks.
func (e *Executor) runService(ctx context.Context, subSem *xsemaphore.Weighted, desc catalog.ServiceDescriptor, pattern string, window discovery.Window, agg *aggregator) {
	agg.emitServiceEvent(desc.Name, progress.KindServiceStarted, "")

	if err := subSem.Acquire(ctx, 1); err != nil {
		agg.recordServiceError(desc.Name)
		agg.emitServiceEvent(desc.Name, progress.KindWarning, "did not get a fan-out slot before cancellation")
		return
	}
	defer subSem.Release(1)

	paths, err := discovery.Discover(desc, window, e.guidWildcard)
	if err != nil {
		logger.Log.Warn("discovery failed", "service", desc.Name, "error", err)
		agg.recordServiceError(desc.Name)
		agg.emitServiceEvent(desc.Name, progress.KindWarning, "file discovery failed")
		if e.metrics != nil {
			e.metrics.RecordError(string(apperror.CodeDiscoveryFailed))
		}
		return
	}
	agg.addFilesExamined(len(paths))

	backend := "unknown"
	if bn, ok := e.scanner.(backendNamer); ok {
		backend = bn.Backend()
	}

	_, err = e.scanner.Scan(ctx, paths, pattern, desc.Name, agg.recordMatch)
	if err != nil {
		logger.Log.Warn("scan failed", "service", desc.Name, "error", err)
		agg.recordServiceError(desc.Name)
		agg.emitServiceEvent(desc.Name, progress.KindWarning, apperror.Kind(err))
		telemetry.AddEvent(ctx, "scanner.run", telemetry.ScannerAttributes(backend, len(paths))...)
		if e.metrics != nil {
			e.metrics.RecordError(apperror.Kind(err))
		}
		return
	}

	telemetry.AddEvent(ctx, "scanner.run", telemetry.ScannerAttributes(backend, len(paths))...)
	agg.emitServiceEvent(desc.Name, progress.KindServiceCompleted, "")
}

func (e *Executor) recordError(err error) {
	if e.metrics != nil {
		e.metrics.RecordError(apperror.Kind(err))
	}
}
