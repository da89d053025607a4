package search

import (
	"context"
	"sync"
	"time"

	"logai/internal/resultset"
	"logai/pkg/progress"
)

// aggregator collects matches streamed concurrently by the per-service fan-
// out tasks of one search() call (§4.E phase 4) and drives the progress
// sideband. Grounded on pkg/cache/memory.go's mutex-guarded counter shape
// from the teacher, generalized from an eviction counter to a match
// multiset with per-service bookkeeping.
type aggregator struct {
	mu             sync.Mutex
	matches        []resultset.Match
	filesExamined  int
	failedServices []string

	fingerprint string
	start       time.Time
	emitter     progress.Emitter
	throttler   *progress.Throttler
}

func newAggregator(fingerprint string, emitter progress.Emitter, throttler *progress.Throttler) *aggregator {
	return &aggregator{
		fingerprint: fingerprint,
		start:       time.Now(),
		emitter:     emitter,
		throttler:   throttler,
	}
}

// recordMatch appends one streamed match and, if the throttler judges it
// worth it, emits a milestone progress event (§4.E Progress).
func (a *aggregator) recordMatch(m resultset.Match) {
	a.mu.Lock()
	a.matches = append(a.matches, m)
	total := len(a.matches)
	files := a.filesExamined
	a.mu.Unlock()

	a.emitMilestone(m.Service, total, files)
}

// addFilesExamined accumulates one service task's discovered-file count
// into the call-wide total.
func (a *aggregator) addFilesExamined(n int) {
	a.mu.Lock()
	a.filesExamined += n
	a.mu.Unlock()
}

// recordServiceError records that a service's scan contributed an error,
// for the partial-result error summary (§7 per-service tier).
func (a *aggregator) recordServiceError(service string) {
	a.mu.Lock()
	a.failedServices = append(a.failedServices, service)
	a.mu.Unlock()
}

// emitServiceEvent emits an unthrottled lifecycle event (service started or
// completed); these are informational and never rationed.
func (a *aggregator) emitServiceEvent(service string, kind progress.Kind, message string) {
	if a.emitter == nil {
		return
	}
	event := progress.NewEvent(a.fingerprint).
		Service(service).
		Kind(kind).
		Elapsed(time.Since(a.start)).
		Message(message).
		Build()
	// Sideband emission is deliberately detached from the search's own
	// context: cancellation of the search must not silently swallow its
	// final "service completed" notification.
	_ = a.emitter.Emit(context.Background(), event)
}

func (a *aggregator) emitMilestone(service string, total, filesExamined int) {
	if a.emitter == nil || a.throttler == nil {
		return
	}
	if !a.throttler.ShouldEmit(a.fingerprint, total) {
		return
	}
	event := progress.NewEvent(a.fingerprint).
		Service(service).
		Kind(progress.KindMilestone).
		Progress(total, filesExamined).
		Elapsed(time.Since(a.start)).
		Build()
	_ = a.emitter.Emit(context.Background(), event)
}

// snapshot returns a consistent view of the aggregated state once the
// fan-out has finished (or been cancelled).
func (a *aggregator) snapshot() (matches []resultset.Match, filesExamined int, failedServices []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]resultset.Match, len(a.matches))
	copy(out, a.matches)
	fs := make([]string, len(a.failedServices))
	copy(fs, a.failedServices)
	return out, a.filesExamined, fs
}

func (a *aggregator) forget() {
	if a.throttler != nil {
		a.throttler.Forget(a.fingerprint)
	}
}
