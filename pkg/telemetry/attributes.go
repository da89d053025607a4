package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Стандартные ключи атрибутов
const (
	// Service Catalog (§4.A)
	AttrServiceGUID       = "catalog.service_guid"
	AttrServiceResolved   = "catalog.resolved"
	AttrResolutionStrategy = "catalog.resolution_strategy"

	// Path Expander / Scanner (§4.B, §4.D)
	AttrFilesDiscovered = "discovery.files_discovered"
	AttrFilesScanned    = "scanner.files_scanned"
	AttrScannerBackend  = "scanner.backend"

	// Search Executor (§4.E)
	AttrFingerprint   = "search.fingerprint"
	AttrMatchesFound  = "search.matches_found"
	AttrPartial       = "search.partial"
	AttrOverflow      = "search.overflow"
	AttrCacheHit      = "search.cache_hit"

	// Coordination layer (§4.C)
	AttrAdmissionWaitMS = "admission.wait_ms"
	AttrCacheBackend    = "cache.backend"

	// Result Presenter / Spill (§4.F)
	AttrSpillPath = "presenter.spill_path"
)

// CatalogAttributes returns attributes describing a service resolution.
func CatalogAttributes(guid string, resolved bool, strategy string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrServiceGUID, guid),
		attribute.Bool(AttrServiceResolved, resolved),
		attribute.String(AttrResolutionStrategy, strategy),
	}
}

// SearchAttributes returns attributes describing a completed search() call.
func SearchAttributes(fingerprint string, matches int, partial, overflow, cacheHit bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrFingerprint, fingerprint),
		attribute.Int(AttrMatchesFound, matches),
		attribute.Bool(AttrPartial, partial),
		attribute.Bool(AttrOverflow, overflow),
		attribute.Bool(AttrCacheHit, cacheHit),
	}
}

// ScannerAttributes returns attributes describing one scanner adapter run.
func ScannerAttributes(backend string, filesScanned int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrScannerBackend, backend),
		attribute.Int(AttrFilesScanned, filesScanned),
	}
}
