// Package coord implements the coordination-layer facade (§4.C): the
// shared result cache wrapping pkg/cache with fingerprint keys and
// catalog-mtime invalidation. The admission semaphore (pkg/semaphore) and
// metrics sink (pkg/metrics) are used directly by the executor and need no
// additional wrapping here.
package coord

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"
)

// Window mirrors discovery.Window's shape without importing it, so the
// fingerprint can be computed from raw RFC3339 timestamps without a
// dependency on the discovery package.
type Window struct {
	Start time.Time
	End   time.Time
}

// canonicalQuery is the deterministic, sorted representation hashed to
// produce a Fingerprint (§3 Fingerprint). json.Marshal on a struct whose
// fields are declared in alphabetical order of their JSON keys, with
// UTC-formatted timestamps, gives the "canonical JSON, sorted keys, UTC
// timestamps in a fixed textual form" stability the spec requires
// (§4.C.2 Keying).
type canonicalQuery struct {
	End      string   `json:"end"`
	Pattern  string   `json:"pattern"`
	Services []string `json:"services"`
	Start    string   `json:"start"`
}

// Fingerprint computes the deterministic cache key for a search over the
// (sorted) resolved service names, the literal pattern, and the time
// window (§3 Fingerprint). Two logically identical searches, regardless of
// the order services were given in, produce the same fingerprint.
func Fingerprint(services []string, pattern string, window Window) string {
	sorted := append([]string(nil), services...)
	sort.Strings(sorted)

	cq := canonicalQuery{
		Services: sorted,
		Pattern:  pattern,
		Start:    window.Start.UTC().Format(time.RFC3339),
		End:      window.End.UTC().Format(time.RFC3339),
	}

	// json.Marshal of a struct is stable: field order follows declaration
	// order, never map iteration order, so this is deterministic without
	// needing a custom canonicalizer.
	data, err := json.Marshal(cq)
	if err != nil {
		// Marshaling a struct of strings cannot fail; this path exists
		// only to satisfy the compiler's error return.
		data = []byte(cq.Pattern)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
