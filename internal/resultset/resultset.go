// Package resultset holds the data model shared by the scanner, the
// coordination cache, the search executor, and the presenter: Match,
// ResultSet, and Metadata (§3).
package resultset

import (
	"encoding/json"
	"time"
)

// Match is one matching line produced by a scan (§3 Match). Content is
// either a decoded structured value, if the raw line parsed as JSON, or
// the original string — the tagged union §9 Design Notes calls for,
// represented here as an `any` populated by at most one of the two shapes.
type Match struct {
	Service  string `json:"service"`
	FilePath string `json:"file_path"`
	Line     int    `json:"line_number"`
	Content  any    `json:"content"`
}

// Metadata describes the outcome of one search() call (§3 ResultSet).
type Metadata struct {
	ServicesQueried []string      `json:"services_queried"`
	FilesExamined   int           `json:"files_examined"`
	Duration        time.Duration `json:"-"`
	DurationMs      int64         `json:"duration_ms"`
	TotalMatches    int           `json:"total_matches"`
	Cached          bool          `json:"cached"`
	Partial         bool          `json:"partial"`
	Overflow        bool          `json:"overflow"`
	SpillPath       string        `json:"saved_to,omitempty"`
	// Error is a one-line "kind: reason" summary, set iff Partial (§7).
	Error string `json:"error,omitempty"`
	// FailedServices lists services whose scan contributed an error,
	// for a partial result's error summary.
	FailedServices []string `json:"failed_services,omitempty"`
}

// ResultSet pairs the full multiset of matches with its metadata (§3).
type ResultSet struct {
	Matches  []Match  `json:"matches"`
	Metadata Metadata `json:"metadata"`
}

// MarshalJSON stamps DurationMs from Duration at encode time so callers can
// build a ResultSet using the time.Duration field throughout and only pay
// the millisecond conversion once, at the boundary.
func (m Metadata) MarshalJSON() ([]byte, error) {
	type alias Metadata
	a := alias(m)
	a.DurationMs = m.Duration.Milliseconds()
	return json.Marshal(a)
}
