// Package presenter implements the Result Presenter & Spill Layer (§4.F):
// it writes the full match list for a search() call to a uniquely named
// file under a configured output root, reads it back with path validation,
// and renders a ResultSet in the two supported output formats.
package presenter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"logai/internal/resultset"
	"logai/pkg/apperror"
	"logai/pkg/config"
)

// Prefix distinguishes a spill file written after a clean completion from
// one written for a partial (timed out or partially failed) result (§4.F).
type Prefix string

const (
	PrefixFull    Prefix = "full-"
	PrefixPartial Prefix = "partial-"
)

const spillTimestampLayout = "20060102-150405"

// Presenter owns the spill output tree: §4.F's write and read-back
// operations plus text/structured rendering. Grounded on the teacher's
// pkg/audit/audit.go generateID() (timestamp + random suffix), generalized
// from an audit entry ID to a spill filename.
type Presenter struct {
	outputRoot   string
	maxReadBytes int64
}

func New(cfg config.SpillConfig) (*Presenter, error) {
	root, err := filepath.Abs(cfg.OutputRoot)
	if err != nil {
		return nil, fmt.Errorf("presenter: resolve output root %q: %w", cfg.OutputRoot, err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("presenter: create output root %q: %w", root, err)
	}
	return &Presenter{outputRoot: root, maxReadBytes: cfg.MaxReadBytes}, nil
}

// Spill writes rs in full (not just the preview) to a new file under the
// output root and returns its path. serviceLabel is typically the sorted,
// joined list of queried services, truncated to keep filenames readable.
func (p *Presenter) Spill(prefix Prefix, serviceLabel string, rs *resultset.ResultSet) (string, error) {
	name := filename(prefix, serviceLabel)
	path := filepath.Join(p.outputRoot, name)

	data, err := json.Marshal(rs)
	if err != nil {
		return "", apperror.Wrap(err, apperror.CodeSpillFailed, "failed to marshal result set for spilling")
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", apperror.Wrap(err, apperror.CodeSpillFailed, "failed to write spill file").WithDetails("path", path)
	}

	return path, nil
}

// ReadSpill validates path and, if valid, decodes the ResultSet stored
// there (§4.F Read-back operation).
func (p *Presenter) ReadSpill(path string) (*resultset.ResultSet, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, apperror.NewWithField(apperror.CodeInvalidPath, "path could not be resolved", path)
	}

	rel, err := filepath.Rel(p.outputRoot, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, apperror.NewWithField(apperror.CodeInvalidPath, "path lies outside the configured output directory", path)
	}

	base := filepath.Base(abs)
	if !strings.HasPrefix(base, string(PrefixFull)) && !strings.HasPrefix(base, string(PrefixPartial)) {
		return nil, apperror.NewWithField(apperror.CodePrefixMismatch, "filename does not carry a recognized spill prefix", path)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, apperror.NewWithField(apperror.CodeNotFound, "spill file does not exist", path)
	}

	if p.maxReadBytes > 0 && info.Size() > p.maxReadBytes {
		return nil, apperror.NewWithField(apperror.CodeFileTooLarge, "spill file exceeds the configured read cap; use out-of-band tooling", path).
			WithDetails("size", info.Size()).WithDetails("limit", p.maxReadBytes)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInternal, "failed to read spill file").WithField(path)
	}

	var rs resultset.ResultSet
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeDecodeError, "spill file is not a valid result set").WithField(path)
	}

	return &rs, nil
}

// FormatText renders rs as a plain-text transcript: one line per match,
// followed by a metadata summary.
func FormatText(rs *resultset.ResultSet) string {
	var b strings.Builder
	for _, m := range rs.Matches {
		fmt.Fprintf(&b, "%s\t%s:%d\t%v\n", m.Service, m.FilePath, m.Line, m.Content)
	}
	meta := rs.Metadata
	fmt.Fprintf(&b, "---\nservices=%s total_matches=%d files_examined=%d duration_ms=%d cached=%t partial=%t overflow=%t",
		strings.Join(meta.ServicesQueried, ","), meta.TotalMatches, meta.FilesExamined, meta.Duration.Milliseconds(),
		meta.Cached, meta.Partial, meta.Overflow)
	if meta.SpillPath != "" {
		fmt.Fprintf(&b, " saved_to=%s", meta.SpillPath)
	}
	if meta.Error != "" {
		fmt.Fprintf(&b, " error=%s", meta.Error)
	}
	return b.String()
}

// FormatStructured renders rs as indented JSON, carrying the same matches
// and metadata as FormatText (§4.F Format selection).
func FormatStructured(rs *resultset.ResultSet) (string, error) {
	data, err := json.MarshalIndent(rs, "", "  ")
	if err != nil {
		return "", apperror.Wrap(err, apperror.CodeInternal, "failed to render structured result")
	}
	return string(data), nil
}

func filename(prefix Prefix, serviceLabel string) string {
	ts := time.Now().UTC().Format(spillTimestampLayout)
	label := sanitizeLabel(serviceLabel)
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("%s%s-%s-%s.json", prefix, ts, label, suffix)
}

// sanitizeLabel keeps a spill filename legible and safe across
// filesystems: lower-case, non [a-z0-9-] runs collapsed to a single
// hyphen, truncated to 32 characters.
func sanitizeLabel(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))
	if s == "" {
		return "unknown"
	}

	var b strings.Builder
	lastWasSep := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastWasSep = false
		default:
			if !lastWasSep {
				b.WriteByte('-')
				lastWasSep = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		out = "unknown"
	}
	if len(out) > 32 {
		out = out[:32]
	}
	return out
}

// embeddedTimestamp parses the timestamp segment out of a spill filename
// produced by filename(), for housekeeping's retention sweep.
func embeddedTimestamp(name string) (time.Time, bool) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(name, string(PrefixFull)), string(PrefixPartial))
	if len(trimmed) < len(spillTimestampLayout) {
		return time.Time{}, false
	}
	t, err := time.Parse(spillTimestampLayout, trimmed[:len(spillTimestampLayout)])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// EmbeddedTimestamp exposes embeddedTimestamp for callers outside the
// package (housekeeping's retention sweep).
func EmbeddedTimestamp(name string) (time.Time, bool) {
	return embeddedTimestamp(name)
}

// OutputRoot returns the resolved output directory, for housekeeping to
// walk during the retention sweep.
func (p *Presenter) OutputRoot() string {
	return p.outputRoot
}
