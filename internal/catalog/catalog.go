// Package catalog implements the Service Catalog (§4.A): an in-memory,
// read-only registry of service descriptors loaded once at startup, with
// fuzzy resolution of loose user tokens to one or more descriptors.
package catalog

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ServiceDescriptor names a log-producing service and the path template
// used to locate its files on disk (§3 ServiceDescriptor).
type ServiceDescriptor struct {
	// Name is unique within the catalog.
	Name string `yaml:"name" json:"name"`
	// PathTemplate may contain {YYYY}, {MM}, {DD}, {HH} and {guid} placeholders.
	PathTemplate string `yaml:"path_template" json:"path_template"`
	// AlternateName is an optional second name a query may match exactly
	// (e.g. an external tracking project name), resolution strategy 2.
	AlternateName string `yaml:"alternate_name,omitempty" json:"alternate_name,omitempty"`
	// Attributes holds external-tracking metadata out of scope for core
	// search behavior (e.g. a Sentry project slug or DSN).
	Attributes map[string]string `yaml:"attributes,omitempty" json:"attributes,omitempty"`
}

type descriptorFile struct {
	Services []ServiceDescriptor `yaml:"services"`
}

// Catalog is the ordered, read-only registry built once at startup.
// Queries never mutate it; the mutex guards only the mtime-invalidation
// bookkeeping consulted by the coordination layer's local cache (§4.C.2).
type Catalog struct {
	mu          sync.RWMutex
	descriptors []ServiceDescriptor
	sourcePath  string
	loadedAt    time.Time
	sourceMTime time.Time
}

// Load reads a YAML descriptor file of the form:
//
//	services:
//	  - name: hub-ca-auth
//	    path_template: /var/log/{YYYY}/{MM}/{DD}/{HH}/hub-ca-auth/app.log
//
// and builds the catalog. Duplicate names (after normalization) are a
// configuration error: the invariant that name is unique within the
// catalog (§3) is enforced here, at the only point the catalog is built.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}

	var df descriptorFile
	if err := yaml.Unmarshal(raw, &df); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}

	seen := make(map[string]string, len(df.Services))
	for _, d := range df.Services {
		n := Normalize(d.Name)
		if other, dup := seen[n]; dup {
			return nil, fmt.Errorf("catalog: duplicate service name %q and %q normalize to %q", other, d.Name, n)
		}
		seen[n] = d.Name
	}

	mtime := time.Time{}
	if fi, err := os.Stat(path); err == nil {
		mtime = fi.ModTime()
	}

	return &Catalog{
		descriptors: df.Services,
		sourcePath:  path,
		loadedAt:    time.Now(),
		sourceMTime: mtime,
	}, nil
}

// New builds a catalog directly from descriptors, bypassing file I/O.
// Used by tests and by callers that assemble descriptors programmatically.
func New(descriptors []ServiceDescriptor) *Catalog {
	return &Catalog{descriptors: descriptors, loadedAt: time.Now()}
}

// Descriptors returns the full ordered sequence of registered services.
func (c *Catalog) Descriptors() []ServiceDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ServiceDescriptor, len(c.descriptors))
	copy(out, c.descriptors)
	return out
}

// SourcePath returns the descriptor file path the catalog was loaded from,
// or "" if built via New.
func (c *Catalog) SourcePath() string {
	return c.sourcePath
}

// Changed reports whether the source file's mtime has advanced since the
// previous call (or, on the first call, since the catalog was loaded),
// consulted by the local result cache on each get to decide whether to
// invalidate itself (§4.C.2 Invalidation). A reported advance is recorded,
// so one change is reported once.
func (c *Catalog) Changed() bool {
	if c.sourcePath == "" {
		return false
	}
	fi, err := os.Stat(c.sourcePath)
	if err != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if fi.ModTime().After(c.sourceMTime) {
		c.sourceMTime = fi.ModTime()
		return true
	}
	return false
}

// Normalize applies §4.A's name normalization: lower-case, collapse
// underscores and whitespace to a hyphen, trim. Two names are equivalent
// iff their normalizations are equal.
func Normalize(name string) string {
	s := strings.TrimSpace(strings.ToLower(name))
	var b strings.Builder
	b.Grow(len(s))
	lastWasSep := false
	for _, r := range s {
		switch {
		case r == '_' || r == ' ' || r == '\t':
			if !lastWasSep {
				b.WriteByte('-')
				lastWasSep = true
			}
		default:
			b.WriteRune(r)
			lastWasSep = false
		}
	}
	return strings.Trim(b.String(), "-")
}

// localePrefixes lists stripped-prefix candidates in order: locale-qualified
// families first, then the bare organizational prefix. Grounded on
// original_source's get_base_service_name prefix table.
var localePrefixes = []string{
	"hub-ca-",
	"hub-us-",
	"hub-na-",
	"edr-na-",
	"edrtier3-na-",
	"hub-",
}

// BaseName strips the longest matching locale/org prefix from a normalized
// name (§4.A Base name). Normalization is applied first.
func BaseName(name string) string {
	n := Normalize(name)
	for _, p := range localePrefixes {
		if strings.HasPrefix(n, p) {
			return strings.TrimPrefix(n, p)
		}
	}
	return n
}

// localeFamilies maps a locale filter value to the set of name prefixes it
// restricts candidates to. "na" matches multiple prefix families; any other
// value matches exactly the "hub-<locale>-" family (§4.A Resolution strategy).
func localeFamilies(locale string) []string {
	switch strings.ToLower(locale) {
	case "":
		return nil
	case "na":
		return []string{"hub-na-", "edr-na-", "edrtier3-na-"}
	default:
		return []string{"hub-" + strings.ToLower(locale) + "-"}
	}
}
