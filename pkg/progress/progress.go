// Package progress provides sideband progress notifications for long-running
// search() calls (§4.E): periodic "still working, N matches so far" events a
// caller can surface to a human without waiting for the final ResultSet.
package progress

import (
	"context"
	"encoding/json"
	"time"
)

// Kind identifies the category of a progress event.
type Kind string

const (
	// KindServiceStarted marks the scanner adapter launching for one service.
	KindServiceStarted Kind = "SERVICE_STARTED"
	// KindServiceCompleted marks one service's scan finishing successfully;
	// a failed scan emits KindWarning instead.
	KindServiceCompleted Kind = "SERVICE_COMPLETED"
	// KindMilestone marks a match-count or file-count threshold crossing mid-search.
	KindMilestone Kind = "MILESTONE"
	// KindWarning marks a recoverable per-service error (§7, per-service tier).
	KindWarning Kind = "WARNING"
)

// Event is a single progress notification emitted during one search() call.
type Event struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	Fingerprint  string         `json:"fingerprint"`             // identifies the in-flight search
	Service      string         `json:"service,omitempty"`       // resolved service name, if scoped to one
	Kind         Kind           `json:"kind"`
	MatchesSoFar int            `json:"matches_so_far"`
	FilesScanned int            `json:"files_scanned"`
	ElapsedMs    int64          `json:"elapsed_ms"`
	Message      string         `json:"message,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Emitter is the interface progress backends implement.
type Emitter interface {
	// Emit delivers one progress event. Implementations must not block the
	// search executor for long; slow backends should buffer internally.
	Emit(ctx context.Context, event *Event) error
	Close() error
}

// Config controls which emitter backend is active and how it buffers.
type Config struct {
	Enabled     bool          `koanf:"enabled"`
	Backend     string        `koanf:"backend"` // "stdout" (also for ""), "file"; Enabled=false gives noop
	FilePath    string        `koanf:"file_path"`
	BufferSize  int           `koanf:"buffer_size"`
	FlushPeriod time.Duration `koanf:"flush_period"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:     false,
		Backend:     "stdout",
		BufferSize:  1000,
		FlushPeriod: 2 * time.Second,
	}
}

// Builder provides a fluent API for constructing an Event.
type Builder struct {
	event *Event
}

// NewEvent starts building a progress event stamped with the current time.
func NewEvent(fingerprint string) *Builder {
	return &Builder{
		event: &Event{
			Timestamp:   time.Now(),
			Fingerprint: fingerprint,
			Metadata:    make(map[string]any),
		},
	}
}

func (b *Builder) Service(s string) *Builder {
	b.event.Service = s
	return b
}

func (b *Builder) Kind(k Kind) *Builder {
	b.event.Kind = k
	return b
}

func (b *Builder) Progress(matches, filesScanned int) *Builder {
	b.event.MatchesSoFar = matches
	b.event.FilesScanned = filesScanned
	return b
}

func (b *Builder) Elapsed(d time.Duration) *Builder {
	b.event.ElapsedMs = d.Milliseconds()
	return b
}

func (b *Builder) Message(msg string) *Builder {
	b.event.Message = msg
	return b
}

func (b *Builder) Meta(key string, value any) *Builder {
	b.event.Metadata[key] = value
	return b
}

func (b *Builder) Build() *Event {
	if b.event.ID == "" {
		b.event.ID = generateID()
	}
	return b.event
}

func (e *Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	return json.Marshal((*Alias)(e))
}

func generateID() string {
	return time.Now().Format("20060102150405") + "-" + randomString(8)
}

func randomString(n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[time.Now().UnixNano()%int64(len(letters))]
	}
	return string(b)
}
