// Package semaphore implements the global admission control described in
// §4.C.1: acquire() blocks until one of N global slots is free; release()
// frees it. Two backends share the same interface, selected by Config.Backend.
package semaphore

import (
	"context"
	"errors"
	"time"
)

var (
	ErrSemaphoreClosed = errors.New("semaphore is closed")
	ErrAcquireTimeout  = errors.New("admission slot not acquired before deadline")
)

// Semaphore bounds the number of concurrently in-flight calls to N.
type Semaphore interface {
	// Acquire blocks until a slot is free or ctx is done. It never returns
	// a held slot without a matching call to Release.
	Acquire(ctx context.Context) error
	// Release frees a slot previously obtained from Acquire.
	Release()
	// Stats reports the current admission pressure, sampled for
	// housekeeping's heartbeat (§4.G).
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// Stats describes instantaneous admission pool pressure.
type Stats struct {
	InUse int
	Total int
}

func (s *Stats) Utilization() float64 {
	if s.Total <= 0 {
		return 0
	}
	return float64(s.InUse) / float64(s.Total)
}

// Config parameterizes a Semaphore's capacity and, for the distributed
// backend, the safety window and retry policy described in §4.C.1.
type Config struct {
	Backend       string        `koanf:"backend"` // "memory" or "redis"
	GlobalCap     int           `koanf:"global_cap"`
	SafetyWindow  time.Duration `koanf:"safety_window"`
	RetryBackoff  time.Duration `koanf:"retry_backoff"`
	MaxRetries    int           `koanf:"max_retries"`
	RedisAddr     string        `koanf:"redis_addr"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db"`
	// Key namespaces the counter in the shared store, allowing multiple
	// independent admission pools to share one Redis instance.
	Key string `koanf:"key"`
}

func DefaultConfig() *Config {
	return &Config{
		Backend:      "memory",
		GlobalCap:    64,
		SafetyWindow: 30 * time.Second,
		RetryBackoff: 50 * time.Millisecond,
		MaxRetries:   20,
		RedisAddr:    "localhost:6379",
		Key:          "logai:admission",
	}
}

// New constructs the backend selected by cfg.Backend, falling back to the
// in-process implementation for an unknown or empty value.
func New(cfg *Config) (Semaphore, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	switch cfg.Backend {
	case "redis":
		return NewRedisSemaphore(cfg)
	case "memory", "":
		return NewMemorySemaphore(cfg), nil
	default:
		return NewMemorySemaphore(cfg), nil
	}
}

func MustNew(cfg *Config) Semaphore {
	s, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return s
}
