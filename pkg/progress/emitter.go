package progress

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"logai/pkg/logger"
)

// StdoutEmitter writes progress events to standard output as JSON lines.
type StdoutEmitter struct {
	config *Config
	mu     sync.Mutex
}

func NewStdoutEmitter(cfg *Config) *StdoutEmitter {
	return &StdoutEmitter{config: cfg}
}

func (e *StdoutEmitter) Emit(_ context.Context, event *Event) error {
	if !e.config.Enabled {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	fmt.Println("[PROGRESS]", string(data))
	return nil
}

func (e *StdoutEmitter) Close() error { return nil }

// FileEmitter buffers progress events and writes them to a file
// asynchronously, flushing periodically or when the buffer fills.
type FileEmitter struct {
	config *Config
	file   *os.File
	writer *bufio.Writer
	mu     sync.Mutex
	buffer chan *Event
	done   chan struct{}
}

func NewFileEmitter(cfg *Config) (*FileEmitter, error) {
	if cfg.FilePath == "" {
		cfg.FilePath = "progress.log"
	}

	file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open progress log file: %w", err)
	}

	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	e := &FileEmitter{
		config: cfg,
		file:   file,
		writer: bufio.NewWriter(file),
		buffer: make(chan *Event, bufferSize),
		done:   make(chan struct{}),
	}

	go e.processLoop()

	return e, nil
}

func (e *FileEmitter) Emit(_ context.Context, event *Event) error {
	if !e.config.Enabled {
		return nil
	}

	select {
	case e.buffer <- event:
		return nil
	default:
		return e.writeEvent(event)
	}
}

func (e *FileEmitter) Close() error {
	close(e.done)

	e.mu.Lock()
	defer e.mu.Unlock()

	for {
		select {
		case event := <-e.buffer:
			if err := e.writeEventUnsafe(event); err != nil {
				logger.Log.Warn("failed to write progress event during shutdown", "error", err)
			}
		default:
			goto flush
		}
	}

flush:
	if err := e.writer.Flush(); err != nil {
		logger.Log.Warn("failed to flush progress writer", "error", err)
	}
	return e.file.Close()
}

func (e *FileEmitter) processLoop() {
	flushPeriod := e.config.FlushPeriod
	if flushPeriod <= 0 {
		flushPeriod = 2 * time.Second
	}

	ticker := time.NewTicker(flushPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-e.done:
			return
		case event := <-e.buffer:
			if err := e.writeEvent(event); err != nil {
				logger.Log.Warn("failed to write progress event", "error", err)
			}
		case <-ticker.C:
			e.flush()
		}
	}
}

func (e *FileEmitter) writeEvent(event *Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.writeEventUnsafe(event)
}

func (e *FileEmitter) writeEventUnsafe(event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = e.writer.Write(append(data, '\n'))
	return err
}

func (e *FileEmitter) flush() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.writer.Flush(); err != nil {
		logger.Log.Warn("failed to flush progress writer", "error", err)
	}
}

// New constructs the emitter backend named by cfg.Backend, defaulting to a
// NoopEmitter when cfg is nil or progress reporting is disabled.
func New(cfg *Config) (Emitter, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if !cfg.Enabled {
		return &NoopEmitter{}, nil
	}

	switch cfg.Backend {
	case "file":
		return NewFileEmitter(cfg)
	case "stdout", "":
		return NewStdoutEmitter(cfg), nil
	default:
		logger.Log.Warn("unknown progress backend, using stdout", "backend", cfg.Backend)
		return NewStdoutEmitter(cfg), nil
	}
}

// NoopEmitter discards every event. It is the default when progress
// reporting is disabled.
type NoopEmitter struct{}

func (e *NoopEmitter) Emit(_ context.Context, _ *Event) error { return nil }
func (e *NoopEmitter) Close() error                           { return nil }

var (
	globalEmitter Emitter = &NoopEmitter{}
	globalMu      sync.RWMutex
)

// SetGlobal sets the package-level default emitter.
func SetGlobal(e Emitter) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalEmitter = e
}

// Get returns the package-level default emitter.
func Get() Emitter {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalEmitter
}

// Emit delivers a progress event via the package-level default emitter.
func Emit(ctx context.Context, event *Event) error {
	return Get().Emit(ctx, event)
}
