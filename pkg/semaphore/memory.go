package semaphore

import (
	"context"
	"sync/atomic"

	xsync "golang.org/x/sync/semaphore"
)

// MemorySemaphore is an in-process counting semaphore with capacity N.
// Slots are strictly reclaimed on Release; there is no TTL because a held
// slot can never outlive the process that holds it.
type MemorySemaphore struct {
	sem     *xsync.Weighted
	cap     int64
	inUse   atomic.Int64
	closed  atomic.Bool
}

func NewMemorySemaphore(cfg *Config) *MemorySemaphore {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	cap := int64(cfg.GlobalCap)
	if cap <= 0 {
		cap = 64
	}

	return &MemorySemaphore{
		sem: xsync.NewWeighted(cap),
		cap: cap,
	}
}

func (m *MemorySemaphore) Acquire(ctx context.Context) error {
	if m.closed.Load() {
		return ErrSemaphoreClosed
	}

	if err := m.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	m.inUse.Add(1)
	return nil
}

func (m *MemorySemaphore) Release() {
	m.sem.Release(1)
	m.inUse.Add(-1)
}

func (m *MemorySemaphore) Stats(ctx context.Context) (*Stats, error) {
	return &Stats{
		InUse: int(m.inUse.Load()),
		Total: int(m.cap),
	}, nil
}

func (m *MemorySemaphore) Close() error {
	m.closed.Store(true)
	return nil
}
