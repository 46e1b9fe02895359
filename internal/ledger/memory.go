package ledger

import (
	"context"
	"maps"
	"sync"
	"time"

	"horse.fit/news-gatherer/internal/globaltime"
)

// Memory is a process-local ledger for offline runs and tests.
type Memory struct {
	mu      sync.Mutex
	entries map[string]int64
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: map[string]int64{}, now: globaltime.Now}
}

func (m *Memory) LoadAll(ctx context.Context) (map[string]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap("load", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.entries), nil
}

func (m *Memory) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, wrap("prune", err)
	}
	cutoff := cutoffMillis(m.now(), retention)

	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for url, firstSeen := range m.entries {
		if firstSeen < cutoff {
			delete(m.entries, url)
			removed++
		}
	}
	return removed, nil
}

func (m *Memory) Upsert(ctx context.Context, canonicalURL string, epochMillis int64) error {
	if err := ctx.Err(); err != nil {
		return wrap("upsert", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[canonicalURL]; !ok {
		m.entries[canonicalURL] = epochMillis
	}
	return nil
}

func (m *Memory) Close() error { return nil }
