package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps everything in process memory. Used by tests and STORE_DRIVER=memory.
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[string][]byte
	lists    map[string][]string
	counters map[string]int64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:  make(map[string][]byte),
		lists:    make(map[string][]string),
		counters: make(map[string]int64),
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(value), nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[key] = clone(value)
	return nil
}

func (m *MemoryStore) SetNX(_ context.Context, key string, value []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[key]; exists {
		return false, nil
	}
	m.records[key] = clone(value)
	return true, nil
}

func (m *MemoryStore) ScanPrefix(_ context.Context, prefix string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Record
	for key, value := range m.records {
		if hasPrefix(key, prefix) {
			out = append(out, Record{Key: key, Value: clone(value)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *MemoryStore) Append(_ context.Context, key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lists[key] = append(m.lists[key], member)
	return nil
}

func (m *MemoryStore) Members(_ context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, len(m.lists[key]))
	copy(out, m.lists[key])
	return out, nil
}

func (m *MemoryStore) Counter(_ context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.counters[key], nil
}

func (m *MemoryStore) SwapCounter(_ context.Context, key string, old, next int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.counters[key] != old {
		return false, nil
	}
	m.counters[key] = next
	return true, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
