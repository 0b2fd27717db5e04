package store

import (
	"bytes"
	"context"
	"sort"
	"sync"

	apperrors "crypto-analyst/internal/errors"
)

// MemoryStore keeps payloads in process. Used for tests and one-shot runs.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[Key][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[Key][]byte)}
}

func (m *MemoryStore) Get(ctx context.Context, key Key) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	if !ok {
		return nil, apperrors.ErrDataNotFound
	}
	return bytes.Clone(v), nil
}

func (m *MemoryStore) Put(ctx context.Context, key Key, payload []byte) error {
	m.mu.Lock()
	m.items[key] = bytes.Clone(payload)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key Key) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) List(ctx context.Context, date string) ([]Key, error) {
	m.mu.RLock()
	keys := make([]Key, 0)
	for k := range m.items {
		if k.Date == date {
			keys = append(keys, k)
		}
	}
	m.mu.RUnlock()
	sortKeys(keys)
	return keys, nil
}

func (m *MemoryStore) Prune(ctx context.Context, before string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.items {
		if k.Date < before {
			delete(m.items, k)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Close() error { return nil }

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Symbol != keys[j].Symbol {
			return keys[i].Symbol < keys[j].Symbol
		}
		return keys[i].Type < keys[j].Type
	})
}
