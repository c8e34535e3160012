package agent

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

type Cache[S any] interface {
	Set(ctx context.Context, key string, val S) error
	Get(ctx context.Context, key string) (S, bool, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// MemoryCache is a process-local Cache. With a positive capacity it is backed by an
// LRU that evicts the least recently used entry once full; otherwise by a plain map.
type MemoryCache[S any] struct {
	bounded *lru.Cache[string, S]

	mu      sync.RWMutex
	entries map[string]S
}

type MemoryCacheOption func(*memoryCacheOptions)

type memoryCacheOptions struct {
	capacity int
}

// WithCapacity bounds the number of entries. Zero or less means unbounded.
func WithCapacity(n int) MemoryCacheOption {
	return func(o *memoryCacheOptions) {
		o.capacity = n
	}
}

func NewMemoryCache[S any](opts ...MemoryCacheOption) *MemoryCache[S] {
	var o memoryCacheOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.capacity > 0 {
		// lru.New only fails for a non-positive size.
		bounded, _ := lru.New[string, S](o.capacity)
		return &MemoryCache[S]{bounded: bounded}
	}
	return &MemoryCache[S]{entries: map[string]S{}}
}

func (m *MemoryCache[S]) Set(ctx context.Context, key string, val S) error {
	if m.bounded != nil {
		m.bounded.Add(key, val)
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = val
	return nil
}

func (m *MemoryCache[S]) Get(ctx context.Context, key string) (S, bool, error) {
	if m.bounded != nil {
		val, ok := m.bounded.Get(key)
		return val, ok, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.entries[key]
	return val, ok, nil
}

func (m *MemoryCache[S]) Del(ctx context.Context, key string) error {
	if m.bounded != nil {
		m.bounded.Remove(key)
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryCache[S]) Exists(ctx context.Context, key string) (bool, error) {
	if m.bounded != nil {
		return m.bounded.Contains(key), nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[key]
	return ok, nil
}

// Len is the number of cached entries.
func (m *MemoryCache[S]) Len() int {
	if m.bounded != nil {
		return m.bounded.Len()
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
