package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultMemoryEntries = 4096

// MemoryProvider keeps entries in a bounded in-process LRU with a single TTL.
// The ttl passed to Set is ignored; every entry expires after the TTL given at construction.
type MemoryProvider struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemoryProvider creates an LRU-backed provider. Non-positive size falls back to 4096
// entries and non-positive ttl disables expiry.
func NewMemoryProvider(size int, ttl time.Duration) *MemoryProvider {
	if size <= 0 {
		size = defaultMemoryEntries
	}
	if ttl < 0 {
		ttl = 0
	}
	return &MemoryProvider{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

// Get returns a copy of the cached bytes or ErrCacheMiss.
func (m *MemoryProvider) Get(_ context.Context, key string) ([]byte, error) {
	value, ok := m.lru.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), value...), nil
}

// Set stores a copy of value.
func (m *MemoryProvider) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.lru.Add(key, append([]byte(nil), value...))
	return nil
}

// Len reports the number of live entries.
func (m *MemoryProvider) Len() int {
	return m.lru.Len()
}

// Close purges the cache.
func (m *MemoryProvider) Close() error {
	m.lru.Purge()
	return nil
}
