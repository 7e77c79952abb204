package store

import (
	"context"
	"fmt"
	"sync"
)

// MemoryBackend keeps records in process memory. A positive quota bounds the
// total number of bytes held across keys, mirroring a browser storage quota.
type MemoryBackend struct {
	mu    sync.RWMutex
	data  map[string][]byte
	used  int
	quota int
}

// NewMemoryBackend creates a MemoryBackend. quota <= 0 means unbounded.
func NewMemoryBackend(quota int) *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte), quota: quota}
}

// Get returns a copy of the value at key.
func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Set stores value at key unless it would push usage over the quota.
func (m *MemoryBackend) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.used - len(m.data[key]) + len(value)
	if m.quota > 0 && next > m.quota {
		return fmt.Errorf("%w: %d of %d bytes", ErrQuotaExceeded, next, m.quota)
	}
	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	m.used = next
	return nil
}

// Delete removes key; missing keys are ignored.
func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.used -= len(m.data[key])
	delete(m.data, key)
	return nil
}

// Used returns the number of bytes currently held.
func (m *MemoryBackend) Used() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.used
}
