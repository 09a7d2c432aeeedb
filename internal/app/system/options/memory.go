package options

import (
	"context"
	"sync"
)

// MemoryBackend keeps option values in process memory.
// It is used in tests and by `pilitoctl options list --offline`.
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string]any)}
}

// Get implements Backend.
func (m *MemoryBackend) Get(_ context.Context, name string) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[name]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

// Set implements Backend.
func (m *MemoryBackend) Set(_ context.Context, name, _ string, value any, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name] = value
	return nil
}

// Delete implements Backend.
func (m *MemoryBackend) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, name)
	return nil
}
