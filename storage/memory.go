package storage

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// Memory is a Storage that keeps all values in memory.
type Memory struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemory returns a new empty in-memory storage.
func NewMemory() *Memory {
	return &Memory{
		values: make(map[string][]byte),
	}
}

// Len returns the number of stored values.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.values)
}

func (m *Memory) Has(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.values[key]
	return ok, nil
}

func (m *Memory) Put(ctx context.Context, key string, content []byte) error {
	val := make([]byte, len(content))
	copy(val, content)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = val
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	content, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	val := make([]byte, len(content))
	copy(val, content)
	return val, nil
}

func (m *Memory) GetStream(ctx context.Context, key string) (io.ReadCloser, error) {
	content, err := m.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}
